// Package client stores the per-company identity of a conversation partner.
package client

import "time"

// Client is one person talking to a company on one channel. A client is
// unique per (company, channel, external id); the same person writing from
// two channels yields two clients.
type Client struct {
	ID         string    `json:"id"`
	CompanyID  string    `json:"company_id"`
	Channel    string    `json:"channel"`
	ExternalID string    `json:"external_id"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	// TelegramChatID is set when the external id is a numeric Telegram chat.
	TelegramChatID int64 `json:"telegram_chat_id,omitempty"`
	// BotID references the Telegram bot that first observed this client.
	BotID     string    `json:"bot_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile carries the display fields observed on an inbound message. Empty
// fields never overwrite previously stored values.
type Profile struct {
	Username       string
	FirstName      string
	LastName       string
	TelegramChatID int64
	BotID          string
}
