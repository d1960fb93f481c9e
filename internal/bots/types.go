// Package bots stores Telegram bot registrations and their poll cursors.
package bots

import "time"

// Bot is one registered Telegram bot belonging to a company.
type Bot struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Token     string `json:"-"`
	Username  string `json:"username,omitempty"`
	IsActive  bool   `json:"is_active"`
	// LastUpdateID is the poll watermark: the highest Telegram update id
	// already ingested for this bot. It only ever moves forward.
	LastUpdateID int64     `json:"last_update_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
