// Package channel defines the message types shared by ingress and egress and
// the adapter registry used to deliver outbound messages to platforms such as
// Telegram and the embedded web chat.
package channel

import (
	"fmt"
	"strings"
	"time"

	"github.com/chatrelay/chatrelay/internal/client"
)

// ChannelType identifies a messaging platform (e.g., "telegram", "web").
type ChannelType string

const (
	ChannelTelegram  ChannelType = "telegram"
	ChannelWeb       ChannelType = "web"
	ChannelWhatsApp  ChannelType = "whatsapp"
	ChannelInstagram ChannelType = "instagram"
	ChannelAvito     ChannelType = "avito"
	ChannelSystem    ChannelType = "system"
)

// String returns the channel type as a plain string.
func (c ChannelType) String() string {
	return string(c)
}

// ParseChannelType validates and normalizes a raw string into a ChannelType.
func ParseChannelType(raw string) (ChannelType, error) {
	ct := ChannelType(strings.ToLower(strings.TrimSpace(raw)))
	switch ct {
	case ChannelTelegram, ChannelWeb, ChannelWhatsApp, ChannelInstagram, ChannelAvito, ChannelSystem:
		return ct, nil
	default:
		return "", fmt.Errorf("unsupported channel type: %s", raw)
	}
}

// ContentKind classifies the primary content of an inbound update.
type ContentKind string

const (
	ContentText    ContentKind = "text"
	ContentPhoto   ContentKind = "photo"
	ContentVideo   ContentKind = "video"
	ContentSticker ContentKind = "sticker"
	ContentUnknown ContentKind = "unknown"
)

// Meta carries provenance captured at intake plus fields stamped by the
// ingestion pipeline. The stamped fields are in-process only and are never
// serialized across a process boundary.
type Meta struct {
	CompanyID string
	BotID     string
	SiteID    string

	Username  string
	FirstName string
	LastName  string

	Content ContentKind
	// Raw preserves provider-specific payload fields that have no typed home.
	Raw map[string]any

	// MessageID is stamped by the persistence stage after the row is written.
	MessageID string
	// Client is the resolved client handle for downstream stages. Anything
	// leaving the process must carry Client.ID instead.
	Client *client.Client
}

// InboundMessage is a message received from an external channel, flowing
// through the ingestion pipeline.
type InboundMessage struct {
	Channel    ChannelType
	ExternalID string
	Text       string
	// ClientID is filled once the sender is resolved to a client row.
	ClientID   string
	ReceivedAt time.Time
	Meta       Meta
}

// OutboundMessage pairs a delivery target with reply content. Target is
// channel specific: a Telegram chat id, or a client id for the web channel.
type OutboundMessage struct {
	Channel ChannelType       `json:"channel"`
	Target  string            `json:"target"`
	Text    string            `json:"text"`
	Meta    map[string]string `json:"meta,omitempty"`
}
