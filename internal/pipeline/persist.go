package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chatrelay/chatrelay/internal/channel"
	"github.com/chatrelay/chatrelay/internal/message"
)

// MessageWriter is the slice of the message store the pipeline needs.
type MessageWriter interface {
	Create(ctx context.Context, params message.CreateParams) (message.Message, error)
	PatchIntent(ctx context.Context, id string, intent string) error
}

// Persist writes the inbound message to history and stamps the stored row id
// onto the message. It is fatal: an unwritten message must not be acked as
// ingested.
type Persist struct {
	messages MessageWriter
	logger   *slog.Logger
}

// NewPersist creates the persistence stage.
func NewPersist(log *slog.Logger, messages MessageWriter) *Persist {
	if log == nil {
		log = slog.Default()
	}
	return &Persist{
		messages: messages,
		logger:   log.With(slog.String("stage", "persist")),
	}
}

func (p *Persist) Name() string { return "persist" }

func (p *Persist) Process(ctx context.Context, msg *channel.InboundMessage) error {
	if msg.ClientID == "" {
		return fmt.Errorf("client not resolved")
	}
	stored, err := p.messages.Create(ctx, message.CreateParams{
		ClientID:  msg.ClientID,
		Direction: message.DirectionIn,
		Text:      msg.Text,
		Payload:   payloadFromMeta(msg.Meta),
	})
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	msg.Meta.MessageID = stored.ID
	return nil
}

// payloadFromMeta serializes intake provenance for storage. The resolved
// client handle and the stamped message id stay in process and never enter
// the payload.
func payloadFromMeta(meta channel.Meta) map[string]any {
	payload := map[string]any{}
	if meta.Username != "" {
		payload["username"] = meta.Username
	}
	if meta.FirstName != "" {
		payload["first_name"] = meta.FirstName
	}
	if meta.LastName != "" {
		payload["last_name"] = meta.LastName
	}
	if meta.Content != "" {
		payload["content"] = string(meta.Content)
	}
	if meta.BotID != "" {
		payload["bot_id"] = meta.BotID
	}
	if meta.SiteID != "" {
		payload["site_id"] = meta.SiteID
	}
	if len(meta.Raw) > 0 {
		payload["raw"] = meta.Raw
	}
	return payload
}
