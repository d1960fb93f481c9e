package ingest

import (
	"context"

	"github.com/chatrelay/chatrelay/internal/channel"
)

// Publisher is the slice of the realtime publisher ingest needs.
type Publisher interface {
	ToClient(ctx context.Context, clientID, event string, data map[string]any)
	ToCompany(ctx context.Context, companyID, event string, data map[string]any)
}

// announce pushes the freshly ingested message to its client channel and
// nudges the company channel so operator dashboards refresh. Payloads carry
// plain ids only.
func announce(ctx context.Context, publisher Publisher, msg channel.InboundMessage) {
	if publisher == nil || msg.ClientID == "" || msg.Meta.MessageID == "" {
		return
	}
	publisher.ToClient(ctx, msg.ClientID, "message.inbound", map[string]any{
		"client_id":  msg.ClientID,
		"message_id": msg.Meta.MessageID,
		"channel":    msg.Channel.String(),
		"text":       msg.Text,
	})
	publisher.ToCompany(ctx, msg.Meta.CompanyID, "chat.updated", map[string]any{
		"client_id":  msg.ClientID,
		"message_id": msg.Meta.MessageID,
		"channel":    msg.Channel.String(),
	})
}
