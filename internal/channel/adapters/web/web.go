// Package web delivers outbound messages to web chat widgets over the
// realtime fabric.
package web

import (
	"context"
	"log/slog"

	"github.com/chatrelay/chatrelay/internal/channel"
)

// Publisher is the slice of the realtime publisher the adapter needs.
type Publisher interface {
	ToClient(ctx context.Context, clientID, event string, data map[string]any)
}

// Adapter publishes outbound messages on the client's realtime channel. The
// widget may be offline; delivery is best-effort and Send never fails.
type Adapter struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewAdapter creates a web egress adapter.
func NewAdapter(log *slog.Logger, publisher Publisher) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		publisher: publisher,
		logger:    log.With(slog.String("adapter", "web")),
	}
}

// Name implements channel.Adapter.
func (a *Adapter) Name() string { return "web" }

// Supports implements channel.Adapter.
func (a *Adapter) Supports(channelType channel.ChannelType) bool {
	return channelType == channel.ChannelWeb
}

// Send publishes the message to chat.client.<target>. Target is the client
// id for the web channel.
func (a *Adapter) Send(ctx context.Context, msg channel.OutboundMessage) error {
	if a.publisher == nil {
		a.logger.Debug("dropping web message, no publisher", slog.String("target", msg.Target))
		return nil
	}
	a.publisher.ToClient(ctx, msg.Target, "message.outbound", map[string]any{
		"client_id": msg.Target,
		"text":      msg.Text,
		"direction": "out",
	})
	return nil
}
