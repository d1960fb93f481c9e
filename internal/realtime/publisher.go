package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Transport carries serialized envelopes to subscribers.
type Transport interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Publisher wraps caller payloads in envelopes and publishes them. Delivery
// is best-effort: failures are logged, never returned, so a broken pub/sub
// fabric cannot fail message ingestion.
type Publisher struct {
	transport Transport
	logger    *slog.Logger
}

// NewPublisher creates a Publisher over the given transport.
func NewPublisher(log *slog.Logger, transport Transport) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		transport: transport,
		logger:    log.With(slog.String("component", "realtime")),
	}
}

// ClientChannel names the per-client event channel.
func ClientChannel(clientID string) string {
	return "chat.client." + clientID
}

// CompanyChannel names the per-company event channel.
func CompanyChannel(companyID string) string {
	return "chat.company." + companyID
}

// ToClient publishes an event on the client's channel.
func (p *Publisher) ToClient(ctx context.Context, clientID, event string, data map[string]any) {
	p.publish(ctx, ClientChannel(clientID), event, data)
}

// ToCompany publishes an event on the company's channel.
func (p *Publisher) ToCompany(ctx context.Context, companyID, event string, data map[string]any) {
	p.publish(ctx, CompanyChannel(companyID), event, data)
}

func (p *Publisher) publish(ctx context.Context, channel, event string, data map[string]any) {
	if p.transport == nil {
		return
	}
	payload := make(map[string]any, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload[keyEvent] = event
	encoded, err := json.Marshal(newEnvelope(payload))
	if err != nil {
		p.logger.Error("encode envelope failed",
			slog.String("channel", channel),
			slog.String("event", event),
			slog.Any("error", err),
		)
		return
	}
	if err := p.transport.Publish(ctx, channel, encoded); err != nil {
		p.logger.Error("publish failed",
			slog.String("channel", channel),
			slog.String("event", event),
			slog.Any("error", err),
		)
	}
}
