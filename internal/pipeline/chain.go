// Package pipeline runs every inbound message through the ordered ingestion
// stages: identity resolution, persistence, then AI enrichment.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chatrelay/chatrelay/internal/channel"
)

// Stage is one ingestion step. A returned error is fatal and aborts the
// chain; best-effort stages swallow their own failures and return nil.
type Stage interface {
	Name() string
	Process(ctx context.Context, msg *channel.InboundMessage) error
}

// Chain runs stages in order over a single message.
type Chain struct {
	stages []Stage
	logger *slog.Logger
}

// NewChain creates a chain over the given stages, in order.
func NewChain(log *slog.Logger, stages ...Stage) *Chain {
	if log == nil {
		log = slog.Default()
	}
	return &Chain{
		stages: stages,
		logger: log.With(slog.String("component", "pipeline")),
	}
}

// Run processes msg through every stage. The first stage error aborts the
// run and is returned wrapped with the stage name.
func (c *Chain) Run(ctx context.Context, msg *channel.InboundMessage) error {
	for _, stage := range c.stages {
		if err := stage.Process(ctx, msg); err != nil {
			return fmt.Errorf("stage %s: %w", stage.Name(), err)
		}
		c.logger.Debug("stage done",
			slog.String("stage", stage.Name()),
			slog.String("channel", msg.Channel.String()),
			slog.String("client_id", msg.ClientID),
		)
	}
	return nil
}
