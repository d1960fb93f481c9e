package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Adapter delivers outbound messages for the channel types it supports.
type Adapter interface {
	Name() string
	Supports(channelType ChannelType) bool
	Send(ctx context.Context, msg OutboundMessage) error
}

// Registry holds channel adapters in registration order and dispatches each
// outbound message to the first adapter that supports its channel. It must be
// created via NewRegistry and passed explicitly to components that need it.
type Registry struct {
	mu       sync.RWMutex
	adapters []Adapter
	logger   *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		logger: log.With(slog.String("component", "channel.registry")),
	}
}

// Register appends an adapter. Order matters: Dispatch picks the first
// registered adapter whose Supports returns true.
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return fmt.Errorf("adapter is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters = append(r.adapters, adapter)
	return nil
}

// MustRegister calls Register and panics on error.
func (r *Registry) MustRegister(adapter Adapter) {
	if err := r.Register(adapter); err != nil {
		panic(err)
	}
}

// Adapters returns the registered adapters in dispatch order.
func (r *Registry) Adapters() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]Adapter, len(r.adapters))
	copy(items, r.adapters)
	return items
}

// Dispatch sends the message through the first adapter supporting its
// channel. When no adapter matches, the message is dropped with a log line
// and no error: unroutable channels are not a caller failure.
func (r *Registry) Dispatch(ctx context.Context, msg OutboundMessage) error {
	r.mu.RLock()
	adapters := r.adapters
	r.mu.RUnlock()
	for _, adapter := range adapters {
		if !adapter.Supports(msg.Channel) {
			continue
		}
		if err := adapter.Send(ctx, msg); err != nil {
			return fmt.Errorf("adapter %s send: %w", adapter.Name(), err)
		}
		return nil
	}
	r.logger.Warn("no adapter for channel",
		slog.String("channel", msg.Channel.String()),
		slog.String("target", msg.Target),
	)
	return nil
}
