package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/chatrelay/chatrelay/internal/channel"
	"github.com/chatrelay/chatrelay/internal/client"
)

// ClientResolver finds or creates the client row for an inbound identity.
type ClientResolver interface {
	Resolve(ctx context.Context, companyID string, channel string, externalID string, profile client.Profile) (client.Client, error)
}

// Normalize resolves the message sender to a client and stamps the handle
// onto the message for the rest of the chain. It is fatal: without an
// identity nothing downstream can run.
type Normalize struct {
	clients ClientResolver
	logger  *slog.Logger
}

// NewNormalize creates the identity resolution stage.
func NewNormalize(log *slog.Logger, clients ClientResolver) *Normalize {
	if log == nil {
		log = slog.Default()
	}
	return &Normalize{
		clients: clients,
		logger:  log.With(slog.String("stage", "normalize")),
	}
}

func (n *Normalize) Name() string { return "normalize" }

func (n *Normalize) Process(ctx context.Context, msg *channel.InboundMessage) error {
	externalID := strings.TrimSpace(msg.ExternalID)
	if externalID == "" {
		return fmt.Errorf("external id is required")
	}
	companyID := strings.TrimSpace(msg.Meta.CompanyID)
	if companyID == "" {
		return fmt.Errorf("company id is required")
	}

	profile := client.Profile{
		Username:  msg.Meta.Username,
		FirstName: msg.Meta.FirstName,
		LastName:  msg.Meta.LastName,
	}
	if msg.Channel == channel.ChannelTelegram {
		if chatID, err := strconv.ParseInt(externalID, 10, 64); err == nil {
			profile.TelegramChatID = chatID
		}
		profile.BotID = msg.Meta.BotID
	}

	resolved, err := n.clients.Resolve(ctx, companyID, msg.Channel.String(), externalID, profile)
	if err != nil {
		return fmt.Errorf("resolve client: %w", err)
	}
	msg.ClientID = resolved.ID
	msg.Meta.Client = &resolved
	return nil
}
