// Package telegram delivers outbound messages through the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/chatrelay/chatrelay/internal/bots"
	"github.com/chatrelay/chatrelay/internal/channel"
)

// MetaBotID is the outbound meta key naming the bot that owns the dialog.
const MetaBotID = "bot_id"

// BotSource resolves bot ids to their registration (and token).
type BotSource interface {
	Get(ctx context.Context, id string) (bots.Bot, error)
}

// botSender is the part of tgbotapi.BotAPI the adapter uses.
type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Adapter sends outbound messages via Telegram. Provider errors propagate to
// the caller: a failed Telegram delivery is a failed send.
type Adapter struct {
	source BotSource
	logger *slog.Logger

	mu   sync.RWMutex
	apis map[string]botSender

	// newAPI is swappable in tests.
	newAPI func(token string) (botSender, error)
}

// NewAdapter creates a Telegram egress adapter backed by the bot store.
func NewAdapter(log *slog.Logger, source BotSource) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		source: source,
		logger: log.With(slog.String("adapter", "telegram")),
		apis:   map[string]botSender{},
		newAPI: func(token string) (botSender, error) {
			return tgbotapi.NewBotAPI(token)
		},
	}
}

// Name implements channel.Adapter.
func (a *Adapter) Name() string { return "telegram" }

// Supports implements channel.Adapter.
func (a *Adapter) Supports(channelType channel.ChannelType) bool {
	return channelType == channel.ChannelTelegram
}

// Send delivers the message to the Telegram chat named by msg.Target.
func (a *Adapter) Send(ctx context.Context, msg channel.OutboundMessage) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(msg.Target), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram target %q: %w", msg.Target, err)
	}
	botID := strings.TrimSpace(msg.Meta[MetaBotID])
	if botID == "" {
		return fmt.Errorf("outbound meta %s is required", MetaBotID)
	}
	bot, err := a.source.Get(ctx, botID)
	if err != nil {
		return fmt.Errorf("resolve bot %s: %w", botID, err)
	}
	api, err := a.getOrCreateAPI(bot.Token)
	if err != nil {
		return fmt.Errorf("telegram api for bot %s: %w", botID, err)
	}
	if _, err := api.Send(tgbotapi.NewMessage(chatID, msg.Text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	a.logger.Debug("message sent",
		slog.String("bot_id", botID),
		slog.Int64("chat_id", chatID),
	)
	return nil
}

func (a *Adapter) getOrCreateAPI(token string) (botSender, error) {
	a.mu.RLock()
	api, ok := a.apis[token]
	a.mu.RUnlock()
	if ok {
		return api, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if api, ok := a.apis[token]; ok {
		return api, nil
	}
	api, err := a.newAPI(token)
	if err != nil {
		return nil, err
	}
	a.apis[token] = api
	return api, nil
}
