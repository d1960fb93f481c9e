package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"

	"github.com/chatrelay/chatrelay/internal/bots"
	"github.com/chatrelay/chatrelay/internal/config"
)

// BotCursorStore is the slice of the bot store the poller needs.
type BotCursorStore interface {
	ListActive(ctx context.Context) ([]bots.Bot, error)
	AdvanceCursor(ctx context.Context, id string, updateID int64) error
}

// updateFetcher is the part of tgbotapi.BotAPI the poller uses.
type updateFetcher interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// Poller pulls Telegram updates for every active bot and runs them through
// the ingestion pipeline. Bots are polled sequentially; one bot's failure
// never blocks the others. The per-bot last_update_id watermark makes
// re-polls idempotent.
type Poller struct {
	bots      BotCursorStore
	runner    Runner
	publisher Publisher
	logger    *slog.Logger
	limit     int
	timeout   int
	running   atomic.Bool

	// newAPI is swappable in tests.
	newAPI func(token string) (updateFetcher, error)
}

// NewPoller creates a poller from config.
func NewPoller(log *slog.Logger, store BotCursorStore, runner Runner, publisher Publisher, cfg config.TelegramConfig) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		bots:      store,
		runner:    runner,
		publisher: publisher,
		logger:    log.With(slog.String("component", "poller")),
		limit:     cfg.PollLimit,
		timeout:   cfg.PollTimeout,
		newAPI: func(token string) (updateFetcher, error) {
			return tgbotapi.NewBotAPI(token)
		},
	}
}

// RunOnce performs one poll pass over all active bots. Overlapping passes
// are collapsed: if one is still running the new call is a no-op, which
// keeps the poller a singleton under any scheduler.
func (p *Poller) RunOnce(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.Debug("previous poll pass still running, skipping")
		return nil
	}
	defer p.running.Store(false)

	items, err := p.bots.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active bots: %w", err)
	}
	for _, bot := range items {
		if err := p.pollBot(ctx, bot); err != nil {
			p.logger.Error("bot poll failed",
				slog.String("bot_id", bot.ID),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

func (p *Poller) pollBot(ctx context.Context, bot bots.Bot) error {
	api, err := p.newAPI(bot.Token)
	if err != nil {
		return fmt.Errorf("telegram api: %w", err)
	}
	updates, err := api.GetUpdates(tgbotapi.UpdateConfig{
		Offset:  int(bot.LastUpdateID) + 1,
		Limit:   p.limit,
		Timeout: p.timeout,
	})
	if err != nil {
		return fmt.Errorf("get updates: %w", err)
	}
	if len(updates) == 0 {
		return nil
	}

	// done tracks the highest update id fully handled, counting skipped
	// updates: an update with nothing to ingest is still consumed.
	var done int64
	for _, update := range updates {
		msg, ok := fromTelegramUpdate(bot, update)
		if ok {
			if err := p.runner.Run(ctx, &msg); err != nil {
				if done > 0 {
					if advErr := p.bots.AdvanceCursor(ctx, bot.ID, done); advErr != nil {
						p.logger.Error("cursor advance failed",
							slog.String("bot_id", bot.ID),
							slog.Any("error", advErr),
						)
					}
				}
				return fmt.Errorf("ingest update %d: %w", update.UpdateID, err)
			}
			announce(ctx, p.publisher, msg)
		}
		done = int64(update.UpdateID)
	}

	if err := p.bots.AdvanceCursor(ctx, bot.ID, done); err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	p.logger.Info("bot polled",
		slog.String("bot_id", bot.ID),
		slog.Int("updates", len(updates)),
		slog.Int64("cursor", done),
	)
	return nil
}

// Schedule registers the poller on a cron instance using the configured
// spec. The returned cron is not started.
func (p *Poller) Schedule(c *cron.Cron, spec string) error {
	_, err := c.AddFunc(spec, func() {
		if err := p.RunOnce(context.Background()); err != nil {
			p.logger.Error("poll pass failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule poller: %w", err)
	}
	return nil
}
