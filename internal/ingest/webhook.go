package ingest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"

	"github.com/chatrelay/chatrelay/internal/bots"
	"github.com/chatrelay/chatrelay/internal/channel"
	"github.com/chatrelay/chatrelay/internal/ratelimit"
	"github.com/chatrelay/chatrelay/internal/sites"
)

// BotSource resolves webhook tokens to Telegram bots.
type BotSource interface {
	GetByToken(ctx context.Context, token string) (bots.Bot, error)
}

// SiteSource resolves intake tokens to web chat sites.
type SiteSource interface {
	GetByToken(ctx context.Context, token string) (sites.Site, error)
}

// Runner is the ingestion pipeline entrypoint.
type Runner interface {
	Run(ctx context.Context, msg *channel.InboundMessage) error
}

// Limiter throttles web chat visitors.
type Limiter interface {
	Consume(ctx context.Context, sessionID string, tokens int) (ratelimit.Decision, error)
}

// WebhookHandler receives provider callbacks and web chat widget posts.
type WebhookHandler struct {
	bots      BotSource
	sites     SiteSource
	runner    Runner
	limiter   Limiter
	publisher Publisher
	logger    *slog.Logger
}

// NewWebhookHandler creates the intake handler.
func NewWebhookHandler(log *slog.Logger, botSource BotSource, siteSource SiteSource, runner Runner, limiter Limiter, publisher Publisher) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		bots:      botSource,
		sites:     siteSource,
		runner:    runner,
		limiter:   limiter,
		publisher: publisher,
		logger:    log.With(slog.String("handler", "webhook")),
	}
}

// Register mounts the intake routes.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhook/telegram/:token", h.handleTelegram)
	e.POST("/webhook/web/:token", h.handleWeb)
}

func (h *WebhookHandler) handleTelegram(c echo.Context) error {
	ctx := c.Request().Context()
	bot, err := h.bots.GetByToken(ctx, c.Param("token"))
	if err != nil {
		if errors.Is(err, bots.ErrNotFound) {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "invalid token"})
		}
		h.logger.Error("bot lookup failed", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "bot lookup failed"})
	}

	var update tgbotapi.Update
	if err := c.Bind(&update); err != nil {
		// Telegram retries on non-2xx; a malformed body will never parse
		// better next time, so ack it away.
		h.logger.Warn("malformed telegram update", slog.String("bot_id", bot.ID), slog.Any("error", err))
		return c.JSON(http.StatusOK, map[string]bool{"ok": true})
	}

	msg, ok := fromTelegramUpdate(bot, update)
	if !ok {
		return c.JSON(http.StatusOK, map[string]bool{"ok": true})
	}

	if err := h.runner.Run(ctx, &msg); err != nil {
		h.logger.Error("pipeline failed",
			slog.String("bot_id", bot.ID),
			slog.Int("update_id", update.UpdateID),
			slog.Any("error", err),
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "ingest failed"})
	}

	announce(ctx, h.publisher, msg)
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

type webIntakeRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Name      string `json:"name"`
}

func (h *WebhookHandler) handleWeb(c echo.Context) error {
	ctx := c.Request().Context()
	site, err := h.sites.GetByToken(ctx, c.Param("token"))
	if err != nil {
		if errors.Is(err, sites.ErrNotFound) {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "invalid token"})
		}
		h.logger.Error("site lookup failed", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "site lookup failed"})
	}

	var req webIntakeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusOK, map[string]bool{"ok": true})
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.Text = strings.TrimSpace(req.Text)
	if req.SessionID == "" || req.Text == "" {
		return c.JSON(http.StatusOK, map[string]bool{"ok": true})
	}

	if h.limiter != nil {
		decision, err := h.limiter.Consume(ctx, site.ID+":"+req.SessionID, 1)
		if err != nil {
			// The limiter is an abuse deterrent, not a correctness control;
			// when its cache is down messages still flow.
			h.logger.Warn("rate limiter unavailable", slog.String("site_id", site.ID), slog.Any("error", err))
		} else if !decision.Allowed {
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"error":       "rate limited",
				"retry_after": decision.RetryAfter.Unix(),
			})
		}
	}

	msg := channel.InboundMessage{
		Channel:    channel.ChannelWeb,
		ExternalID: req.SessionID,
		Text:       req.Text,
		ReceivedAt: time.Now(),
		Meta: channel.Meta{
			CompanyID: site.CompanyID,
			SiteID:    site.ID,
			Username:  strings.TrimSpace(req.Name),
			Content:   channel.ContentText,
		},
	}
	if err := h.runner.Run(ctx, &msg); err != nil {
		h.logger.Error("pipeline failed",
			slog.String("site_id", site.ID),
			slog.Any("error", err),
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "ingest failed"})
	}

	announce(ctx, h.publisher, msg)
	return c.JSON(http.StatusOK, map[string]any{
		"ok":         true,
		"client_id":  msg.ClientID,
		"message_id": msg.Meta.MessageID,
	})
}
