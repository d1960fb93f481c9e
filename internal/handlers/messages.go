package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/chatrelay/chatrelay/internal/channel"
	"github.com/chatrelay/chatrelay/internal/channel/adapters/telegram"
	"github.com/chatrelay/chatrelay/internal/client"
	"github.com/chatrelay/chatrelay/internal/message"
)

// ClientSource is the slice of the client store the API needs.
type ClientSource interface {
	Get(ctx context.Context, id string) (client.Client, error)
}

// MessageStore is the slice of the message store the API needs.
type MessageStore interface {
	Create(ctx context.Context, params message.CreateParams) (message.Message, error)
	ListByClient(ctx context.Context, clientID string, limit int) ([]message.Message, error)
}

// CompanyPublisher nudges company dashboards after outbound sends.
type CompanyPublisher interface {
	ToCompany(ctx context.Context, companyID, event string, data map[string]any)
}

// MessagesHandler serves the operator-facing message API: outbound sends and
// per-client history.
type MessagesHandler struct {
	clients   ClientSource
	messages  MessageStore
	registry  *channel.Registry
	publisher CompanyPublisher
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewMessagesHandler creates the message API handler.
func NewMessagesHandler(log *slog.Logger, clients ClientSource, messages MessageStore, registry *channel.Registry, publisher CompanyPublisher) *MessagesHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MessagesHandler{
		clients:   clients,
		messages:  messages,
		registry:  registry,
		publisher: publisher,
		validate:  validator.New(),
		logger:    log.With(slog.String("handler", "messages")),
	}
}

// Register mounts the routes.
func (h *MessagesHandler) Register(e *echo.Echo) {
	e.POST("/messages/send", h.handleSend)
	e.GET("/clients/:id/messages", h.handleList)
}

type sendRequest struct {
	ClientID string `json:"client_id" validate:"required,uuid"`
	Text     string `json:"text" validate:"required"`
}

func (h *MessagesHandler) handleSend(c echo.Context) error {
	ctx := c.Request().Context()
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	target, err := h.clients.Get(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "client not found"})
		}
		h.logger.Error("client lookup failed", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "client lookup failed"})
	}

	stored, err := h.messages.Create(ctx, message.CreateParams{
		ClientID:  target.ID,
		Direction: message.DirectionOut,
		Text:      req.Text,
	})
	if err != nil {
		h.logger.Error("persist outbound failed", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "persist failed"})
	}

	if err := h.registry.Dispatch(ctx, outboundFor(target, req.Text)); err != nil {
		h.logger.Error("outbound dispatch failed",
			slog.String("client_id", target.ID),
			slog.Any("error", err),
		)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "delivery failed"})
	}

	if h.publisher != nil {
		h.publisher.ToCompany(ctx, target.CompanyID, "chat.updated", map[string]any{
			"client_id":  target.ID,
			"message_id": stored.ID,
			"channel":    target.Channel,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "message_id": stored.ID})
}

// outboundFor maps a client row to its delivery target.
func outboundFor(target client.Client, text string) channel.OutboundMessage {
	msg := channel.OutboundMessage{
		Channel: channel.ChannelType(target.Channel),
		Target:  target.ExternalID,
		Text:    text,
	}
	switch msg.Channel {
	case channel.ChannelTelegram:
		if target.TelegramChatID != 0 {
			msg.Target = strconv.FormatInt(target.TelegramChatID, 10)
		}
		if target.BotID != "" {
			msg.Meta = map[string]string{telegram.MetaBotID: target.BotID}
		}
	case channel.ChannelWeb:
		msg.Target = target.ID
	}
	return msg
}

func (h *MessagesHandler) handleList(c echo.Context) error {
	ctx := c.Request().Context()
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	items, err := h.messages.ListByClient(ctx, c.Param("id"), limit)
	if err != nil {
		h.logger.Error("list messages failed", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}
