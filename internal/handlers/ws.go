package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/chatrelay/chatrelay/internal/client"
	"github.com/chatrelay/chatrelay/internal/realtime"
)

// WSHandler upgrades widget connections and streams a client's realtime
// events to them.
type WSHandler struct {
	gateway  *realtime.Gateway
	clients  ClientSource
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWSHandler creates the websocket handler.
func NewWSHandler(log *slog.Logger, gateway *realtime.Gateway, clients ClientSource) *WSHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WSHandler{
		gateway: gateway,
		clients: clients,
		upgrader: websocket.Upgrader{
			// Widgets are embedded on arbitrary customer sites.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: log.With(slog.String("handler", "ws")),
	}
}

// Register mounts the route.
func (h *WSHandler) Register(e *echo.Echo) {
	e.GET("/ws/client/:id", h.handleClient)
}

func (h *WSHandler) handleClient(c echo.Context) error {
	clientID := c.Param("id")
	if _, err := h.clients.Get(c.Request().Context(), clientID); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "client not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "client lookup failed"})
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	h.gateway.Attach(clientID, conn)
	defer h.gateway.Detach(clientID, conn)

	// Inbound frames are ignored; the read loop only detects disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}
