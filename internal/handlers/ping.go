// Package handlers contains the public HTTP API handlers.
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// PingHandler answers health probes.
type PingHandler struct{}

// NewPingHandler creates a PingHandler.
func NewPingHandler() *PingHandler {
	return &PingHandler{}
}

// Register mounts the route.
func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.handlePing)
}

func (h *PingHandler) handlePing(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
