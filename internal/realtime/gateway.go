package realtime

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// Gateway fans Redis client-channel events out to attached websockets. Each
// websocket is attached to one client id; one Redis pattern subscription
// serves all of them.
type Gateway struct {
	client *redis.Client
	logger *slog.Logger

	mu    sync.RWMutex
	rooms map[string]map[*websocket.Conn]struct{}
}

// NewGateway creates a Gateway over the given Redis client.
func NewGateway(log *slog.Logger, client *redis.Client) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		client: client,
		logger: log.With(slog.String("component", "realtime.gateway")),
		rooms:  map[string]map[*websocket.Conn]struct{}{},
	}
}

// Run subscribes to all client channels and forwards events until ctx ends.
func (g *Gateway) Run(ctx context.Context) {
	pubsub := g.client.PSubscribe(ctx, ClientChannel("*"))
	defer pubsub.Close()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			clientID := strings.TrimPrefix(msg.Channel, ClientChannel(""))
			g.broadcast(clientID, []byte(msg.Payload))
		}
	}
}

// Attach registers a websocket for a client's events.
func (g *Gateway) Attach(clientID string, conn *websocket.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[clientID]
	if !ok {
		room = map[*websocket.Conn]struct{}{}
		g.rooms[clientID] = room
	}
	room[conn] = struct{}{}
}

// Detach removes a websocket and closes it.
func (g *Gateway) Detach(clientID string, conn *websocket.Conn) {
	g.mu.Lock()
	if room, ok := g.rooms[clientID]; ok {
		delete(room, conn)
		if len(room) == 0 {
			delete(g.rooms, clientID)
		}
	}
	g.mu.Unlock()
	_ = conn.Close()
}

func (g *Gateway) broadcast(clientID string, payload []byte) {
	g.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(g.rooms[clientID]))
	for conn := range g.rooms[clientID] {
		conns = append(conns, conn)
	}
	g.mu.RUnlock()
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			g.logger.Debug("websocket write failed, detaching",
				slog.String("client_id", clientID),
				slog.Any("error", err),
			)
			g.Detach(clientID, conn)
		}
	}
}
