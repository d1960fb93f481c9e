package message

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no message matches the lookup.
var ErrNotFound = errors.New("message not found")

// Store persists messages in Postgres.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a message store.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: log.With(slog.String("store", "messages")),
	}
}

// Create writes a message row and returns it with id and created_at set.
func (s *Store) Create(ctx context.Context, params CreateParams) (Message, error) {
	clientID := strings.TrimSpace(params.ClientID)
	if clientID == "" {
		return Message{}, fmt.Errorf("client id is required")
	}
	direction := strings.TrimSpace(params.Direction)
	if direction != DirectionIn && direction != DirectionOut {
		return Message{}, fmt.Errorf("invalid direction: %s", params.Direction)
	}
	payload := params.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode payload: %w", err)
	}
	id := uuid.NewString()
	row := s.pool.QueryRow(ctx,
		`INSERT INTO messages (id, client_id, direction, body, payload)
		 VALUES ($1::uuid, $2::uuid, $3, $4, $5)
		 RETURNING id::text, client_id::text, direction, body, payload, created_at`,
		id, clientID, direction, params.Text, encoded)
	return scanMessage(row)
}

// Get returns a message by id.
func (s *Store) Get(ctx context.Context, id string) (Message, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id::text, client_id::text, direction, body, payload, created_at
		 FROM messages WHERE id = $1::uuid`, id)
	return scanMessage(row)
}

// PatchIntent sets payload.intent on an existing row. This is the only
// sanctioned post-write mutation of a message.
func (s *Store) PatchIntent(ctx context.Context, id string, intent string) error {
	intent = strings.TrimSpace(intent)
	if intent == "" {
		return fmt.Errorf("intent is required")
	}
	encoded, err := json.Marshal(intent)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET payload = jsonb_set(payload, '{intent}', $2::jsonb)
		 WHERE id = $1::uuid`,
		id, encoded)
	if err != nil {
		return fmt.Errorf("patch intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByClient returns the newest messages for a client, most recent first.
func (s *Store) ListByClient(ctx context.Context, clientID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, client_id::text, direction, body, payload, created_at
		 FROM messages WHERE client_id = $1::uuid
		 ORDER BY created_at DESC LIMIT $2`,
		clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, msg)
	}
	return items, rows.Err()
}

func scanMessage(row pgx.Row) (Message, error) {
	var (
		msg     Message
		encoded []byte
	)
	err := row.Scan(&msg.ID, &msg.ClientID, &msg.Direction, &msg.Text, &encoded, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, err
	}
	if len(encoded) > 0 {
		if err := json.Unmarshal(encoded, &msg.Payload); err != nil {
			return Message{}, fmt.Errorf("decode payload: %w", err)
		}
	}
	if msg.Payload == nil {
		msg.Payload = map[string]any{}
	}
	return msg, nil
}
