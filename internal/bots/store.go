package bots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatrelay/chatrelay/internal/db"
)

// ErrNotFound is returned when no bot matches the lookup.
var ErrNotFound = errors.New("bot not found")

// Store persists Telegram bots in Postgres.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a bot store.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: log.With(slog.String("store", "telegram_bots")),
	}
}

const botColumns = `id::text, company_id::text, token, username, is_active,
	last_update_id, created_at, updated_at`

// Get returns a bot by id.
func (s *Store) Get(ctx context.Context, id string) (Bot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+botColumns+` FROM telegram_bots WHERE id = $1::uuid`, id)
	return scanBot(row)
}

// GetByToken returns the active bot registered with the given token.
// Inactive bots are invisible here so their webhooks are rejected.
func (s *Store) GetByToken(ctx context.Context, token string) (Bot, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Bot{}, ErrNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+botColumns+` FROM telegram_bots
		 WHERE token = $1 AND is_active`, token)
	return scanBot(row)
}

// ListActive returns all bots eligible for polling.
func (s *Store) ListActive(ctx context.Context) ([]Bot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+botColumns+` FROM telegram_bots WHERE is_active ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Bot
	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, bot)
	}
	return items, rows.Err()
}

// AdvanceCursor moves the poll watermark forward to updateID. GREATEST keeps
// the cursor monotonic even if two pollers race.
func (s *Store) AdvanceCursor(ctx context.Context, id string, updateID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE telegram_bots
		 SET last_update_id = GREATEST(last_update_id, $2), updated_at = now()
		 WHERE id = $1::uuid`,
		id, updateID)
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBot(row pgx.Row) (Bot, error) {
	var (
		bot      Bot
		username pgtype.Text
	)
	err := row.Scan(&bot.ID, &bot.CompanyID, &bot.Token, &username,
		&bot.IsActive, &bot.LastUpdateID, &bot.CreatedAt, &bot.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bot{}, ErrNotFound
		}
		return Bot{}, err
	}
	bot.Username = db.TextToString(username)
	return bot, nil
}
