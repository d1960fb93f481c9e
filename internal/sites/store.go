// Package sites stores the web chat widget registrations.
package sites

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatrelay/chatrelay/internal/db"
)

// ErrNotFound is returned when no site matches the lookup.
var ErrNotFound = errors.New("chat site not found")

// Site is one embeddable web chat widget belonging to a company. Its token
// authenticates the widget's intake endpoint.
type Site struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Token     string    `json:"-"`
	Name      string    `json:"name,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists chat sites in Postgres.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a site store.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: log.With(slog.String("store", "chat_sites")),
	}
}

// GetByToken returns the active site registered with the given token.
func (s *Store) GetByToken(ctx context.Context, token string) (Site, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Site{}, ErrNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT id::text, company_id::text, token, name, is_active, created_at
		 FROM chat_sites WHERE token = $1 AND is_active`, token)
	var (
		site Site
		name pgtype.Text
	)
	err := row.Scan(&site.ID, &site.CompanyID, &site.Token, &name, &site.IsActive, &site.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Site{}, ErrNotFound
		}
		return Site{}, err
	}
	site.Name = db.TextToString(name)
	return site, nil
}
