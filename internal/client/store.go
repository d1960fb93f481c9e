package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatrelay/chatrelay/internal/db"
)

// ErrNotFound is returned when no client matches the lookup.
var ErrNotFound = errors.New("client not found")

// Store persists clients in Postgres.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a client store.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: log.With(slog.String("store", "clients")),
	}
}

const clientColumns = `id::text, company_id::text, channel, external_id,
	username, first_name, last_name, telegram_chat_id, bot_id::text,
	created_at, updated_at`

// Get returns a client by id.
func (s *Store) Get(ctx context.Context, id string) (Client, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1::uuid`, id)
	return scanClient(row)
}

// FindByExternal returns the client for the given identity triple.
func (s *Store) FindByExternal(ctx context.Context, companyID string, channel string, externalID string) (Client, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients
		 WHERE company_id = $1::uuid AND channel = $2 AND external_id = $3`,
		companyID, channel, externalID)
	return scanClient(row)
}

// Resolve finds or creates the client for the identity triple and refreshes
// its profile from the observed fields. Losing the insert race to a
// concurrent writer is handled by re-reading the winner's row.
func (s *Store) Resolve(ctx context.Context, companyID string, channel string, externalID string, profile Profile) (Client, error) {
	companyID = strings.TrimSpace(companyID)
	externalID = strings.TrimSpace(externalID)
	if companyID == "" {
		return Client{}, fmt.Errorf("company id is required")
	}
	if externalID == "" {
		return Client{}, fmt.Errorf("external id is required")
	}

	existing, err := s.FindByExternal(ctx, companyID, channel, externalID)
	if err == nil {
		return s.refreshProfile(ctx, existing, profile)
	}
	if !errors.Is(err, ErrNotFound) {
		return Client{}, err
	}

	created, err := s.create(ctx, companyID, channel, externalID, profile)
	if err == nil {
		return created, nil
	}
	if !db.IsUniqueViolation(err) {
		return Client{}, err
	}

	// Lost the race: a concurrent message created the row first.
	winner, err := s.FindByExternal(ctx, companyID, channel, externalID)
	if err != nil {
		return Client{}, fmt.Errorf("reread after unique violation: %w", err)
	}
	return s.refreshProfile(ctx, winner, profile)
}

func (s *Store) create(ctx context.Context, companyID, channel, externalID string, profile Profile) (Client, error) {
	id := uuid.NewString()
	row := s.pool.QueryRow(ctx,
		`INSERT INTO clients (id, company_id, channel, external_id,
			username, first_name, last_name, telegram_chat_id, bot_id)
		 VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8, $9::uuid)
		 RETURNING `+clientColumns,
		id, companyID, channel, externalID,
		db.ToPgText(strings.TrimSpace(profile.Username)),
		db.ToPgText(strings.TrimSpace(profile.FirstName)),
		db.ToPgText(strings.TrimSpace(profile.LastName)),
		db.ToPgInt8(profile.TelegramChatID),
		db.ToPgText(strings.TrimSpace(profile.BotID)),
	)
	c, err := scanClient(row)
	if err != nil {
		return Client{}, err
	}
	s.logger.Info("client created",
		slog.String("client_id", c.ID),
		slog.String("company_id", c.CompanyID),
		slog.String("channel", c.Channel),
	)
	return c, nil
}

// refreshProfile writes observed display fields back to the row. Empty
// observed values keep the stored ones; the bot back-reference is only set
// once.
func (s *Store) refreshProfile(ctx context.Context, current Client, profile Profile) (Client, error) {
	username := pick(profile.Username, current.Username)
	firstName := pick(profile.FirstName, current.FirstName)
	lastName := pick(profile.LastName, current.LastName)
	chatID := current.TelegramChatID
	if profile.TelegramChatID != 0 {
		chatID = profile.TelegramChatID
	}
	botID := current.BotID
	if botID == "" {
		botID = strings.TrimSpace(profile.BotID)
	}

	if username == current.Username && firstName == current.FirstName &&
		lastName == current.LastName && chatID == current.TelegramChatID &&
		botID == current.BotID {
		return current, nil
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE clients
		 SET username = $2, first_name = $3, last_name = $4,
		     telegram_chat_id = $5, bot_id = $6::uuid, updated_at = now()
		 WHERE id = $1::uuid
		 RETURNING `+clientColumns,
		current.ID,
		db.ToPgText(username),
		db.ToPgText(firstName),
		db.ToPgText(lastName),
		db.ToPgInt8(chatID),
		db.ToPgText(botID),
	)
	return scanClient(row)
}

func pick(observed, stored string) string {
	observed = strings.TrimSpace(observed)
	if observed != "" {
		return observed
	}
	return stored
}

func scanClient(row pgx.Row) (Client, error) {
	var (
		c         Client
		username  pgtype.Text
		firstName pgtype.Text
		lastName  pgtype.Text
		chatID    pgtype.Int8
		botID     pgtype.Text
	)
	err := row.Scan(&c.ID, &c.CompanyID, &c.Channel, &c.ExternalID,
		&username, &firstName, &lastName, &chatID, &botID,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, ErrNotFound
		}
		return Client{}, err
	}
	c.Username = db.TextToString(username)
	c.FirstName = db.TextToString(firstName)
	c.LastName = db.TextToString(lastName)
	c.TelegramChatID = db.Int8ToInt64(chatID)
	c.BotID = db.TextToString(botID)
	return c, nil
}
