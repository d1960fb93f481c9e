// Package db owns the Postgres connection pool and shared pgx helpers.
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatrelay/chatrelay/internal/config"
)

// Connect opens a pgx pool against the configured database and verifies it
// with a ping.
func Connect(ctx context.Context, log *slog.Logger, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	if log == nil {
		log = slog.Default()
	}
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	log.Info("postgres connected",
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Database),
	)
	return pool, nil
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ToPgText converts a string into a pgtype.Text, treating empty as NULL.
func ToPgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// TextToString unwraps a nullable pgtype.Text.
func TextToString(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

// ToPgInt8 converts an int64 into a pgtype.Int8, treating zero as NULL.
func ToPgInt8(v int64) pgtype.Int8 {
	return pgtype.Int8{Int64: v, Valid: v != 0}
}

// Int8ToInt64 unwraps a nullable pgtype.Int8.
func Int8ToInt64(v pgtype.Int8) int64 {
	if !v.Valid {
		return 0
	}
	return v.Int64
}
