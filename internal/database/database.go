// Package database opens the PostgreSQL connection pool behind the user
// repository and creates its schema.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/user-service/internal/config"
	"github.com/Sternrassler/user-service/pkg/logging"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// codeUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const codeUniqueViolation = "23505"

// Open connects to PostgreSQL and verifies the connection within the
// configured connect timeout.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*bun.DB, error) {
	sqldb, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.IdleTimeout > 0 {
		sqldb.SetConnMaxIdleTime(cfg.IdleTimeout)
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	db.AddQueryHook(NewQueryHook())

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logging.Ctx(ctx).Info().
		Str("host", cfg.Host).
		Str("database", cfg.Name).
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("Connected to database")
	return db, nil
}

// Migrate creates the tables for models that do not exist yet.
func Migrate(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
		logging.Ctx(ctx).Info().Str("model", fmt.Sprintf("%T", model)).Msg("Table ensured")
	}
	return nil
}

// IsUniqueViolation reports whether err was caused by a unique constraint.
// Both PostgreSQL and SQLite are recognized.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
