package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
}

// DB wraps database/sql with the driver name so queries written with '?'
// placeholders can be rebound for postgres.
type DB struct {
	*sql.DB
	driver string
}

// Open connects to sqlite or postgres depending on the DSN scheme.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver := "sqlite"
	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		driver = "pgx"
	}
	logger.Info("connecting to database", "driver", driver)

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		logger.Error("failed to ping database", "error", err)
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("successfully connected to database")
	return &DB{DB: db, driver: driver}, nil
}

// Rebind rewrites '?' placeholders to '$n' for the postgres driver.
func (d *DB) Rebind(query string) string {
	if d.driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const invoicesSchema = `
CREATE TABLE IF NOT EXISTS invoices (
	id             TEXT PRIMARY KEY,
	file_path      TEXT NOT NULL UNIQUE,
	invoice_number TEXT NOT NULL,
	supplier_name  TEXT NOT NULL DEFAULT '',
	amount         TEXT NOT NULL DEFAULT '',
	issue_date     TEXT NOT NULL DEFAULT '',
	due_date       TEXT NOT NULL DEFAULT '',
	needs_review   INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL
)`

// Migrate creates the schema when missing. The SQL is kept portable between
// sqlite and postgres.
func Migrate(ctx context.Context, db *DB) error {
	if _, err := db.ExecContext(ctx, invoicesSchema); err != nil {
		return fmt.Errorf("migrate invoices: %w", err)
	}
	return nil
}
