package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Config is only required when SESSION_BACKEND=sqlite.
type Config struct {
	Path        string `envconfig:"SQLITE_PATH" default:"./data/mf_advisor.db"`
	BusyTimeout int    `envconfig:"SQLITE_BUSY_TIMEOUT_MS" default:"5000"`
}

// Open creates the parent directory, opens the database in WAL mode and pings it.
func (c *Config) Open(ctx context.Context) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", c.Path, c.BusyTimeout)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// a single writer avoids SQLITE_BUSY on concurrent turns
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
