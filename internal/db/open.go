package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultPath         = "./data/gatehouse.db"
	defaultMaxOpenConns = 4
	pingTimeout         = 3 * time.Second
)

type Config struct {
	Path         string // e.g. "./data/gatehouse.db"
	Env          string // "dev" | "prod"
	MaxOpenConns int    // read pool size; writes are serialized by Worker
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = defaultPath
	}
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = defaultMaxOpenConns
	}
	return c
}

// pragmas are applied by the driver on every new connection. WAL lets
// report queries read while the writer holds a transaction; prod trades
// some write latency for fsync on every commit.
func (c Config) pragmas() []string {
	sync := "NORMAL"
	if c.Env == "prod" {
		sync = "FULL"
	}
	return []string{
		"foreign_keys(1)",
		"journal_mode(WAL)",
		"synchronous(" + sync + ")",
		"busy_timeout(5000)",
	}
}

// DSN renders the modernc.org/sqlite connection string for c.
func (c Config) DSN() string {
	q := url.Values{}
	for _, p := range c.pragmas() {
		q.Add("_pragma", p)
	}
	return "file:" + c.Path + "?" + q.Encode()
}

// Open creates the parent directory if needed, connects, verifies the
// connection and applies pending migrations.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	cfg = cfg.withDefaults()

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	conn, err := sql.Open("sqlite", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Path, err)
	}
	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxOpenConns)
	conn.SetConnMaxLifetime(0)

	if err := ready(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func ready(ctx context.Context, conn *sql.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return Migrate(ctx, conn)
}
