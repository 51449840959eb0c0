// Package history keeps the append-only audit trail of settlements and
// distribution cycles in a relational database. The live ledger never
// reads from it; it serves the query surface and survives restarts
// independently of the state store.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver, cgo-free

	"github.com/levyledger/levyd/internal/events"
)

// ErrClosed is returned by queries after Close.
var ErrClosed = errors.New("history: store closed")

// ErrNotFound is returned when a settlement or distribution does not exist.
var ErrNotFound = errors.New("history: not found")

const defaultCacheSize = 256

// Config selects the backing database.
type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	// DSN is a file path for sqlite or a connection string for postgres.
	DSN string
	// CacheSize bounds the recent-settlement LRU. Zero means the default.
	CacheSize int
}

// Store is the history database handle. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	driver string
	recent *lru.Cache[uint64, events.Settlement]
}

// Open connects, configures the pool, and creates the schema when missing.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		db, err = sql.Open("sqlite", sqliteDSN(cfg.DSN))
		if err == nil {
			// One writer at a time keeps sqlite out of SQLITE_BUSY loops.
			db.SetMaxOpenConns(1)
		}
	case "postgres":
		db, err = sql.Open("postgres", cfg.DSN)
		if err == nil {
			db.SetMaxOpenConns(25)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(time.Hour)
		}
	default:
		return nil, fmt.Errorf("history: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", cfg.Driver, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}

	s := &Store{db: db, driver: cfg.Driver}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[uint64, events.Settlement](size)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("history: cache: %w", err)
	}
	s.recent = cache
	return s, nil
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func (s *Store) initSchema(ctx context.Context) error {
	// The DDL sticks to the type-name subset both drivers accept.
	queries := []string{
		`CREATE TABLE IF NOT EXISTS settlements (
			seq BIGINT PRIMARY KEY,
			id TEXT NOT NULL,
			ts BIGINT NOT NULL,
			invoker TEXT NOT NULL,
			sender TEXT NOT NULL,
			receiver TEXT NOT NULL,
			category TEXT NOT NULL,
			taxed BOOLEAN NOT NULL,
			amount BIGINT NOT NULL,
			tax BIGINT NOT NULL,
			net BIGINT NOT NULL,
			result TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS distributions (
			id TEXT PRIMARY KEY,
			ts BIGINT NOT NULL,
			category TEXT NOT NULL,
			distributed BIGINT NOT NULL,
			converted_in BIGINT NOT NULL,
			secondary_out BIGINT NOT NULL,
			result TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS distribution_payouts (
			distribution_id TEXT NOT NULL,
			entry_idx INTEGER NOT NULL,
			payee TEXT NOT NULL,
			asset TEXT NOT NULL,
			share BIGINT NOT NULL,
			secondary BOOLEAN NOT NULL,
			PRIMARY KEY (distribution_id, entry_idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_settlements_sender ON settlements(sender)`,
		`CREATE INDEX IF NOT EXISTS idx_settlements_receiver ON settlements(receiver)`,
		`CREATE INDEX IF NOT EXISTS idx_distributions_category ON distributions(category, ts)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("history: init schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to the $N form postgres expects.
// sqlite takes queries unchanged.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
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

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
