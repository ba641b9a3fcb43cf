// Package sqlstore keeps sealed website sessions in PostgreSQL or SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"           // Registers the PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // Registers the SQLite driver

	"github.com/itchan-dev/crosspost/internal/session"
	"github.com/itchan-dev/crosspost/shared/clock"
	"github.com/itchan-dev/crosspost/shared/config"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

type queries struct {
	schema string
	save   string
	load   string
	delete string
	keys   string
}

var dialects = map[string]queries{
	DriverPostgres: {
		schema: `CREATE TABLE IF NOT EXISTS website_sessions (
	profile_id TEXT NOT NULL,
	website TEXT NOT NULL,
	data BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (profile_id, website)
)`,
		save: `INSERT INTO website_sessions (profile_id, website, data, updated_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (profile_id, website) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		load:   `SELECT data FROM website_sessions WHERE profile_id = $1 AND website = $2`,
		delete: `DELETE FROM website_sessions WHERE profile_id = $1 AND website = $2`,
		keys:   `SELECT profile_id, website FROM website_sessions ORDER BY website, profile_id`,
	},
	DriverSQLite: {
		schema: `CREATE TABLE IF NOT EXISTS website_sessions (
	profile_id TEXT NOT NULL,
	website TEXT NOT NULL,
	data BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (profile_id, website)
)`,
		save: `INSERT INTO website_sessions (profile_id, website, data, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (profile_id, website) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		load:   `SELECT data FROM website_sessions WHERE profile_id = ? AND website = ?`,
		delete: `DELETE FROM website_sessions WHERE profile_id = ? AND website = ?`,
		keys:   `SELECT profile_id, website FROM website_sessions ORDER BY website, profile_id`,
	},
}

// Store implements session.Durable. Every operation is a single statement.
type Store struct {
	db    *sql.DB
	q     queries
	clock clock.Clock
}

// New wraps an open database. It panics on an unknown driver.
func New(db *sql.DB, driver string, clk clock.Clock) *Store {
	q, ok := dialects[driver]
	if !ok {
		panic(fmt.Sprintf("sqlstore: unknown driver %q", driver))
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Store{db: db, q: q, clock: clk}
}

// Open connects using the storage section of cfg and creates the schema.
func Open(ctx context.Context, cfg *config.Config, clk clock.Clock) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Public.Storage.Driver {
	case DriverPostgres:
		pg := cfg.Private.Pg
		db, err = sql.Open(DriverPostgres, fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			pg.Host, pg.Port, pg.User, pg.Password, pg.Dbname))
		if err == nil {
			db.SetMaxOpenConns(10)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(5 * time.Minute)
		}
	case DriverSQLite:
		db, err = sql.Open(DriverSQLite, cfg.Public.Storage.SqlitePath)
		if err == nil {
			// SQLite allows a single writer.
			db.SetMaxOpenConns(1)
		}
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Public.Storage.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := New(db, cfg.Public.Storage.Driver, clk)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.q.schema); err != nil {
		return fmt.Errorf("creating website_sessions: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, key session.Key, data []byte) error {
	_, err := s.db.ExecContext(ctx, s.q.save, key.ProfileID, key.Website, data, s.clock.Now().UTC())
	return err
}

func (s *Store) Load(ctx context.Context, key session.Key) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, s.q.load, key.ProfileID, key.Website).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, key session.Key) error {
	_, err := s.db.ExecContext(ctx, s.q.delete, key.ProfileID, key.Website)
	return err
}

func (s *Store) Keys(ctx context.Context) ([]session.Key, error) {
	rows, err := s.db.QueryContext(ctx, s.q.keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []session.Key
	for rows.Next() {
		var k session.Key
		if err := rows.Scan(&k.ProfileID, &k.Website); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
