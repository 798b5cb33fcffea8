package sessioncache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ESN-MoRe/members-manager/internal/components/chrono"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

const sqlSchema = `create table if not exists cache_entries (
	key text primary key,
	value blob not null,
	expires_at integer not null
)`

// SQLStore keeps entries in a single table, expires_at is unix milliseconds and 0
// for entries without a ttl. Expired rows are removed when they are read.
type SQLStore struct {
	db    *sql.DB
	clock chrono.API
}

func isRemoteDSN(dsn string) bool {
	for _, scheme := range []string{"libsql://", "http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(dsn, scheme) {
			return true
		}
	}
	return false
}

// OpenSQL opens a local sqlite file (or ":memory:") through modernc.org/sqlite, or a
// remote libsql database when dsn is a libsql:// or http(s):// url.
func OpenSQL(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("a sqlite dsn was not specified")
	}
	if isRemoteDSN(dsn) {
		return sql.Open("libsql", dsn)
	}

	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		err := os.MkdirAll(filepath.Dir(dsn), 0755)
		if err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer, and every connection to ":memory:" is its own database
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func NewSQLStore(ctx context.Context, db *sql.DB, clock chrono.API) (SQLStore, error) {
	_, err := db.ExecContext(ctx, sqlSchema)
	if err != nil {
		return SQLStore{}, fmt.Errorf("create cache table: %w", err)
	}
	return SQLStore{db: db, clock: chrono.OrDefault(clock)}, nil
}

func (s SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var expiresAt int64
	err := s.db.QueryRowContext(
		ctx,
		"select value, expires_at from cache_entries where key = ?",
		key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if expiresAt > 0 && s.clock.Now().UnixMilli() >= expiresAt {
		_, err = s.db.ExecContext(
			ctx,
			"delete from cache_entries where key = ? and expires_at = ?",
			key, expiresAt,
		)
		if err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return value, nil
}

func (s SQLStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.clock.Now().Add(ttl).UnixMilli()
	}
	_, err := s.db.ExecContext(
		ctx,
		`insert into cache_entries (key, value, expires_at) values (?, ?, ?)
		on conflict(key) do update set value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	return err
}

func (s SQLStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "delete from cache_entries where key = ?", key)
	return err
}

func (s SQLStore) Close() error {
	return s.db.Close()
}
