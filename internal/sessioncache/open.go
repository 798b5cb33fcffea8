package sessioncache

import (
	"context"
	"fmt"

	"github.com/ESN-MoRe/members-manager/internal/components/chrono"
)

const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

type Options struct {
	Backend    string `json:"backend" envconfig:"CACHE_BACKEND"`
	Prefix     string `json:"prefix"`
	BadgerPath string `json:"badger_path"`
	RedisURL   string `json:"redis_url" envconfig:"REDIS_URL"`
	SQLiteDSN  string `json:"sqlite_dsn"`

	SessionTTLMinutes int `json:"session_ttl_minutes"`
	ContentTTLMinutes int `json:"content_ttl_minutes"`
}

// Open creates the Store selected by opts.Backend, the memory backend is the default.
func Open(ctx context.Context, opts Options, clock chrono.API) (Store, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryStore(clock), nil
	case BackendBadger:
		db, err := OpenBadger(opts.BadgerPath)
		if err != nil {
			return nil, err
		}
		return NewBadgerStore(db), nil
	case BackendRedis:
		client, err := OpenRedis(ctx, opts.RedisURL)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client), nil
	case BackendSQLite:
		db, err := OpenSQL(opts.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		store, err := NewSQLStore(ctx, db, clock)
		if err != nil {
			db.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
