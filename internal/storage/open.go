package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/driving-lesson-scheduling/internal/config"
	"github.com/hackgods/driving-lesson-scheduling/internal/db"
)

// KV is the contract every backend satisfies.
type KV interface {
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Write(ctx context.Context, key string, data []byte) error
	Pinger
}

// Open builds the backend named by cfg.StorageBackend, running migrations where the backend
// has a schema. rdb is only used by the redis backend and may be nil otherwise. The returned
// close func releases backend connections; it never closes rdb.
func Open(ctx context.Context, cfg config.Config, rdb redis.UniversalClient) (KV, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StorageBackend {
	case BackendMemory:
		return NewMemoryStore(), noop, nil

	case BackendRedis:
		if rdb == nil {
			return nil, nil, fmt.Errorf("redis backend requires a redis client")
		}
		return NewRedisStore(rdb), noop, nil

	case BackendSQLite:
		gdb, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		s := NewSQLiteStore(gdb)
		if err := s.Migrate(ctx); err != nil {
			_ = db.CloseSQLite(gdb)
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return s, func() error { return db.CloseSQLite(gdb) }, nil

	case BackendPostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		s := NewPostgresStore(pool)
		if err := s.Migrate(pgCtx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return s, func() error { pool.Close(); return nil }, nil
	}

	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}
