package storage

import (
	"context"
	"fmt"

	"pricewatch/internal/config"
)

// Open builds the history store selected by cfg.History.Backend.
func Open(ctx context.Context, cfg *config.Config) (HistoryStore, error) {
	switch cfg.History.Backend {
	case config.BackendCSV, "":
		return NewCSVStore(cfg.History.Path), nil
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.History.Path)
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendPostgres:
		pool, err := NewPool(ctx, cfg.History.Database)
		if err != nil {
			return nil, err
		}
		store, err := NewPostgresStore(ctx, pool, cfg.Scheduler.Lock.Key)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported history backend %q", cfg.History.Backend)
	}
}

// OpenLocker returns the run lock selected by cfg.Scheduler.Lock.Backend, or
// nil when runs are not locked. The closer is never nil.
func OpenLocker(ctx context.Context, cfg *config.Config, store HistoryStore) (RunLocker, func(), error) {
	noop := func() {}
	switch cfg.Scheduler.Lock.Backend {
	case config.LockNone, "":
		return nil, noop, nil
	case config.LockPostgres:
		locker, ok := store.(RunLocker)
		if !ok {
			return nil, noop, fmt.Errorf("history backend %s has no advisory lock", cfg.History.Backend)
		}
		return locker, noop, nil
	case config.LockRedis:
		locker, err := NewRedisLocker(ctx, RedisLockOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Scheduler.Lock.Name,
			TTL:      cfg.Scheduler.Lock.TTL,
		})
		if err != nil {
			return nil, noop, err
		}
		return locker, func() { _ = locker.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unsupported lock backend %q", cfg.Scheduler.Lock.Backend)
	}
}
