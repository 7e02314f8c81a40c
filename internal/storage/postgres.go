package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pricewatch/internal/quote"
)

const (
	createPricesSQL = `CREATE TABLE IF NOT EXISTS prices (
        id         BIGSERIAL PRIMARY KEY,
        price      NUMERIC     NOT NULL,
        timestamp  TIMESTAMPTZ NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	insertPriceSQL = `INSERT INTO prices (price, timestamp) VALUES ($1, $2);`

	listPricesSQL = `SELECT price::text, timestamp
    FROM prices
    ORDER BY id;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// PostgresStore persists history in the prices table. Arrival order is the
// BIGSERIAL id, not the timestamp column.
type PostgresStore struct {
	pool    *pgxpool.Pool
	lockKey int64
}

// NewPostgresStore wires a pgx pool into a store and ensures the schema.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, lockKey int64) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool, lockKey: lockKey}
	p, err := s.getPool()
	if err != nil {
		return nil, err
	}
	if _, err := p.Exec(ctx, createPricesSQL); err != nil {
		return nil, fmt.Errorf("create prices table: %w", err)
	}
	return s, nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Append inserts one row.
func (s *PostgresStore) Append(ctx context.Context, obs quote.Observation) error {
	pool, err := s.getPool()
	if err != nil {
		return persistErr("append", err)
	}
	if _, err := pool.Exec(ctx, insertPriceSQL, obs.Value.Decimal.String(), obs.ObservedAt.UTC()); err != nil {
		return persistErr("append", fmt.Errorf("insert price: %w", err))
	}
	return nil
}

// ReadAll lists every row in insertion order.
func (s *PostgresStore) ReadAll(ctx context.Context) ([]quote.Observation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, persistErr("read", err)
	}

	rows, err := pool.Query(ctx, listPricesSQL)
	if err != nil {
		return nil, persistErr("read", fmt.Errorf("list prices: %w", err))
	}
	defer rows.Close()

	history := make([]quote.Observation, 0)
	for rows.Next() {
		var (
			price string
			ts    time.Time
		)
		if err := rows.Scan(&price, &ts); err != nil {
			return nil, persistErr("read", err)
		}
		history = append(history, quote.ParseObservation(price, ts.UTC(), quote.TimeSource("")))
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("read", err)
	}
	return history, nil
}

// TryRunLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *PostgresStore) TryRunLock(ctx context.Context) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, s.lockKey).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// The lock dies with the session if this fails.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, s.lockKey)
		conn.Release()
	}
	return unlock, true, nil
}

var (
	_ HistoryStore = (*PostgresStore)(nil)
	_ RunLocker    = (*PostgresStore)(nil)
)
