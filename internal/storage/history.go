package storage

import (
	"context"
	"errors"

	"pricewatch/internal/quote"
)

// ErrNotConfigured indicates the storage backend was not initialised.
var ErrNotConfigured = errors.New("storage: backend not configured")

// HistoryStore is the append-only observation log.
//
// Implementations assume a single writer: concurrent runs against the same
// store must be serialised with a RunLocker.
type HistoryStore interface {
	// Append adds obs as the new last element. Failures are returned as
	// *quote.PersistenceError and are never swallowed.
	Append(ctx context.Context, obs quote.Observation) error
	// ReadAll returns the whole history in arrival order. A store that was
	// never written returns an empty slice.
	ReadAll(ctx context.Context) ([]quote.Observation, error)
	// Close releases backend resources.
	Close() error
}

// RunLocker exposes advisory run-lock helpers.
type RunLocker interface {
	TryRunLock(ctx context.Context) (unlock func(), acquired bool, err error)
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pErr *quote.PersistenceError
	if errors.As(err, &pErr) {
		return err
	}
	return &quote.PersistenceError{Op: op, Err: err}
}
