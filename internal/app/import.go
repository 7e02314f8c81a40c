package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"pricewatch/internal/config"
	"pricewatch/internal/quote"
	"pricewatch/internal/storage"
)

// ImportResult summarises an import.
type ImportResult struct {
	Read     int
	Imported int
	Rejected int
}

// Import appends rows of a price,timestamp CSV file to the configured store.
// Rows go through the same validator as fetched quotes; rejected rows are
// logged and skipped.
func (a *App) Import(ctx context.Context, opts ImportOptions) (ImportResult, error) {
	var res ImportResult
	if opts.CSVPath == "" {
		return res, errors.New("--csv is required")
	}
	if a.Config.History.Backend == config.BackendCSV && samePath(opts.CSVPath, a.Config.History.Path) {
		return res, fmt.Errorf("refusing to import %s into itself", opts.CSVPath)
	}

	source, err := storage.NewCSVStore(opts.CSVPath).ReadRows(ctx)
	if err != nil {
		return res, err
	}
	res.Read = len(source)

	var dest storage.HistoryStore
	if opts.DryRun {
		a.Logger.Warn().Msg("import dry-run: nothing will be written")
	} else {
		dest, err = storage.Open(ctx, a.Config)
		if err != nil {
			return res, err
		}
		defer dest.Close()
	}

	for _, row := range source {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		valid, err := quote.Validate(row.Observation)
		if err != nil {
			res.Rejected++
			a.Logger.Warn().Err(err).Str("file", opts.CSVPath).Int("line", row.Line).Msg("import row rejected")
			continue
		}
		if dest != nil {
			if err := dest.Append(ctx, valid); err != nil {
				return res, err
			}
		}
		res.Imported++
	}

	a.Logger.Info().
		Int("read", res.Read).
		Int("imported", res.Imported).
		Int("rejected", res.Rejected).
		Bool("dry_run", opts.DryRun).
		Msg("import finished")
	return res, nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
