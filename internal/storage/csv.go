package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pricewatch/internal/quote"
)

var csvHeader = []string{"price", "timestamp"}

// CSVStore keeps history in a two-column CSV file. The file is opened,
// appended and closed on every write and never held open between runs.
type CSVStore struct {
	path string
}

// NewCSVStore returns a store backed by the file at path.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the backing file location.
func (s *CSVStore) Path() string { return s.path }

// Append writes one row, adding the header when the file is created.
func (s *CSVStore) Append(ctx context.Context, obs quote.Observation) error {
	if err := ctx.Err(); err != nil {
		return persistErr("append", err)
	}
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return persistErr("append", err)
		}
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return persistErr("append", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return persistErr("append", err)
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(csvHeader); err != nil {
			file.Close()
			return persistErr("append", err)
		}
	}
	record := []string{obs.Value.Decimal.String(), formatStoredTime(obs.ObservedAt)}
	if err := writer.Write(record); err != nil {
		file.Close()
		return persistErr("append", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return persistErr("append", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return persistErr("append", err)
	}
	return persistErr("append", file.Close())
}

// CSVRow is one data row together with its 1-based line in the file.
type CSVRow struct {
	Line        int
	Observation quote.Observation
}

// ReadAll parses the whole file. Rows with a non-numeric price come back
// with an invalid value, and rows whose timestamp is blank or unreadable
// come back with a zero ObservedAt; callers decide what to do with either.
func (s *CSVStore) ReadAll(ctx context.Context) ([]quote.Observation, error) {
	rows, err := s.ReadRows(ctx)
	if err != nil {
		return nil, err
	}
	history := make([]quote.Observation, len(rows))
	for i, row := range rows {
		history[i] = row.Observation
	}
	return history, nil
}

// ReadRows is ReadAll with the source line of every row, so callers can
// point at the offending line whether or not the file has a header.
func (s *CSVStore) ReadRows(ctx context.Context) ([]CSVRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, persistErr("read", err)
	}
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []CSVRow{}, nil
		}
		return nil, persistErr("read", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(csvHeader)

	rows := make([]CSVRow, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, persistErr("read", err)
		}
		line, _ := reader.FieldPos(0)
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), csvHeader[0]) {
			continue
		}
		// zero time when blank or unreadable; Validate rejects it
		ts, _ := parseStoredTime(record[1])
		rows = append(rows, CSVRow{
			Line:        line,
			Observation: quote.ParseObservation(strings.TrimSpace(record[0]), ts, quote.TimeSource("")),
		})
	}
	return rows, nil
}

// Close is a no-op; the file is never held open.
func (s *CSVStore) Close() error { return nil }

// parseStoredTime accepts RFC3339 and the HTTP-date form older files used.
func parseStoredTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := http.ParseTime(v); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", v)
}

func formatStoredTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

var _ HistoryStore = (*CSVStore)(nil)
