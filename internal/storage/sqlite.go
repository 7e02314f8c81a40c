package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pricewatch/internal/quote"
)

type priceRow struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Price     string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"not null"`
	CreatedAt time.Time
}

func (priceRow) TableName() string { return "prices" }

// SQLiteStore persists history in a local SQLite database through gorm.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the database at path and migrates the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite store: path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&priceRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return &SQLiteStore{db: db}, nil
}

// Append inserts one row.
func (s *SQLiteStore) Append(ctx context.Context, obs quote.Observation) error {
	row := priceRow{Price: obs.Value.Decimal.String(), Timestamp: obs.ObservedAt.UTC()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return persistErr("append", err)
	}
	return nil
}

// ReadAll returns rows ordered by primary key.
func (s *SQLiteStore) ReadAll(ctx context.Context) ([]quote.Observation, error) {
	var rows []priceRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, persistErr("read", err)
	}
	history := make([]quote.Observation, 0, len(rows))
	for _, r := range rows {
		history = append(history, quote.ParseObservation(r.Price, r.Timestamp.UTC(), quote.TimeSource("")))
	}
	return history, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ HistoryStore = (*SQLiteStore)(nil)
