package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"pricewatch/internal/analysis"
	"pricewatch/internal/report"
	"pricewatch/internal/storage"
)

// Export renders the full history with its moving average as CSV, PNG, HTML
// and/or Parquet. The average is computed over the whole history before
// downsampling so exported values match what the pipeline saw.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" && opts.HTMLPath == "" && opts.ParquetPath == "" {
		return errors.New("at least one of --csv, --png, --html or --parquet must be provided")
	}
	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	records, err := a.loadTrend(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.Logger.Info().Msg("history is empty; nothing to export")
		return nil
	}

	downsampled := downsampleRecords(records, opts.MaxPoints)
	a.Logger.Info().Int("total", len(records)).Int("exported", len(downsampled)).Msg("exporting history")

	if opts.CSVPath != "" {
		if err := writeRecordsCSV(opts.CSVPath, downsampled); err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
	}
	if opts.PNGPath != "" {
		if err := report.WritePNG(opts.PNGPath, downsampled, a.chartOptions()); err != nil {
			return fmt.Errorf("export png: %w", err)
		}
	}
	if opts.HTMLPath != "" {
		if err := report.WriteHTML(opts.HTMLPath, downsampled, a.chartOptions()); err != nil {
			return fmt.Errorf("export html: %w", err)
		}
	}
	if opts.ParquetPath != "" {
		if err := writeRecordsParquet(opts.ParquetPath, downsampled, a.Config.Export.Compression); err != nil {
			return fmt.Errorf("export parquet: %w", err)
		}
	}
	return nil
}

// loadTrend reads the configured history and computes its trend.
func (a *App) loadTrend(ctx context.Context) ([]analysis.TrendRecord, error) {
	store, err := storage.Open(ctx, a.Config)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	history, err := store.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return analysis.Trend(history, a.Config.Analysis.WindowSize)
}

func downsampleRecords(records []analysis.TrendRecord, max int) []analysis.TrendRecord {
	if max <= 0 || len(records) <= max {
		return records
	}
	if max == 1 {
		return records[len(records)-1:]
	}

	result := make([]analysis.TrendRecord, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}

func writeRecordsCSV(path string, records []analysis.TrendRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"timestamp", "price", "moving_average"}); err != nil {
		return err
	}
	for _, r := range records {
		ma := ""
		if r.MovingAverage.Valid {
			ma = r.MovingAverage.Decimal.String()
		}
		ts := ""
		if !r.ObservedAt.IsZero() {
			ts = r.ObservedAt.UTC().Format(time.RFC3339Nano)
		}
		if err := w.Write([]string{ts, r.Price().String(), ma}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return file.Close()
}

type parquetRecord struct {
	Timestamp     *int64   `parquet:"name=timestamp, type=INT64, convertedtype=TIMESTAMP_MILLIS, repetitiontype=OPTIONAL"`
	Price         float64  `parquet:"name=price, type=DOUBLE"`
	MovingAverage *float64 `parquet:"name=moving_average, type=DOUBLE, repetitiontype=OPTIONAL"`
}

func writeRecordsParquet(path string, records []analysis.TrendRecord, compression string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(parquetRecord), 1)
	if err != nil {
		return fmt.Errorf("new parquet writer: %w", err)
	}
	switch strings.ToLower(compression) {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	for _, r := range records {
		rec := parquetRecord{Price: r.Price().InexactFloat64()}
		if !r.ObservedAt.IsZero() {
			ms := r.ObservedAt.UnixMilli()
			rec.Timestamp = &ms
		}
		if r.MovingAverage.Valid {
			ma := r.MovingAverage.Decimal.InexactFloat64()
			rec.MovingAverage = &ma
		}
		if err := pw.Write(rec); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize parquet: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
