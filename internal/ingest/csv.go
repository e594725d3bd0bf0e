package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "cltv-analytics/internal/errors"
	"cltv-analytics/internal/models"
)

const (
	batchSize  = 10000
	maxWorkers = 10
)

// CSVLoader reads a comma separated export with the same header as the
// workbook. Rows are parsed in batches by a bounded worker group.
type CSVLoader struct {
	Path   string
	Limit  int
	cache  fileCache
	logger *slog.Logger
}

func NewCSVLoader(path string, limit int, cacheDir string, logger *slog.Logger) *CSVLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVLoader{
		Path:   path,
		Limit:  limit,
		cache:  fileCache{dir: cacheDir},
		logger: logger,
	}
}

func (l *CSVLoader) Load(ctx context.Context) ([]models.Transaction, error) {
	if rows, ok := l.cache.load(l.Path, l.Path); ok {
		l.logger.Info("loaded from cache", "path", l.Path, "records", len(rows))
		return truncate(rows, l.Limit), nil
	}

	file, err := os.Open(l.Path)
	if err != nil {
		return nil, apperrors.IngestionWrap(err, "open file").WithDetails(l.Path)
	}
	defer file.Close()

	start := time.Now()
	l.logger.Info("processing CSV file", "filename", l.Path)

	out, err := l.read(ctx, file)
	if err != nil {
		return nil, err
	}

	if l.Limit == 0 {
		if err := l.cache.save(l.Path, out); err != nil {
			l.logger.Warn("failed to save cache", "error", err)
		}
	}

	duration := time.Since(start)
	l.logger.Info("csv processing complete",
		"records", len(out),
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(len(out))/duration.Seconds()))
	return out, nil
}

func (l *CSVLoader) read(ctx context.Context, r io.Reader) ([]models.Transaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperrors.Ingestion("empty file").WithDetails(l.Path)
	}
	if err != nil {
		return nil, apperrors.IngestionWrap(err, "read header").WithDetails(l.Path)
	}
	idx, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	var (
		out     []models.Transaction
		batch   = make([][]string, 0, batchSize)
		pending int // non-blank records in batch
		first   = 2 // line number of batch[0]
		line    = 1
	)
	flush := func() error {
		parsed, err := parseBatch(ctx, batch, idx, first)
		if err != nil {
			return err
		}
		out = append(out, parsed...)
		first = line + 1
		batch = batch[:0]
		pending = 0
		return nil
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, apperrors.IngestionWrap(err, "read record").WithDetails(l.Path)
		}
		if isBlank(record) {
			// keep line numbers of the batch contiguous
			record = nil
		} else {
			pending++
		}
		batch = append(batch, record)

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		if l.Limit > 0 && len(out)+pending >= l.Limit {
			break
		}
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return nil, err
		}
	}
	return truncate(out, l.Limit), nil
}

// parseBatch converts records concurrently and keeps their order. Blank
// records are dropped.
func parseBatch(ctx context.Context, batch [][]string, idx columnIndex, firstLine int) ([]models.Transaction, error) {
	parsed := make([]models.Transaction, len(batch))
	keep := make([]bool, len(batch))

	var wg errgroup.Group
	wg.SetLimit(maxWorkers)
	for i, record := range batch {
		if record == nil {
			continue
		}
		wg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tx, err := parseRecord(record, idx, textDates, firstLine+i)
			if err != nil {
				return err
			}
			parsed[i], keep[i] = tx, true
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, err
	}

	out := parsed[:0]
	for i, tx := range parsed {
		if keep[i] {
			out = append(out, tx)
		}
	}
	return out, nil
}
