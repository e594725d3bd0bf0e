package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "cltv-analytics/internal/errors"
	"cltv-analytics/internal/models"
)

// ExcelLoader reads one worksheet of a retail workbook. The first row is
// the header.
type ExcelLoader struct {
	Path  string
	Sheet string
	// Limit stops after that many data rows; zero reads the whole sheet.
	Limit  int
	cache  fileCache
	logger *slog.Logger
}

func NewExcelLoader(path, sheet string, limit int, cacheDir string, logger *slog.Logger) *ExcelLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelLoader{
		Path:   path,
		Sheet:  sheet,
		Limit:  limit,
		cache:  fileCache{dir: cacheDir},
		logger: logger,
	}
}

func (l *ExcelLoader) Load(ctx context.Context) ([]models.Transaction, error) {
	key := l.Path + "#" + l.Sheet
	if rows, ok := l.cache.load(key, l.Path); ok {
		l.logger.Info("loaded from cache", "path", l.Path, "sheet", l.Sheet, "records", len(rows))
		return truncate(rows, l.Limit), nil
	}

	start := time.Now()
	l.logger.Info("reading workbook", "path", l.Path, "sheet", l.Sheet)

	f, err := excelize.OpenFile(l.Path)
	if err != nil {
		return nil, apperrors.IngestionWrap(err, "open workbook").WithDetails(l.Path)
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(l.Sheet); idx < 0 {
		return nil, apperrors.Ingestion("sheet not found").WithDetails(l.Sheet)
	}

	rows, err := f.Rows(l.Sheet)
	if err != nil {
		return nil, apperrors.IngestionWrap(err, "read sheet").WithDetails(l.Sheet)
	}
	defer rows.Close()

	dates := workbookDates(f)
	var (
		idx    columnIndex
		header bool
		out    []models.Transaction
		line   int
	)
	for rows.Next() {
		line++
		if line%batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, apperrors.IngestionWrap(err, "read row").WithDetails(l.Sheet)
		}
		if !header {
			if idx, err = mapHeader(record); err != nil {
				return nil, err
			}
			header = true
			continue
		}
		if isBlank(record) {
			continue
		}

		tx, err := parseRecord(record, idx, dates, line)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
		if l.Limit > 0 && len(out) >= l.Limit {
			break
		}
	}
	if err := rows.Error(); err != nil {
		return nil, apperrors.IngestionWrap(err, "read sheet").WithDetails(l.Sheet)
	}
	if !header {
		return nil, apperrors.Ingestion("empty sheet").WithDetails(l.Sheet)
	}

	// A limited read is a sample and must not replace the full cached sheet.
	if l.Limit == 0 {
		if err := l.cache.save(key, out); err != nil {
			l.logger.Warn("failed to save cache", "error", err)
		}
	}

	l.logger.Info("workbook read",
		"records", len(out),
		"duration", time.Since(start))
	return out, nil
}

func truncate(rows []models.Transaction, limit int) []models.Transaction {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
