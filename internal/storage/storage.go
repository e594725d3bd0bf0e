// Package storage talks to the relational database holding the retail
// table and, optionally, the projection results.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"cltv-analytics/internal/config"
	apperrors "cltv-analytics/internal/errors"
	"cltv-analytics/internal/ingest"
	"cltv-analytics/internal/models"
)

type Store struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

// Open connects and pings within cfg.ConnectTimeout. A failed ping closes
// the handle.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d, ok := dialects[cfg.Driver]
	if !ok {
		return nil, apperrors.New(apperrors.CodeDatabase, "unsupported driver").WithDetails(cfg.Driver)
	}

	db, err := sql.Open(d.driver, dataSourceName(cfg))
	if err != nil {
		return nil, apperrors.DatabaseWrap(err, "failed to open connection")
	}
	if d.singleConnOnly {
		db.SetMaxOpenConns(1)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, apperrors.DatabaseWrap(err, "database ping failed")
	}

	logger.Info("database connected", "database", cfg)
	return &Store{db: db, dialect: d, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) ListDatabases(ctx context.Context) ([]string, error) {
	return s.names(ctx, s.dialect.listDatabases)
}

func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	return s.names(ctx, s.dialect.listTables)
}

func (s *Store) names(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.DatabaseWrap(err, "query failed").WithDetails(query)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperrors.DatabaseWrap(err, "scan failed")
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.DatabaseWrap(err, "query failed").WithDetails(query)
	}
	return out, nil
}

// SampleRows returns up to limit rows of table keyed by column name.
func (s *Store) SampleRows(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	columns, values, err := s.selectAll(ctx, table, limit)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(values))
	for _, row := range values {
		m := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := row[i].([]byte); ok {
				m[col] = string(b)
			} else {
				m[col] = row[i]
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// LoadTransactions reads the retail table through the same header mapping
// as the file loaders. A non-positive limit reads every row.
func (s *Store) LoadTransactions(ctx context.Context, table string, limit int) ([]models.Transaction, error) {
	start := time.Now()
	columns, values, err := s.selectAll(ctx, table, limit)
	if err != nil {
		return nil, err
	}

	records := make([][]string, len(values))
	for i, row := range values {
		record := make([]string, len(row))
		for j, v := range row {
			record[j] = cellString(v)
		}
		records[i] = record
	}

	txs, err := ingest.Records(columns, records)
	if err != nil {
		return nil, err
	}
	s.logger.Info("transactions loaded from database",
		"table", table,
		"records", len(txs),
		"duration", time.Since(start))
	return txs, nil
}

func (s *Store) selectAll(ctx context.Context, table string, limit int) ([]string, [][]any, error) {
	quoted, err := s.dialect.table(table)
	if err != nil {
		return nil, nil, apperrors.DatabaseWrap(err, "invalid table")
	}
	query := "SELECT * FROM " + quoted
	if limit > 0 {
		query += " LIMIT " + strconv.Itoa(limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, apperrors.DatabaseWrap(err, "query failed").WithDetails(query)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, apperrors.DatabaseWrap(err, "read columns")
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, apperrors.DatabaseWrap(err, "scan failed")
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, apperrors.DatabaseWrap(err, "query failed").WithDetails(query)
	}
	return columns, out, nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.DateTime)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// Verification is what the connectivity check found.
type Verification struct {
	Databases []string         `json:"databases"`
	Tables    []string         `json:"tables"`
	Sample    []map[string]any `json:"sample"`
}

// Verify lists databases and tables and samples the retail table.
func (s *Store) Verify(ctx context.Context, table string, limit int) (*Verification, error) {
	databases, err := s.ListDatabases(ctx)
	if err != nil {
		return nil, err
	}
	tables, err := s.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	v := &Verification{Databases: databases, Tables: tables}

	if !slices.Contains(tables, table) {
		s.logger.Warn("retail table not found", "table", table, "tables", tables)
		return v, nil
	}
	if v.Sample, err = s.SampleRows(ctx, table, limit); err != nil {
		return nil, err
	}
	return v, nil
}

// SaveProjections creates table when missing and appends one row per
// customer in a single transaction. Horizon columns follow the first
// projection's keys.
func (s *Store) SaveProjections(ctx context.Context, table, runID string, projections []models.Projection) (int, error) {
	if len(projections) == 0 {
		return 0, nil
	}
	quoted, err := s.dialect.table(table)
	if err != nil {
		return 0, apperrors.DatabaseWrap(err, "invalid table")
	}

	purchaseHorizons := sortedKeys(projections[0].ExpectedPurchases)
	clvHorizons := sortedKeys(projections[0].CLV)

	d := s.dialect
	defs := []string{
		"run_id " + d.textType + " NOT NULL",
		"customer_id " + d.textType + " NOT NULL",
		"recency " + d.floatType,
		"t " + d.floatType,
		"frequency " + d.integerType,
		"monetary " + d.floatType,
		"expected_average_profit " + d.floatType,
	}
	columns := []string{"run_id", "customer_id", "recency", "t", "frequency", "monetary", "expected_average_profit"}
	for _, h := range purchaseHorizons {
		col := fmt.Sprintf("expected_purchases_%d", h)
		defs = append(defs, col+" "+d.floatType)
		columns = append(columns, col)
	}
	for _, h := range clvHorizons {
		col := fmt.Sprintf("clv_%dm", h)
		defs = append(defs, col+" "+d.floatType)
		columns = append(columns, col)
	}
	defs = append(defs, "segment "+d.textType, "created_at "+d.timestampType)
	columns = append(columns, "segment", "created_at")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperrors.DatabaseWrap(err, "begin transaction")
	}
	defer tx.Rollback()

	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoted, strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return 0, apperrors.DatabaseWrap(err, "create results table").WithDetails(table)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoted, strings.Join(columns, ", "), d.placeholders(len(columns)))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, apperrors.DatabaseWrap(err, "prepare insert").WithDetails(table)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range projections {
		args := []any{runID, p.CustomerID, p.Recency, p.T, p.Frequency, p.Monetary, nullable(p.ExpectedAverageProfit)}
		for _, h := range purchaseHorizons {
			args = append(args, nullable(p.ExpectedPurchases[h]))
		}
		for _, h := range clvHorizons {
			args = append(args, nullable(p.CLV[h]))
		}
		args = append(args, string(p.Segment), now)

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, apperrors.DatabaseWrap(err, "insert projection").WithDetails(p.CustomerID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.DatabaseWrap(err, "commit")
	}
	s.logger.Info("projections saved", "table", table, "run_id", runID, "rows", len(projections))
	return len(projections), nil
}

func sortedKeys(m map[int]float64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// nullable stores non-finite predictions as NULL.
func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
