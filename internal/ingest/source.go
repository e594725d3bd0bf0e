// Package ingest turns retail exports into transaction rows. Every loader
// satisfies services.Source.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"cltv-analytics/internal/config"
	"cltv-analytics/internal/models"
	"cltv-analytics/internal/services"
)

// TransactionStore is the part of the storage layer the table loader needs.
type TransactionStore interface {
	LoadTransactions(ctx context.Context, table string, limit int) ([]models.Transaction, error)
}

// TableLoader reads transactions from a relational table.
type TableLoader struct {
	Store TransactionStore
	Table string
	Limit int
}

func (l *TableLoader) Load(ctx context.Context) ([]models.Transaction, error) {
	return l.Store.LoadTransactions(ctx, l.Table, l.Limit)
}

// New picks the loader for the configured source kind. store may be nil
// unless the kind is "database".
func New(src config.SourceConfig, table string, store TransactionStore, logger *slog.Logger) (services.Source, error) {
	switch src.Kind {
	case "excel":
		return NewExcelLoader(src.Path, src.Sheet, src.Limit, src.CacheDir, logger), nil
	case "csv":
		return NewCSVLoader(src.Path, src.Limit, src.CacheDir, logger), nil
	case "database":
		if store == nil {
			return nil, fmt.Errorf("database source requires an open connection")
		}
		return &TableLoader{Store: store, Table: table, Limit: src.Limit}, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", src.Kind)
	}
}
