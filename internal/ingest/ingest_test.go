package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"cltv-analytics/internal/config"
	apperrors "cltv-analytics/internal/errors"
	"cltv-analytics/internal/models"
)

const sheet = "Year 2010-2011"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("write row %d: %v", i+1, err)
		}
	}

	path := filepath.Join(t.TempDir(), "retail.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

var retailHeader = []any{"Invoice", "StockCode", "Description", "Quantity", "InvoiceDate", "Price", "Customer ID", "Country"}

func TestExcelLoader_Load(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		retailHeader,
		{"489434", "85048", "15CM CHRISTMAS GLASS BALL 20 LIGHTS", 12, "2009-12-01 07:45:00", 6.95, 13085.0, "United Kingdom"},
		{"C489449", "22087", "PAPER BUNTING WHITE LACE", -12, "2009-12-01 10:33:00", 2.95, 16321.0, "Australia"},
		{"489436", "21755", "LOVE BUILDING BLOCK WORD", 18, "2009-12-01 09:06:00", 5.45, "", "United Kingdom"},
	})

	loader := NewExcelLoader(path, sheet, 0, "", quietLogger())
	got, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}

	first := got[0]
	if first.InvoiceID != "489434" || first.CustomerID != "13085" || first.Quantity != 12 || first.UnitPrice != 6.95 {
		t.Errorf("unexpected first row %+v", first)
	}
	if want := time.Date(2009, 12, 1, 7, 45, 0, 0, time.UTC); !first.InvoiceDate.Equal(want) {
		t.Errorf("InvoiceDate = %v, want %v", first.InvoiceDate, want)
	}
	if !got[1].Cancelled("C") || got[1].Quantity != -12 {
		t.Errorf("cancelled row not preserved: %+v", got[1])
	}
	if got[2].CustomerID != "" || got[2].Complete() {
		t.Errorf("row without customer should load as incomplete: %+v", got[2])
	}
}

func TestExcelLoader_SerialDatesAndAliases(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"InvoiceNo", "StockCode", "Description", "Quantity", "InvoiceDate", "UnitPrice", "CustomerID", "Country"},
		{536365, "85123A", "WHITE HANGING HEART T-LIGHT HOLDER", 6, 40513.5, 2.55, 17850, "United Kingdom"},
	})

	got, err := NewExcelLoader(path, sheet, 0, "", quietLogger()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if want := time.Date(2010, 12, 1, 12, 0, 0, 0, time.UTC); !got[0].InvoiceDate.Equal(want) {
		t.Errorf("InvoiceDate = %v, want %v", got[0].InvoiceDate, want)
	}
	if got[0].InvoiceID != "536365" || got[0].CustomerID != "17850" {
		t.Errorf("unexpected ids %+v", got[0])
	}
}

func TestExcelLoader_Errors(t *testing.T) {
	noPrice := writeWorkbook(t, [][]any{
		{"Invoice", "StockCode", "Description", "Quantity", "InvoiceDate", "Customer ID", "Country"},
		{"1", "A", "B", 1, "2010-12-01", 1, "UK"},
	})
	badQuantity := writeWorkbook(t, [][]any{
		retailHeader,
		{"1", "A", "B", "twelve", "2010-12-01", 1.5, 1, "UK"},
	})

	tests := []struct {
		name    string
		path    string
		sheet   string
		details string
	}{
		{"missing column", noPrice, sheet, "Price"},
		{"malformed number", badQuantity, sheet, "row 2, column Quantity"},
		{"missing sheet", noPrice, "Year 2009-2010", "Year 2009-2010"},
		{"missing file", filepath.Join(t.TempDir(), "absent.xlsx"), sheet, "absent.xlsx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExcelLoader(tt.path, tt.sheet, 0, "", quietLogger()).Load(context.Background())
			if !apperrors.HasCode(err, apperrors.CodeIngestion) {
				t.Fatalf("expected ingestion error, got %v", err)
			}
			if got := detailsOf(err); !strings.Contains(got, tt.details) {
				t.Errorf("error details %q should mention %q", got, tt.details)
			}
		})
	}
}

func TestExcelLoader_LimitAndCache(t *testing.T) {
	rows := [][]any{retailHeader}
	for i := 0; i < 5; i++ {
		rows = append(rows, []any{"1", "A", "B", i + 1, "2010-12-01 10:00:00", 1.0, 1, "UK"})
	}
	path := writeWorkbook(t, rows)
	cacheDir := t.TempDir()

	limited, err := NewExcelLoader(path, sheet, 2, cacheDir, quietLogger()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limit 2 returned %d rows", len(limited))
	}
	if entries, _ := os.ReadDir(cacheDir); len(entries) != 0 {
		t.Error("a limited read must not be cached")
	}

	full, err := NewExcelLoader(path, sheet, 0, cacheDir, quietLogger()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if entries, _ := os.ReadDir(cacheDir); len(entries) != 1 {
		t.Fatalf("expected one cache file, got %d", len(entries))
	}

	cached, err := NewExcelLoader(path, sheet, 0, cacheDir, quietLogger()).Load(context.Background())
	if err != nil {
		t.Fatalf("cached Load() error: %v", err)
	}
	if len(cached) != len(full) || cached[4].Quantity != 5 {
		t.Errorf("cached rows differ: %d vs %d", len(cached), len(full))
	}
}

func detailsOf(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Details
	}
	return ""
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "retail.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestCSVLoader_Load(t *testing.T) {
	path := writeCSV(t, `Invoice,StockCode,Description,Quantity,InvoiceDate,Price,Customer ID,Country
536365,85123A,"HEART T-LIGHT HOLDER, WHITE",6,12/1/2010 8:26,2.55,17850.0,United Kingdom
536366,22633,HAND WARMER UNION JACK,,12/1/2010 8:28,1.85,,United Kingdom
`)

	got, err := NewCSVLoader(path, 0, "", quietLogger()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].Description != "HEART T-LIGHT HOLDER, WHITE" || got[0].CustomerID != "17850" {
		t.Errorf("unexpected first row %+v", got[0])
	}
	if want := time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC); !got[0].InvoiceDate.Equal(want) {
		t.Errorf("InvoiceDate = %v, want %v", got[0].InvoiceDate, want)
	}
	if !math.IsNaN(got[1].Quantity) || got[1].Complete() {
		t.Errorf("empty quantity should load as NaN: %+v", got[1])
	}
}

func TestCSVLoader_LimitSkipsBlankRows(t *testing.T) {
	path := writeCSV(t, `Invoice,StockCode,Description,Quantity,InvoiceDate,Price,Customer ID,Country
536365,85123A,HEART T-LIGHT HOLDER,6,2010-12-01 08:26:00,2.55,17850,United Kingdom
,,,,,,,
,,,,,,,
536366,22633,HAND WARMER UNION JACK,6,2010-12-01 08:28:00,1.85,17850,United Kingdom
536367,84879,ASSORTED COLOUR BIRD ORNAMENT,32,2010-12-01 08:34:00,1.69,13047,United Kingdom
`)

	got, err := NewCSVLoader(path, 2, "", quietLogger()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("limit 2 returned %d rows", len(got))
	}
	if got[0].InvoiceID != "536365" || got[1].InvoiceID != "536366" {
		t.Errorf("unexpected invoices %q, %q", got[0].InvoiceID, got[1].InvoiceID)
	}
}

func TestCSVLoader_KeepsOrderAcrossBatches(t *testing.T) {
	var b strings.Builder
	b.WriteString("Invoice,StockCode,Description,Quantity,InvoiceDate,Price,Customer ID,Country\n")
	n := batchSize + 7
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "1,A,B,%d,2010-12-01 10:00:00,1,1,UK\n", i)
	}
	path := writeCSV(t, b.String())

	got, err := NewCSVLoader(path, 0, "", quietLogger()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got) != n {
		t.Fatalf("expected %d rows, got %d", n, len(got))
	}
	for i, tx := range got {
		if tx.Quantity != float64(i+1) {
			t.Fatalf("row %d has quantity %v", i, tx.Quantity)
		}
	}

	limited, err := NewCSVLoader(path, 3, "", quietLogger()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(limited) != 3 {
		t.Errorf("limit 3 returned %d rows", len(limited))
	}
}

func TestCSVLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		details string
	}{
		{"empty file", "", "retail.csv"},
		{"missing column", "Invoice,Quantity\n1,2\n", "StockCode"},
		{"malformed price", "Invoice,StockCode,Description,Quantity,InvoiceDate,Price,Customer ID,Country\n1,A,B,1,2010-12-01,abc,1,UK\n", "row 2, column Price"},
		{"malformed date", "Invoice,StockCode,Description,Quantity,InvoiceDate,Price,Customer ID,Country\n1,A,B,1,yesterday,1,1,UK\n", "row 2, column InvoiceDate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSVLoader(writeCSV(t, tt.content), 0, "", quietLogger()).Load(context.Background())
			if !apperrors.HasCode(err, apperrors.CodeIngestion) {
				t.Fatalf("expected ingestion error, got %v", err)
			}
			if got := detailsOf(err); !strings.Contains(got, tt.details) {
				t.Errorf("error details %q should mention %q", got, tt.details)
			}
		})
	}
}

type memoryStore struct {
	table string
	limit int
}

func (m *memoryStore) LoadTransactions(_ context.Context, table string, limit int) ([]models.Transaction, error) {
	m.table, m.limit = table, limit
	return []models.Transaction{{InvoiceID: "1"}}, nil
}

func TestNew(t *testing.T) {
	store := &memoryStore{}

	src, err := New(config.SourceConfig{Kind: "database", Limit: 50}, "online_retail_2010_2011", store, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	rows, err := src.Load(context.Background())
	if err != nil || len(rows) != 1 {
		t.Fatalf("Load() = %v, %v", rows, err)
	}
	if store.table != "online_retail_2010_2011" || store.limit != 50 {
		t.Errorf("store called with %q, %d", store.table, store.limit)
	}

	if _, ok := mustNew(t, config.SourceConfig{Kind: "excel", Path: "x.xlsx", Sheet: sheet}).(*ExcelLoader); !ok {
		t.Error("excel kind should give an ExcelLoader")
	}
	if _, ok := mustNew(t, config.SourceConfig{Kind: "csv", Path: "x.csv"}).(*CSVLoader); !ok {
		t.Error("csv kind should give a CSVLoader")
	}

	if _, err := New(config.SourceConfig{Kind: "database"}, "t", nil, nil); err == nil {
		t.Error("database kind without a store should fail")
	}
	if _, err := New(config.SourceConfig{Kind: "parquet"}, "", nil, nil); err == nil {
		t.Error("unknown kind should fail")
	}
}

func mustNew(t *testing.T, cfg config.SourceConfig) any {
	t.Helper()
	src, err := New(cfg, "", nil, quietLogger())
	if err != nil {
		t.Fatalf("New(%q) error: %v", cfg.Kind, err)
	}
	return src
}
