package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "cltv-analytics/internal/errors"
	"cltv-analytics/internal/models"
)

type column int

const (
	colInvoice column = iota
	colStockCode
	colDescription
	colQuantity
	colInvoiceDate
	colPrice
	colCustomerID
	colCountry
	columnCount
)

var columnNames = [columnCount]string{
	"Invoice", "StockCode", "Description", "Quantity", "InvoiceDate", "Price", "Customer ID", "Country",
}

// Keys are header names lowercased with spaces and underscores removed.
var columnAliases = map[string]column{
	"invoice":     colInvoice,
	"invoiceno":   colInvoice,
	"invoiceid":   colInvoice,
	"stockcode":   colStockCode,
	"description": colDescription,
	"quantity":    colQuantity,
	"invoicedate": colInvoiceDate,
	"price":       colPrice,
	"unitprice":   colPrice,
	"customerid":  colCustomerID,
	"country":     colCountry,
}

// columnIndex holds the position of every required column in a record.
type columnIndex [columnCount]int

func normalizeHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
	return strings.NewReplacer(" ", "", "_", "").Replace(name)
}

func mapHeader(header []string) (columnIndex, error) {
	var idx columnIndex
	for i := range idx {
		idx[i] = -1
	}
	for pos, name := range header {
		if c, ok := columnAliases[normalizeHeader(name)]; ok && idx[c] < 0 {
			idx[c] = pos
		}
	}

	var missing []string
	for c, pos := range idx {
		if pos < 0 {
			missing = append(missing, columnNames[c])
		}
	}
	if len(missing) > 0 {
		return idx, apperrors.Ingestion("required columns missing").
			WithDetails(strings.Join(missing, ", "))
	}
	return idx, nil
}

// dateConverter turns a date cell into a time. Spreadsheet sources pass the
// workbook so serial numbers honour its date system.
type dateConverter func(string) (time.Time, error)

func textDates(s string) (time.Time, error) {
	return models.ParseTimestamp(s)
}

func workbookDates(f *excelize.File) dateConverter {
	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}
	return func(s string) (time.Time, error) {
		serial, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.ParseTimestamp(s)
		}
		return excelize.ExcelDateToTime(serial, date1904)
	}
}

// parseRecord converts one data row. Empty cells stay empty (NaN for
// numbers) so the cleaner can count them; malformed values are fatal.
func parseRecord(record []string, idx columnIndex, dates dateConverter, line int) (models.Transaction, error) {
	cell := func(c column) string {
		if idx[c] >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx[c]])
	}

	quantity, err := parseNumber(cell(colQuantity))
	if err != nil {
		return models.Transaction{}, malformed(line, columnNames[colQuantity], err)
	}
	price, err := parseNumber(cell(colPrice))
	if err != nil {
		return models.Transaction{}, malformed(line, columnNames[colPrice], err)
	}

	var date time.Time
	if raw := cell(colInvoiceDate); raw != "" {
		date, err = dates(raw)
		if err != nil {
			return models.Transaction{}, malformed(line, columnNames[colInvoiceDate], err)
		}
	}

	return models.Transaction{
		InvoiceID:   cell(colInvoice),
		StockCode:   cell(colStockCode),
		Description: cell(colDescription),
		Quantity:    quantity,
		InvoiceDate: date,
		UnitPrice:   price,
		CustomerID:  models.NormalizeCustomerID(cell(colCustomerID)),
		Country:     cell(colCountry),
	}, nil
}

func parseNumber(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func malformed(line int, column string, err error) error {
	return apperrors.IngestionWrap(err, "malformed value").
		WithDetails(fmt.Sprintf("row %d, column %s", line, column))
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Records converts already tabulated rows, such as a database result set,
// using the same header rules as the file loaders. Dates are text.
func Records(header []string, records [][]string) ([]models.Transaction, error) {
	idx, err := mapHeader(header)
	if err != nil {
		return nil, err
	}
	out := make([]models.Transaction, 0, len(records))
	for i, record := range records {
		if isBlank(record) {
			continue
		}
		tx, err := parseRecord(record, idx, textDates, i+2)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}
