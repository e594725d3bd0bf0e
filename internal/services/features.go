package services

import (
	"fmt"
	"slices"
	"strings"
	"time"

	apperrors "cltv-analytics/internal/errors"
	"cltv-analytics/internal/models"
)

const (
	day          = 24 * time.Hour
	daysPerWeek  = 7.0
	minFrequency = 2
)

type customerAccumulator struct {
	first    time.Time
	last     time.Time
	invoices map[string]struct{}
	revenue  float64
}

// Aggregate builds one feature row per repeat customer. Recency and T are
// whole elapsed days divided by seven; frequency counts distinct invoices
// and monetary is revenue per invoice. Rows are sorted by customer id.
func Aggregate(txs []models.Transaction, cutoff time.Time) ([]models.CustomerFeatures, error) {
	groups := make(map[string]*customerAccumulator)

	for _, tx := range txs {
		if tx.InvoiceDate.After(cutoff) {
			return nil, apperrors.Validation("transaction dated after the analysis cutoff").
				WithDetails(fmt.Sprintf("invoice %s on %s, cutoff %s",
					tx.InvoiceID, tx.InvoiceDate.Format(time.DateTime), cutoff.Format(time.DateOnly)))
		}

		acc, ok := groups[tx.CustomerID]
		if !ok {
			acc = &customerAccumulator{
				first:    tx.InvoiceDate,
				last:     tx.InvoiceDate,
				invoices: make(map[string]struct{}),
			}
			groups[tx.CustomerID] = acc
		}
		if tx.InvoiceDate.Before(acc.first) {
			acc.first = tx.InvoiceDate
		}
		if tx.InvoiceDate.After(acc.last) {
			acc.last = tx.InvoiceDate
		}
		acc.invoices[tx.InvoiceID] = struct{}{}
		acc.revenue += tx.TotalPrice
	}

	result := make([]models.CustomerFeatures, 0, len(groups))
	for id, acc := range groups {
		frequency := len(acc.invoices)
		if frequency < minFrequency {
			continue
		}
		result = append(result, models.CustomerFeatures{
			CustomerID: id,
			Recency:    float64(wholeDays(acc.last.Sub(acc.first))) / daysPerWeek,
			T:          float64(wholeDays(cutoff.Sub(acc.first))) / daysPerWeek,
			Frequency:  frequency,
			Monetary:   acc.revenue / float64(frequency),
		})
	}

	slices.SortFunc(result, func(a, b models.CustomerFeatures) int {
		return strings.Compare(a.CustomerID, b.CustomerID)
	})
	return result, nil
}

// wholeDays truncates towards zero.
func wholeDays(d time.Duration) int {
	return int(d / day)
}
