package services

import "cltv-analytics/internal/models"

type CleanOptions struct {
	CancellationMarker string
	// Country keeps a single country's rows when set.
	Country       string
	LowerQuantile float64
	UpperQuantile float64
}

type CleanStats struct {
	Input               int        `json:"input"`
	Incomplete          int        `json:"incomplete"`
	Cancelled           int        `json:"cancelled"`
	NonPositiveQuantity int        `json:"non_positive_quantity"`
	NonPositivePrice    int        `json:"non_positive_price"`
	OtherCountry        int        `json:"other_country"`
	Output              int        `json:"output"`
	QuantityLimits      [2]float64 `json:"quantity_limits"`
	PriceLimits         [2]float64 `json:"price_limits"`
}

// Clean filters txs down to complete, non-cancelled rows with positive
// quantity and price, caps quantity and unit price outliers and derives the
// line total. The input slice is not modified. An empty result is valid.
func Clean(txs []models.Transaction, opts CleanOptions) ([]models.Transaction, CleanStats) {
	stats := CleanStats{Input: len(txs)}
	out := make([]models.Transaction, 0, len(txs))

	for _, tx := range txs {
		switch {
		case !tx.Complete():
			stats.Incomplete++
		case tx.Cancelled(opts.CancellationMarker):
			stats.Cancelled++
		case tx.Quantity <= 0:
			stats.NonPositiveQuantity++
		case tx.UnitPrice <= 0:
			stats.NonPositivePrice++
		case opts.Country != "" && tx.Country != opts.Country:
			stats.OtherCountry++
		default:
			out = append(out, tx)
		}
	}

	stats.Output = len(out)
	if len(out) == 0 {
		return out, stats
	}

	quantities := make([]float64, len(out))
	prices := make([]float64, len(out))
	for i, tx := range out {
		quantities[i] = tx.Quantity
		prices[i] = tx.UnitPrice
	}

	qLow, qHigh := CapOutliers(quantities, opts.LowerQuantile, opts.UpperQuantile)
	pLow, pHigh := CapOutliers(prices, opts.LowerQuantile, opts.UpperQuantile)
	stats.QuantityLimits = [2]float64{qLow, qHigh}
	stats.PriceLimits = [2]float64{pLow, pHigh}

	for i := range out {
		out[i].Quantity = quantities[i]
		out[i].UnitPrice = prices[i]
		out[i].TotalPrice = quantities[i] * prices[i]
	}

	return out, stats
}
