// Package lifetimes fits the BG/NBD purchase-frequency model and the
// Gamma-Gamma monetary-value model on per-customer features and projects
// discounted customer lifetime value from them.
//
// The rest of the module only depends on the FrequencyModel, MonetaryModel
// and Fitter interfaces, so tests can substitute deterministic stubs.
package lifetimes

import (
	"context"
	"fmt"
	"math"

	apperrors "cltv-analytics/internal/errors"
	"cltv-analytics/internal/models"
)

type FrequencyModel interface {
	// ConditionalExpectedPurchases is the expected number of purchases in
	// the next t periods for a customer with the given history.
	ConditionalExpectedPurchases(t float64, f models.CustomerFeatures) float64
	Params() map[string]float64
}

type MonetaryModel interface {
	ConditionalExpectedAverageProfit(frequency int, monetary float64) float64
	Params() map[string]float64
}

type Fitter interface {
	FitFrequency(ctx context.Context, features []models.CustomerFeatures) (FrequencyModel, error)
	FitMonetary(ctx context.Context, features []models.CustomerFeatures) (MonetaryModel, error)
}

// TimeUnit is the unit recency and T are expressed in.
type TimeUnit string

const (
	Weekly  TimeUnit = "W"
	Monthly TimeUnit = "M"
	Daily   TimeUnit = "D"
	Hourly  TimeUnit = "H"
)

// PeriodsPerMonth converts one month of horizon into model periods.
func (u TimeUnit) PeriodsPerMonth() (float64, error) {
	switch u {
	case Weekly:
		return 4.345, nil
	case Monthly:
		return 1, nil
	case Daily:
		return 30, nil
	case Hourly:
		return 30 * 24, nil
	default:
		return 0, apperrors.Validation(fmt.Sprintf("unknown time unit %q", string(u)))
	}
}

// PredictPurchases evaluates the frequency model for every customer over
// the next horizon periods.
func PredictPurchases(model FrequencyModel, horizon float64, features []models.CustomerFeatures) []float64 {
	out := make([]float64, len(features))
	for i, f := range features {
		out[i] = model.ConditionalExpectedPurchases(horizon, f)
	}
	return out
}

func ExpectedProfit(model MonetaryModel, features []models.CustomerFeatures) []float64 {
	out := make([]float64, len(features))
	for i, f := range features {
		out[i] = model.ConditionalExpectedAverageProfit(f.Frequency, f.Monetary)
	}
	return out
}

// ProjectValue returns the discounted lifetime value of every customer over
// the next months. Each month contributes the expected profit times the
// purchases expected within that month, discounted by (1+rate)^month.
func ProjectValue(freq FrequencyModel, mon MonetaryModel, features []models.CustomerFeatures,
	months int, unit TimeUnit, discountRate float64) ([]float64, error) {

	factor, err := unit.PeriodsPerMonth()
	if err != nil {
		return nil, err
	}
	if months <= 0 {
		return nil, apperrors.Validation(fmt.Sprintf("horizon must be positive, got %d months", months))
	}
	if discountRate <= -1 {
		return nil, apperrors.Validation(fmt.Sprintf("discount rate must exceed -1, got %g", discountRate))
	}

	profit := ExpectedProfit(mon, features)
	clv := make([]float64, len(features))
	for i, f := range features {
		prev := 0.0
		for m := 1; m <= months; m++ {
			t := float64(m) * factor
			cur := freq.ConditionalExpectedPurchases(t, f)
			clv[i] += profit[i] * (cur - prev) / math.Pow(1+discountRate, float64(m))
			prev = cur
		}
	}
	return clv, nil
}

// MLEFitter fits both models by penalized maximum likelihood.
type MLEFitter struct {
	FrequencyPenalizer float64
	MonetaryPenalizer  float64
}

func NewFitter(frequencyPenalizer, monetaryPenalizer float64) *MLEFitter {
	return &MLEFitter{
		FrequencyPenalizer: frequencyPenalizer,
		MonetaryPenalizer:  monetaryPenalizer,
	}
}

func (f *MLEFitter) FitFrequency(ctx context.Context, features []models.CustomerFeatures) (FrequencyModel, error) {
	return FitBetaGeo(ctx, features, f.FrequencyPenalizer)
}

func (f *MLEFitter) FitMonetary(ctx context.Context, features []models.CustomerFeatures) (MonetaryModel, error) {
	return FitGammaGamma(ctx, features, f.MonetaryPenalizer)
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
