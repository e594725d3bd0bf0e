package lifetimes

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"

	apperrors "cltv-analytics/internal/errors"
	"cltv-analytics/internal/models"
)

// BetaGeo is a fitted BG/NBD model. R and Alpha shape the gamma-distributed
// purchase rate, A and B the beta-distributed dropout probability.
type BetaGeo struct {
	R, Alpha, A, B float64
}

func (m *BetaGeo) Params() map[string]float64 {
	return map[string]float64{"r": m.R, "alpha": m.Alpha, "a": m.A, "b": m.B}
}

// FitBetaGeo estimates the BG/NBD parameters. Time is rescaled so the
// longest tenure is 10 periods while optimizing, and alpha is mapped back
// afterwards.
func FitBetaGeo(ctx context.Context, features []models.CustomerFeatures, penalizer float64) (*BetaGeo, error) {
	if len(features) == 0 {
		return nil, apperrors.ModelFit("BG/NBD needs at least one customer")
	}

	ts := make([]float64, len(features))
	for i, f := range features {
		if f.Frequency < 0 || f.Recency < 0 || f.T < 0 || f.Recency > f.T {
			return nil, apperrors.ModelFit("BG/NBD input violates 0 <= recency <= T").
				WithDetails("customer " + f.CustomerID)
		}
		ts[i] = f.T
	}
	maxT := floats.Max(ts)
	if maxT <= 0 {
		return nil, apperrors.ModelFit("BG/NBD needs a positive tenure")
	}
	scale := 10 / maxT

	scaled := make([]models.CustomerFeatures, len(features))
	for i, f := range features {
		f.Recency *= scale
		f.T *= scale
		scaled[i] = f
	}

	params, err := minimizeLogParams(ctx, "BG/NBD", 4, func(p []float64) float64 {
		m := BetaGeo{R: p[0], Alpha: p[1], A: p[2], B: p[3]}
		sum := 0.0
		for _, f := range scaled {
			sum += m.logLikelihood(f)
		}
		return -sum/float64(len(scaled)) + penalizer*floats.Dot(p, p)
	})
	if err != nil {
		return nil, err
	}

	return &BetaGeo{R: params[0], Alpha: params[1] / scale, A: params[2], B: params[3]}, nil
}

func (m BetaGeo) logLikelihood(f models.CustomerFeatures) float64 {
	x := float64(f.Frequency)
	r, alpha, a, b := m.R, m.Alpha, m.A, m.B

	a1 := lgamma(r+x) - lgamma(r) + r*math.Log(alpha)
	a2 := lgamma(a+b) + lgamma(b+x) - lgamma(b) - lgamma(a+b+x)
	a3 := -(r + x) * math.Log(alpha+f.T)
	if f.Frequency == 0 {
		return a1 + a2 + a3
	}

	a4 := math.Log(a) - math.Log(b+x-1) - (r+x)*math.Log(f.Recency+alpha)
	hi := math.Max(a3, a4)
	return a1 + a2 + hi + math.Log(math.Exp(a3-hi)+math.Exp(a4-hi))
}

func (m *BetaGeo) ConditionalExpectedPurchases(t float64, f models.CustomerFeatures) float64 {
	if t <= 0 {
		return 0
	}
	x := float64(f.Frequency)
	r, alpha, a, b := m.R, m.Alpha, m.A, m.B

	ha, hb, hc := r+x, b+x, a+b+x-1
	z := t / (alpha + f.T + t)

	lnHyp := logHyp2f1(ha, hb, hc, z)

	first := (a + b + x - 1) / (a - 1)
	second := 1 - math.Exp(lnHyp+(r+x)*math.Log((alpha+f.T)/(alpha+t+f.T)))
	numerator := first * second

	denominator := 1.0
	if f.Frequency > 0 {
		denominator += (a / (b + x - 1)) * math.Pow((alpha+f.T)/(alpha+f.Recency), r+x)
	}
	return numerator / denominator
}
