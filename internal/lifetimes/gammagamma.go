package lifetimes

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"

	apperrors "cltv-analytics/internal/errors"
	"cltv-analytics/internal/models"
)

// GammaGamma is a fitted Gamma-Gamma spend model.
type GammaGamma struct {
	P, Q, V float64
}

func (m *GammaGamma) Params() map[string]float64 {
	return map[string]float64{"p": m.P, "q": m.Q, "v": m.V}
}

// FitGammaGamma requires every customer to have at least one purchase and a
// strictly positive average spend.
func FitGammaGamma(ctx context.Context, features []models.CustomerFeatures, penalizer float64) (*GammaGamma, error) {
	if len(features) == 0 {
		return nil, apperrors.ModelFit("Gamma-Gamma needs at least one customer")
	}
	for _, f := range features {
		if f.Frequency <= 0 || f.Monetary <= 0 || !finite(f.Monetary) {
			return nil, apperrors.ModelFit("Gamma-Gamma needs positive frequency and monetary value").
				WithDetails("customer " + f.CustomerID)
		}
	}

	params, err := minimizeLogParams(ctx, "Gamma-Gamma", 3, func(p []float64) float64 {
		m := GammaGamma{P: p[0], Q: p[1], V: p[2]}
		sum := 0.0
		for _, f := range features {
			sum += m.logLikelihood(f)
		}
		return -sum/float64(len(features)) + penalizer*floats.Dot(p, p)
	})
	if err != nil {
		return nil, err
	}

	return &GammaGamma{P: params[0], Q: params[1], V: params[2]}, nil
}

func (m GammaGamma) logLikelihood(f models.CustomerFeatures) float64 {
	x := float64(f.Frequency)
	px := m.P * x
	return lgamma(px+m.Q) - lgamma(px) - lgamma(m.Q) +
		m.Q*math.Log(m.V) +
		(px-1)*math.Log(f.Monetary) +
		px*math.Log(x) -
		(px+m.Q)*math.Log(x*f.Monetary+m.V)
}

// ConditionalExpectedAverageProfit shrinks the observed average spend
// towards the population mean v·p/(q−1), weighting the customer by how
// many purchases back the observation.
func (m *GammaGamma) ConditionalExpectedAverageProfit(frequency int, monetary float64) float64 {
	x := float64(frequency)
	weight := m.P * x / (m.P*x + m.Q - 1)
	populationMean := m.V * m.P / (m.Q - 1)
	return (1-weight)*populationMean + weight*monetary
}
