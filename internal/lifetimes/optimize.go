package lifetimes

import (
	"context"
	"math"

	"gonum.org/v1/gonum/optimize"

	apperrors "cltv-analytics/internal/errors"
)

const (
	maxIterations   = 20000
	convergeTol     = 1e-10
	convergeWindow  = 200
	penaltyOnNonFin = 1e100
)

// minimizeLogParams minimizes nll over strictly positive parameters by
// searching their logarithms, starting from all ones.
func minimizeLogParams(ctx context.Context, model string, n int, nll func(params []float64) float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := make([]float64, n)
	problem := optimize.Problem{
		Func: func(logParams []float64) float64 {
			for i, lp := range logParams {
				params[i] = math.Exp(lp)
			}
			v := nll(params)
			if !finite(v) {
				return penaltyOnNonFin
			}
			return v
		},
	}

	settings := &optimize.Settings{
		MajorIterations: maxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   convergeTol,
			Relative:   convergeTol,
			Iterations: convergeWindow,
		},
	}

	result, err := optimize.Minimize(problem, make([]float64, n), settings, &optimize.NelderMead{})
	if err != nil {
		return nil, apperrors.ModelFitWrap(err, model+" did not converge")
	}
	if result.F >= penaltyOnNonFin || !finite(result.F) {
		return nil, apperrors.ModelFit(model + " likelihood is not finite at the optimum")
	}

	out := make([]float64, n)
	for i, lp := range result.X {
		out[i] = math.Exp(lp)
	}
	if !finite(out...) {
		return nil, apperrors.ModelFit(model + " produced non-finite parameters")
	}
	return out, nil
}
