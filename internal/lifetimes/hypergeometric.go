package lifetimes

import "math"

const (
	hypTolerance = 1e-15
	hypMaxTerms  = 100000
)

// hyp2f1 sums the Gauss hypergeometric series 2F1(a,b;c;z) for |z| < 1.
// It returns NaN when the sum overflows or does not settle within
// hypMaxTerms terms.
func hyp2f1(a, b, c, z float64) float64 {
	if z == 0 {
		return 1
	}
	if math.Abs(z) >= 1 {
		return math.NaN()
	}

	term, sum := 1.0, 1.0
	for n := 0.0; n < hypMaxTerms; n++ {
		term *= (a + n) * (b + n) / ((c + n) * (n + 1)) * z
		sum += term
		if !finite(sum) {
			return math.NaN()
		}
		if math.Abs(term) <= hypTolerance*math.Abs(sum) {
			return sum
		}
	}
	return math.NaN()
}

// logHyp2f1 returns ln 2F1(a,b;c;z). When the direct series overflows it
// falls back to Euler's transformation
// 2F1(a,b;c;z) = (1-z)^(c-a-b) 2F1(c-a,c-b;c;z).
func logHyp2f1(a, b, c, z float64) float64 {
	if v := hyp2f1(a, b, c, z); finite(v) && v > 0 {
		return math.Log(v)
	}
	return math.Log(hyp2f1(c-a, c-b, c, z)) + (c-a-b)*math.Log1p(-z)
}
