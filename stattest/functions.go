package stattest

import (
	"math"
)

// Special functions needed for the chi-square based tests. igamc is the
// regularized upper incomplete gamma function Q(a, x), computed via the
// usual series / continued fraction split.

const (
	igamcEpsilon       = 1e-14
	igamcMaxIterations = 500
)

func igamc(a, x float64) float64 {
	switch {
	case a <= 0 || math.IsNaN(a) || math.IsNaN(x):
		return math.NaN()
	case x <= 0:
		return 1
	case x < a+1:
		return 1 - igamSeries(a, x)
	default:
		return igamcContinuedFraction(a, x)
	}
}

// igamSeries computes P(a, x) by its power series, valid for x < a+1.
func igamSeries(a, x float64) float64 {
	lgamma, _ := math.Lgamma(a)

	term := 1.0 / a
	sum := term
	for n := 1; n < igamcMaxIterations; n++ {
		term *= x / (a + float64(n))
		sum += term
		if math.Abs(term) < math.Abs(sum)*igamcEpsilon {
			break
		}
	}
	return sum * math.Exp(-x+a*math.Log(x)-lgamma)
}

// igamcContinuedFraction computes Q(a, x) by a modified Lentz continued
// fraction, valid for x >= a+1.
func igamcContinuedFraction(a, x float64) float64 {
	lgamma, _ := math.Lgamma(a)

	const tiny = 1e-300
	b := x + 1 - a
	c := 1 / tiny
	d := 1 / b
	result := d

	for n := 1; n < igamcMaxIterations; n++ {
		an := -float64(n) * (float64(n) - a)
		b += 2
		d = an*d + b
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = b + an/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		delta := d * c
		result *= delta
		if math.Abs(delta-1) < igamcEpsilon {
			break
		}
	}
	return result * math.Exp(-x+a*math.Log(x)-lgamma)
}

// stdNormalCDF is the standard normal cumulative distribution function.
func stdNormalCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}
