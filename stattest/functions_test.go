package stattest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIgamc(t *testing.T) {
	// Q(1, x) = exp(-x)
	for _, x := range []float64{0.1, 1, 2, 5, 10} {
		assert.InDelta(t, math.Exp(-x), igamc(1, x), 1e-12)
	}

	// Q(0.5, x) = erfc(sqrt(x))
	for _, x := range []float64{0.25, 1, 4} {
		assert.InDelta(t, math.Erfc(math.Sqrt(x)), igamc(0.5, x), 1e-12)
	}

	assert.Equal(t, 1.0, igamc(3, 0))
	assert.True(t, math.IsNaN(igamc(0, 1)))
}

func TestStdNormalCDF(t *testing.T) {
	assert.InDelta(t, 0.5, stdNormalCDF(0), 1e-15)
	assert.InDelta(t, 0.8413447460685429, stdNormalCDF(1), 1e-12)
	assert.InDelta(t, 1, stdNormalCDF(0)+stdNormalCDF(0), 1e-15)
	assert.InDelta(t, 1, stdNormalCDF(2)+stdNormalCDF(-2), 1e-15)
}
