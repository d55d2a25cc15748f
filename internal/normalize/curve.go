package normalize

import (
	"math"

	"github.com/ebursztein/arca-backend/internal/contracts"
)

// curveScore maps a non-negative raw value onto [0, 99+margin) using the
// calibrated percentile curve. Below the lowest breakpoint it interpolates
// down to (0, 0); between breakpoints it interpolates linearly; above the
// top breakpoint it compresses logarithmically so outlier days exceed the
// nominal scale by a bounded margin instead of clipping or blowing out.
func curveScore(raw float64, c *contracts.Curve, margin float64) float64 {
	if raw <= 0 || len(c.Values) == 0 {
		return 0
	}

	top := c.Ceiling()
	if raw >= top {
		over := 0.0
		if top > 0 {
			over = (raw - top) / top
		}
		return c.Ranks[len(c.Ranks)-1] + margin*math.Tanh(math.Log1p(over))
	}

	// Below the lowest recorded breakpoint: anchor at (0, 0).
	if raw < c.Values[0] {
		return interpolate(raw, 0, 0, c.Values[0], c.Ranks[0])
	}

	for i := 1; i < len(c.Values); i++ {
		if raw >= c.Values[i] {
			continue
		}
		lo, hi := c.Values[i-1], c.Values[i]
		if hi == lo {
			return c.Ranks[i]
		}
		return interpolate(raw, lo, c.Ranks[i-1], hi, c.Ranks[i])
	}
	return c.Ranks[len(c.Ranks)-1]
}

// interpolate maps v from [x0, x1] onto [y0, y1] linearly.
func interpolate(v, x0, y0, x1, y1 float64) float64 {
	if x1 == x0 {
		return y1
	}
	return y0 + (v-x0)*(y1-y0)/(x1-x0)
}
