package normalize

import "math"

// Asymmetry is the product-tunable positive/negative rescaling of the
// unified score. It sits outside the core formula so the symmetric math
// stays testable on its own.
type Asymmetry struct {
	PositiveGain float64 `yaml:"positive_gain"`
	NegativeGain float64 `yaml:"negative_gain"`
}

// DefaultAsymmetry amplifies good days slightly more than bad ones.
func DefaultAsymmetry() Asymmetry {
	return Asymmetry{PositiveGain: 1.10, NegativeGain: 0.92}
}

// SymmetricAsymmetry disables the product bias.
func SymmetricAsymmetry() Asymmetry {
	return Asymmetry{PositiveGain: 1.0, NegativeGain: 1.0}
}

// CombinerConfig holds the unified-score shape parameters.
type CombinerConfig struct {
	// Floor keeps magnitude alive even on quiet days; Floor+Span bounds
	// it on the loudest.
	Floor float64 `yaml:"floor"`
	Span  float64 `yaml:"span"`
	// Gain steepens the saturating squash.
	Gain float64 `yaml:"gain"`
}

// DefaultCombinerConfig returns the production shape.
func DefaultCombinerConfig() CombinerConfig {
	return CombinerConfig{Floor: 0.30, Span: 0.70, Gain: 1.7}
}

// Combiner folds normalized intensity and harmony into one signed score
// on -100..100.
type Combiner struct {
	config CombinerConfig
	asym   Asymmetry
}

// NewCombiner creates a Combiner.
func NewCombiner(config CombinerConfig, asym Asymmetry) *Combiner {
	return &Combiner{config: config, asym: asym}
}

// Unified computes the signed combined score. Direction follows
// sign(harmony-50); magnitude scales with intensity from a non-zero floor
// and saturates smoothly through tanh.
func (c *Combiner) Unified(intensity, harmony float64) float64 {
	capped := intensity
	if capped > 100 {
		capped = 100
	}
	if capped < 0 {
		capped = 0
	}
	base := c.config.Floor + c.config.Span*capped/100

	dev := (harmony - 50) / 50
	raw := base * dev
	if raw > 0 {
		raw *= c.asym.PositiveGain
	} else if raw < 0 {
		raw *= c.asym.NegativeGain
	}
	return 100 * math.Tanh(c.config.Gain*raw)
}
