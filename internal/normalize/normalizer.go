package normalize

import (
	"github.com/ebursztein/arca-backend/internal/contracts"
	"github.com/ebursztein/arca-backend/internal/scoring"
)

// Config holds normalization policy.
type Config struct {
	// IntensityMargin bounds how far past the nominal scale an outlier
	// intensity may climb.
	IntensityMargin float64 `yaml:"intensity_margin"`
	// HarmonyMargin does the same for each harmony tail. It is kept at
	// 1.0 so the harmony scale tops out at exactly 100.
	HarmonyMargin float64 `yaml:"harmony_margin"`
	// FallbackConcurrent is how many simultaneous maximum-strength
	// contacts the uncalibrated ceiling assumes. Deliberately generous:
	// an uncalibrated meter should read low, never inflated.
	FallbackConcurrent float64 `yaml:"fallback_concurrent"`
}

// DefaultConfig returns the production normalization policy.
func DefaultConfig() Config {
	return Config{
		IntensityMargin:    6.0,
		HarmonyMargin:      1.0,
		FallbackConcurrent: 4.0,
	}
}

// Normalizer maps raw meter scores onto the bounded display scale using an
// injected calibration table. The table is immutable; swapping calibration
// means constructing a new Normalizer.
type Normalizer struct {
	table           *contracts.CalibrationTable
	config          Config
	fallbackCeiling float64
}

// New creates a Normalizer. table may be nil, in which case every meter
// takes the uncalibrated fallback path.
func New(table *contracts.CalibrationTable, weights scoring.Weights, config Config) *Normalizer {
	return &Normalizer{
		table:           table,
		config:          config,
		fallbackCeiling: weights.MaxWeightage() * weights.MaxPower() * config.FallbackConcurrent,
	}
}

// Apply fills a reading's normalized scores and qualitative labels from
// its raw sums.
func (n *Normalizer) Apply(r *contracts.MeterReading) {
	intensity, uncal := n.Intensity(r.Meter, r.RawIntensity)
	harmony, uncalH := n.Harmony(r.Meter, r.RawValence)
	r.Intensity = intensity
	r.Harmony = harmony
	r.Uncalibrated = uncal || uncalH
	r.IntensityLabel = IntensityBucket(intensity)
	r.HarmonyLabel = HarmonyBucket(harmony)
}

// Intensity normalizes a raw intensity sum to 0-100 (slightly above 100 on
// outlier days). The second return reports the uncalibrated fallback.
func (n *Normalizer) Intensity(meter contracts.MeterID, raw float64) (float64, bool) {
	mc := n.table.Meter(meter)
	if mc == nil {
		return n.fallbackIntensity(raw), true
	}
	return curveScore(raw, &mc.Intensity, n.config.IntensityMargin), false
}

// Harmony normalizes a raw valence sum to 0-100. Raw zero maps to exactly
// 50 for every meter: positive raws land in (50, 100), negative in (0, 50),
// each tail scored against its own calibrated curve.
func (n *Normalizer) Harmony(meter contracts.MeterID, raw float64) (float64, bool) {
	if raw == 0 {
		return 50, false
	}
	mc := n.table.Meter(meter)
	if mc == nil {
		return n.fallbackHarmony(raw), true
	}
	if raw > 0 {
		side := curveScore(raw, &mc.HarmonyPositive, n.config.HarmonyMargin)
		return 50 + side/2, false
	}
	side := curveScore(-raw, &mc.HarmonyNegative, n.config.HarmonyMargin)
	return 50 - side/2, false
}

// fallbackIntensity scales against the theoretical ceiling, clamped to the
// nominal scale. Conservative on purpose.
func (n *Normalizer) fallbackIntensity(raw float64) float64 {
	if raw <= 0 || n.fallbackCeiling <= 0 {
		return 0
	}
	v := 100 * raw / n.fallbackCeiling
	if v > 100 {
		v = 100
	}
	return v
}

func (n *Normalizer) fallbackHarmony(raw float64) float64 {
	if n.fallbackCeiling <= 0 {
		return 50
	}
	mag := raw
	if mag < 0 {
		mag = -mag
	}
	side := 50 * mag / n.fallbackCeiling
	if side > 50 {
		side = 50
	}
	if raw > 0 {
		return 50 + side
	}
	return 50 - side
}

// Table exposes the injected calibration table, nil when running
// uncalibrated.
func (n *Normalizer) Table() *contracts.CalibrationTable {
	return n.table
}
