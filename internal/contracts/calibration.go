package contracts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Curve is an empirical percentile curve for one raw-score distribution.
// Ranks are ascending percentile ranks in (0, 100); Values carries the raw
// score observed at each rank and must be non-decreasing.
type Curve struct {
	Ranks  []float64 `json:"ranks"`
	Values []float64 `json:"values"`
}

// StandardRanks is the sampling grid every calibration run records.
var StandardRanks = []float64{1, 5, 10, 20, 30, 40, 50, 60, 70, 80, 85, 90, 95, 97, 99}

// Validate checks structural soundness of the curve.
func (c *Curve) Validate() error {
	if len(c.Ranks) == 0 || len(c.Ranks) != len(c.Values) {
		return fmt.Errorf("curve: ranks/values length mismatch (%d vs %d)", len(c.Ranks), len(c.Values))
	}
	for i := range c.Ranks {
		if c.Ranks[i] <= 0 || c.Ranks[i] >= 100 {
			return fmt.Errorf("curve: rank %.2f out of (0,100)", c.Ranks[i])
		}
		if i > 0 && c.Ranks[i] <= c.Ranks[i-1] {
			return fmt.Errorf("curve: ranks not strictly ascending at index %d", i)
		}
		if i > 0 && c.Values[i] < c.Values[i-1] {
			return fmt.Errorf("curve: values decreasing at index %d", i)
		}
	}
	return nil
}

// Ceiling returns the highest recorded value, the p99 anchor.
func (c *Curve) Ceiling() float64 {
	if len(c.Values) == 0 {
		return 0
	}
	return c.Values[len(c.Values)-1]
}

// RateQuantiles holds the population's day-over-day movement quantiles
// for one metric, used to bucket trend speed.
type RateQuantiles struct {
	P50 float64 `json:"p50"`
	P80 float64 `json:"p80"`
	P95 float64 `json:"p95"`
}

// Validate checks the quantiles are ordered and non-negative.
func (r *RateQuantiles) Validate() error {
	if r.P50 < 0 || r.P80 < r.P50 || r.P95 < r.P80 {
		return fmt.Errorf("rate quantiles out of order: p50=%.3f p80=%.3f p95=%.3f", r.P50, r.P80, r.P95)
	}
	return nil
}

// MeterCalibration is the full calibration payload for one meter.
// Harmony keeps separate curves per sign so the zero anchor survives
// asymmetric populations.
type MeterCalibration struct {
	Intensity       Curve                         `json:"intensity"`
	HarmonyPositive Curve                         `json:"harmony_positive"`
	HarmonyNegative Curve                         `json:"harmony_negative"`
	Rates           map[TrendMetric]RateQuantiles `json:"rates"`
}

// Validate checks every curve and rate block.
func (m *MeterCalibration) Validate() error {
	if err := m.Intensity.Validate(); err != nil {
		return fmt.Errorf("intensity: %w", err)
	}
	if err := m.HarmonyPositive.Validate(); err != nil {
		return fmt.Errorf("harmony positive: %w", err)
	}
	if err := m.HarmonyNegative.Validate(); err != nil {
		return fmt.Errorf("harmony negative: %w", err)
	}
	for metric, rq := range m.Rates {
		if err := rq.Validate(); err != nil {
			return fmt.Errorf("rates[%s]: %w", metric, err)
		}
	}
	return nil
}

// Provenance records how a calibration artifact was produced, so any run
// can be reproduced from the artifact alone.
type Provenance struct {
	PopulationSize int       `json:"population_size"`
	DatesSampled   int       `json:"dates_sampled"`
	Seed           int64     `json:"seed"`
	BirthYearMin   int       `json:"birth_year_min"`
	BirthYearMax   int       `json:"birth_year_max"`
	LatitudeMin    float64   `json:"latitude_min"`
	LatitudeMax    float64   `json:"latitude_max"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// CalibrationTable is the versioned scoring artifact. The engine treats it
// as immutable once loaded; new runs produce new versions.
type CalibrationTable struct {
	Version    string                                    `json:"version"`
	CreatedAt  time.Time                                 `json:"created_at"`
	Provenance Provenance                                `json:"provenance"`
	Meters     map[MeterID]*MeterCalibration             `json:"meters"`
	GroupRates map[GroupID]map[TrendMetric]RateQuantiles `json:"group_rates"`
	Checksum   string                                    `json:"checksum,omitempty"`
}

// Validate checks every meter block. It does not verify the checksum;
// callers that care use VerifyChecksum.
func (t *CalibrationTable) Validate() error {
	if t.Version == "" {
		return fmt.Errorf("calibration: missing version")
	}
	if len(t.Meters) == 0 {
		return fmt.Errorf("calibration: no meters")
	}
	for id, mc := range t.Meters {
		if err := mc.Validate(); err != nil {
			return fmt.Errorf("calibration meter %s: %w", id, err)
		}
	}
	return nil
}

// ComputeChecksum hashes the scoring-relevant content (meters and group
// rates) over canonical JSON, ignoring version and timestamps.
func (t *CalibrationTable) ComputeChecksum() (string, error) {
	payload := struct {
		Meters     map[MeterID]*MeterCalibration             `json:"meters"`
		GroupRates map[GroupID]map[TrendMetric]RateQuantiles `json:"group_rates"`
	}{t.Meters, t.GroupRates}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("checksum marshal: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Seal fills in the checksum field from current content.
func (t *CalibrationTable) Seal() error {
	sum, err := t.ComputeChecksum()
	if err != nil {
		return err
	}
	t.Checksum = sum
	return nil
}

// VerifyChecksum recomputes the checksum and compares it to the stored one.
func (t *CalibrationTable) VerifyChecksum() error {
	if t.Checksum == "" {
		return fmt.Errorf("calibration: no checksum recorded")
	}
	sum, err := t.ComputeChecksum()
	if err != nil {
		return err
	}
	if sum != t.Checksum {
		return fmt.Errorf("calibration: checksum mismatch (stored %s, computed %s)", t.Checksum[:8], sum[:8])
	}
	return nil
}

// Meter returns the calibration block for id, or nil when absent.
func (t *CalibrationTable) Meter(id MeterID) *MeterCalibration {
	if t == nil || t.Meters == nil {
		return nil
	}
	return t.Meters[id]
}

// Age reports how old the artifact is at now.
func (t *CalibrationTable) Age(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}
