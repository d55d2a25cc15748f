package contracts

import "time"

// MeterID names one life-area meter, e.g. "clarity" or "romance".
type MeterID string

// GroupID names one meter group, e.g. "mind" or "heart".
type GroupID string

// TopAspect is a display-ready slice of one contribution, kept on the
// reading so clients can explain the score without re-deriving it.
type TopAspect struct {
	TransitBody Body       `json:"transit_body"`
	NatalBody   Body       `json:"natal_body"`
	Type        AspectType `json:"type"`
	Orb         float64    `json:"orb"`
	Phase       Phase      `json:"phase"`
	Intensity   float64    `json:"intensity"` // W*P share of this aspect
	Valence     float64    `json:"valence"`   // W*P*Q share of this aspect
}

// MeterReading is one meter's finished score for one date.
type MeterReading struct {
	Meter   MeterID   `json:"meter"`
	Group   GroupID   `json:"group"`
	Date    time.Time `json:"date"`
	// Intensity is the normalized activity level, 0-100.
	Intensity float64 `json:"intensity"`
	// Harmony is the normalized favorability, 0-100, anchored at 50.
	Harmony float64 `json:"harmony"`
	// Unified folds intensity and harmony into one signed score, -100..100.
	Unified float64 `json:"unified"`
	// IntensityLabel and HarmonyLabel are coarse qualitative buckets.
	IntensityLabel string `json:"intensity_label"`
	HarmonyLabel   string `json:"harmony_label"`
	// Trend is nil when no prior-day readings were derivable.
	Trend *TrendSet `json:"trend,omitempty"`
	// TopAspects lists up to five strongest contributions by |valence|.
	TopAspects []TopAspect `json:"top_aspects"`
	// Uncalibrated is set when scores came from the theoretical-range
	// fallback instead of a calibration table.
	Uncalibrated bool `json:"uncalibrated,omitempty"`

	// Raw pre-normalization sums, kept for calibration and debugging only.
	RawIntensity float64 `json:"-"`
	RawValence   float64 `json:"-"`
}

// GroupReading is one meter group's combined score for one date.
type GroupReading struct {
	Group     GroupID   `json:"group"`
	Date      time.Time `json:"date"`
	Intensity float64   `json:"intensity"`
	Harmony   float64   `json:"harmony"`
	Unified   float64   `json:"unified"`
	Trend     *TrendSet `json:"trend,omitempty"`
}

// DailyReadings is the complete scored output for one chart and one date.
type DailyReadings struct {
	ChartID            string                    `json:"chart_id"`
	Date               time.Time                 `json:"date"`
	Meters             map[MeterID]*MeterReading `json:"meters"`
	Groups             map[GroupID]*GroupReading `json:"groups"`
	CalibrationVersion string                    `json:"calibration_version"`
	GeneratedAt        time.Time                 `json:"generated_at"`
}

// Meter returns the reading for id, or nil when the meter is unknown.
func (d *DailyReadings) Meter(id MeterID) *MeterReading {
	if d == nil || d.Meters == nil {
		return nil
	}
	return d.Meters[id]
}
