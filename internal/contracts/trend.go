package contracts

// TrendDirection is the sign of day-over-day motion.
type TrendDirection string

const (
	TrendRising  TrendDirection = "rising"
	TrendStable  TrendDirection = "stable"
	TrendFalling TrendDirection = "falling"
)

// TrendSpeed buckets how fast a metric is moving relative to the
// population's observed day-over-day rates.
type TrendSpeed string

const (
	SpeedStable   TrendSpeed = "stable"
	SpeedSlow     TrendSpeed = "slow"
	SpeedModerate TrendSpeed = "moderate"
	SpeedRapid    TrendSpeed = "rapid"
)

// TrendMetric names which score the trend was computed over.
type TrendMetric string

const (
	MetricIntensity TrendMetric = "intensity"
	MetricHarmony   TrendMetric = "harmony"
	MetricUnified   TrendMetric = "unified"
)

// TrendMetrics lists the tracked metrics in output order.
var TrendMetrics = []TrendMetric{MetricIntensity, MetricHarmony, MetricUnified}

// TrendRecord classifies one metric's motion between consecutive days.
type TrendRecord struct {
	Metric    TrendMetric    `json:"metric"`
	Previous  float64        `json:"previous"`
	Delta     float64        `json:"delta"`
	Direction TrendDirection `json:"direction"`
	Speed     TrendSpeed     `json:"speed"`
}

// Moving reports whether the record shows any classified motion.
func (t *TrendRecord) Moving() bool {
	return t != nil && t.Direction != TrendStable
}

// DirectionWord phrases the direction for the metric's family: valence
// metrics improve or worsen, magnitude metrics increase or decrease.
func (t *TrendRecord) DirectionWord() string {
	if t == nil || t.Direction == TrendStable {
		return "stable"
	}
	valence := t.Metric == MetricHarmony || t.Metric == MetricUnified
	if t.Direction == TrendRising {
		if valence {
			return "improving"
		}
		return "increasing"
	}
	if valence {
		return "worsening"
	}
	return "decreasing"
}

// TrendSet groups the three per-metric records for one meter or group.
type TrendSet struct {
	Intensity *TrendRecord `json:"intensity,omitempty"`
	Harmony   *TrendRecord `json:"harmony,omitempty"`
	Unified   *TrendRecord `json:"unified,omitempty"`
}

// Get returns the record for a metric.
func (s *TrendSet) Get(m TrendMetric) *TrendRecord {
	if s == nil {
		return nil
	}
	switch m {
	case MetricIntensity:
		return s.Intensity
	case MetricHarmony:
		return s.Harmony
	case MetricUnified:
		return s.Unified
	}
	return nil
}
