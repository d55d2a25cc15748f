package trend

import (
	"math"

	"github.com/ebursztein/arca-backend/internal/contracts"
)

// Config holds classification policy shared by every metric.
type Config struct {
	// DeadZone is the |delta| band around zero that always reads as
	// stable direction, regardless of metric.
	DeadZone float64 `yaml:"dead_zone"`
}

// DefaultConfig returns the production classification policy.
func DefaultConfig() Config {
	return Config{DeadZone: 0.75}
}

// defaultRates are compiled fallbacks used when the calibration artifact
// lacks rate quantiles for a meter or predates them entirely. Each metric
// keeps its own thresholds; their natural volatilities differ too much to
// share.
var defaultRates = map[contracts.TrendMetric]contracts.RateQuantiles{
	contracts.MetricIntensity: {P50: 4.0, P80: 9.5, P95: 17.0},
	contracts.MetricHarmony:   {P50: 3.0, P80: 7.0, P95: 13.0},
	contracts.MetricUnified:   {P50: 5.0, P80: 11.0, P95: 20.0},
}

// Classifier turns consecutive-day score pairs into trend records.
type Classifier struct {
	table  *contracts.CalibrationTable
	config Config
}

// New creates a Classifier. table may be nil; compiled default rates then
// back every classification.
func New(table *contracts.CalibrationTable, config Config) *Classifier {
	return &Classifier{table: table, config: config}
}

// Meter classifies one metric's motion for a meter.
func (c *Classifier) Meter(id contracts.MeterID, metric contracts.TrendMetric, today, yesterday float64) *contracts.TrendRecord {
	return c.classify(c.meterRates(id, metric), metric, today, yesterday)
}

// Group classifies one metric's motion for a group, from the group's own
// aggregated series.
func (c *Classifier) Group(id contracts.GroupID, metric contracts.TrendMetric, today, yesterday float64) *contracts.TrendRecord {
	return c.classify(c.groupRates(id, metric), metric, today, yesterday)
}

// MeterSet classifies all three metrics between two readings of the same
// meter.
func (c *Classifier) MeterSet(today, yesterday *contracts.MeterReading) *contracts.TrendSet {
	if today == nil || yesterday == nil {
		return nil
	}
	return &contracts.TrendSet{
		Intensity: c.Meter(today.Meter, contracts.MetricIntensity, today.Intensity, yesterday.Intensity),
		Harmony:   c.Meter(today.Meter, contracts.MetricHarmony, today.Harmony, yesterday.Harmony),
		Unified:   c.Meter(today.Meter, contracts.MetricUnified, today.Unified, yesterday.Unified),
	}
}

// GroupSet classifies all three metrics between two readings of the same
// group.
func (c *Classifier) GroupSet(today, yesterday *contracts.GroupReading) *contracts.TrendSet {
	if today == nil || yesterday == nil {
		return nil
	}
	return &contracts.TrendSet{
		Intensity: c.Group(today.Group, contracts.MetricIntensity, today.Intensity, yesterday.Intensity),
		Harmony:   c.Group(today.Group, contracts.MetricHarmony, today.Harmony, yesterday.Harmony),
		Unified:   c.Group(today.Group, contracts.MetricUnified, today.Unified, yesterday.Unified),
	}
}

func (c *Classifier) classify(rates contracts.RateQuantiles, metric contracts.TrendMetric, today, yesterday float64) *contracts.TrendRecord {
	delta := today - yesterday
	mag := math.Abs(delta)

	direction := contracts.TrendStable
	if mag > c.config.DeadZone {
		if delta > 0 {
			direction = contracts.TrendRising
		} else {
			direction = contracts.TrendFalling
		}
	}

	var speed contracts.TrendSpeed
	switch {
	case mag < rates.P50:
		speed = contracts.SpeedStable
	case mag < rates.P80:
		speed = contracts.SpeedSlow
	case mag < rates.P95:
		speed = contracts.SpeedModerate
	default:
		speed = contracts.SpeedRapid
	}

	return &contracts.TrendRecord{
		Metric:    metric,
		Previous:  yesterday,
		Delta:     delta,
		Direction: direction,
		Speed:     speed,
	}
}

// meterRates picks the meter's calibrated quantiles, falling back to the
// compiled defaults.
func (c *Classifier) meterRates(id contracts.MeterID, metric contracts.TrendMetric) contracts.RateQuantiles {
	if mc := c.table.Meter(id); mc != nil {
		if rq, ok := mc.Rates[metric]; ok {
			return rq
		}
	}
	return defaultRates[metric]
}

func (c *Classifier) groupRates(id contracts.GroupID, metric contracts.TrendMetric) contracts.RateQuantiles {
	if c.table != nil && c.table.GroupRates != nil {
		if byMetric, ok := c.table.GroupRates[id]; ok {
			if rq, ok := byMetric[metric]; ok {
				return rq
			}
		}
	}
	return defaultRates[metric]
}
