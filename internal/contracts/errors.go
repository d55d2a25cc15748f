package contracts

import "errors"

var (
	// ErrMissingChartData means a chart arrived without the positions the
	// scoring pipeline needs. Scoring refuses to guess around it.
	ErrMissingChartData = errors.New("chart data incomplete")

	// ErrNoCalibration means no calibration artifact could be loaded; the
	// engine falls back to theoretical-range normalization.
	ErrNoCalibration = errors.New("no calibration artifact")

	// ErrNoPriorDay means the previous day's readings were unavailable, so
	// trend classification was skipped.
	ErrNoPriorDay = errors.New("no prior-day readings")

	// ErrUnknownMeter means a request referenced a meter id outside the
	// registered taxonomy.
	ErrUnknownMeter = errors.New("unknown meter")
)
