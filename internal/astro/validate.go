package astro

import (
	"fmt"

	"github.com/ebursztein/arca-backend/internal/contracts"
)

// ValidateNatal checks that a natal chart carries everything scoring needs.
// Incomplete charts are a hard failure; no meaningful score can be derived
// from a partial position set.
func ValidateNatal(chart *contracts.NatalChart) error {
	if chart == nil {
		return fmt.Errorf("natal chart is nil: %w", contracts.ErrMissingChartData)
	}
	if chart.Ascendant == "" {
		return fmt.Errorf("natal ascendant missing: %w", contracts.ErrMissingChartData)
	}
	for _, b := range contracts.Bodies {
		p, ok := chart.Positions[b]
		if !ok {
			return fmt.Errorf("natal %s position missing: %w", b, contracts.ErrMissingChartData)
		}
		if err := validatePosition(p); err != nil {
			return fmt.Errorf("natal %s: %w", b, err)
		}
	}
	return nil
}

// ValidateTransit checks that a transit chart carries every scored body.
func ValidateTransit(chart *contracts.TransitChart) error {
	if chart == nil {
		return fmt.Errorf("transit chart is nil: %w", contracts.ErrMissingChartData)
	}
	if chart.Date.IsZero() {
		return fmt.Errorf("transit date missing: %w", contracts.ErrMissingChartData)
	}
	for _, b := range contracts.Bodies {
		p, ok := chart.Positions[b]
		if !ok {
			return fmt.Errorf("transit %s position missing: %w", b, contracts.ErrMissingChartData)
		}
		if err := validatePosition(p); err != nil {
			return fmt.Errorf("transit %s: %w", b, err)
		}
	}
	return nil
}

func validatePosition(p contracts.Position) error {
	if p.Longitude < 0 || p.Longitude >= 360 {
		return fmt.Errorf("longitude %.4f out of [0,360): %w", p.Longitude, contracts.ErrMissingChartData)
	}
	if p.House < 0 || p.House > 12 {
		return fmt.Errorf("house %d out of range: %w", p.House, contracts.ErrMissingChartData)
	}
	return nil
}
