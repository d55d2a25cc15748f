package scoring

import (
	"fmt"

	"github.com/ebursztein/arca-backend/internal/astro"
	"github.com/ebursztein/arca-backend/internal/contracts"
)

// Weights holds every tunable constant of the contribution model.
// All values here are recalibratable policy, tuned against the reference
// population; changing any of them requires a calibration rerun.
type Weights struct {
	// PlanetTier is the base structural weight per natal body.
	PlanetTier map[contracts.Body]float64 `yaml:"planet_tier"`
	// Dignity adjusts the base weight by the natal body's sign placement.
	Dignity map[astro.Dignity]float64 `yaml:"dignity"`
	// ChartRulerBonus is added when the natal body rules the ascendant.
	ChartRulerBonus float64 `yaml:"chart_ruler_bonus"`
	// HouseFactor scales the weight by the natal house class.
	HouseFactor map[astro.HouseClass]float64 `yaml:"house_factor"`
	// Sensitivity is a global scalar over all weightages.
	Sensitivity float64 `yaml:"sensitivity"`

	// AspectStrength is the base power per aspect type.
	AspectStrength map[contracts.AspectType]float64 `yaml:"aspect_strength"`
	// ApplyingBoost and SeparatingCut modify power by contact phase.
	ApplyingBoost float64 `yaml:"applying_boost"`
	SeparatingCut float64 `yaml:"separating_cut"`
	// StationBoost applies within StationWindowDays of a station, where
	// the transiting body lingers near exactness.
	StationBoost      float64 `yaml:"station_boost"`
	StationWindowDays float64 `yaml:"station_window_days"`
	// Persistence reflects how long each transiting body's influence
	// lasts, independent of sign and house.
	Persistence map[contracts.Body]float64 `yaml:"persistence"`

	// AspectQuality is the signed base quality per aspect type.
	// Conjunctions are absent: their quality comes from the planet pair.
	AspectQuality map[contracts.AspectType]float64 `yaml:"aspect_quality"`
	// PlanetNature is each body's benefic/malefic lean in [-1, 1].
	PlanetNature map[contracts.Body]float64 `yaml:"planet_nature"`
	// TemperamentShift scales how far the pair nature bends the base
	// quality of non-conjunction aspects.
	TemperamentShift float64 `yaml:"temperament_shift"`
}

// DefaultWeights returns the production constant set.
func DefaultWeights() Weights {
	return Weights{
		PlanetTier: map[contracts.Body]float64{
			contracts.Sun:     10,
			contracts.Moon:    10,
			contracts.Mercury: 8,
			contracts.Venus:   8,
			contracts.Mars:    8,
			contracts.Jupiter: 6,
			contracts.Saturn:  6,
			contracts.Uranus:  4,
			contracts.Neptune: 4,
			contracts.Pluto:   4,
		},
		Dignity: map[astro.Dignity]float64{
			astro.DignityDomicile:   2.0,
			astro.DignityExaltation: 1.5,
			astro.DignityDetriment:  -1.5,
			astro.DignityFall:       -2.0,
			astro.DignityPeregrine:  0,
		},
		ChartRulerBonus: 1.5,
		HouseFactor: map[astro.HouseClass]float64{
			astro.HouseAngular:   1.2,
			astro.HouseSuccedent: 1.0,
			astro.HouseCadent:    0.8,
		},
		Sensitivity: 1.0,

		AspectStrength: map[contracts.AspectType]float64{
			contracts.Conjunction: 1.0,
			contracts.Opposition:  0.9,
			contracts.Square:      0.85,
			contracts.Trine:       0.7,
			contracts.Sextile:     0.55,
		},
		ApplyingBoost:     1.15,
		SeparatingCut:     0.85,
		StationBoost:      1.25,
		StationWindowDays: 3.0,
		Persistence: map[contracts.Body]float64{
			contracts.Sun:     0.9,
			contracts.Moon:    0.7,
			contracts.Mercury: 0.8,
			contracts.Venus:   0.85,
			contracts.Mars:    1.0,
			contracts.Jupiter: 1.1,
			contracts.Saturn:  1.15,
			contracts.Uranus:  1.2,
			contracts.Neptune: 1.25,
			contracts.Pluto:   1.3,
		},

		AspectQuality: map[contracts.AspectType]float64{
			contracts.Trine:      0.9,
			contracts.Sextile:    0.75,
			contracts.Square:     -0.8,
			contracts.Opposition: -0.7,
		},
		PlanetNature: map[contracts.Body]float64{
			contracts.Sun:     0.3,
			contracts.Moon:    0.3,
			contracts.Mercury: 0.0,
			contracts.Venus:   0.8,
			contracts.Mars:    -0.6,
			contracts.Jupiter: 0.9,
			contracts.Saturn:  -0.7,
			contracts.Uranus:  -0.3,
			contracts.Neptune: -0.1,
			contracts.Pluto:   -0.5,
		},
		TemperamentShift: 0.25,
	}
}

// Validate checks the weight tables are complete and sane.
func (w *Weights) Validate() error {
	for _, b := range contracts.Bodies {
		if _, ok := w.PlanetTier[b]; !ok {
			return fmt.Errorf("weights: planet tier missing for %s", b)
		}
		if _, ok := w.Persistence[b]; !ok {
			return fmt.Errorf("weights: persistence missing for %s", b)
		}
		if _, ok := w.PlanetNature[b]; !ok {
			return fmt.Errorf("weights: planet nature missing for %s", b)
		}
		if n := w.PlanetNature[b]; n < -1 || n > 1 {
			return fmt.Errorf("weights: planet nature for %s out of [-1,1]: %.2f", b, n)
		}
	}
	for _, at := range contracts.AspectTypes {
		if _, ok := w.AspectStrength[at]; !ok {
			return fmt.Errorf("weights: aspect strength missing for %s", at)
		}
		if at == contracts.Conjunction {
			continue
		}
		if _, ok := w.AspectQuality[at]; !ok {
			return fmt.Errorf("weights: aspect quality missing for %s", at)
		}
	}
	if w.Sensitivity <= 0 {
		return fmt.Errorf("weights: sensitivity must be positive")
	}
	if w.ApplyingBoost < 1 || w.SeparatingCut > 1 || w.SeparatingCut <= 0 {
		return fmt.Errorf("weights: phase modifiers out of range")
	}
	if w.StationBoost < 1 || w.StationWindowDays < 0 {
		return fmt.Errorf("weights: station modifiers out of range")
	}
	return nil
}

// MaxWeightage returns the largest weightage the tables can produce,
// used by the uncalibrated normalization fallback.
func (w *Weights) MaxWeightage() float64 {
	tier := 0.0
	for _, v := range w.PlanetTier {
		if v > tier {
			tier = v
		}
	}
	dig := 0.0
	for _, v := range w.Dignity {
		if v > dig {
			dig = v
		}
	}
	house := 0.0
	for _, v := range w.HouseFactor {
		if v > house {
			house = v
		}
	}
	return (tier + dig + w.ChartRulerBonus) * house * w.Sensitivity
}

// MaxPower returns the largest transit power the tables can produce.
func (w *Weights) MaxPower() float64 {
	strength := 0.0
	for _, v := range w.AspectStrength {
		if v > strength {
			strength = v
		}
	}
	persist := 0.0
	for _, v := range w.Persistence {
		if v > persist {
			persist = v
		}
	}
	return strength * w.ApplyingBoost * w.StationBoost * persist
}
