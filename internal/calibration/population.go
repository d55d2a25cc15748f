package calibration

import (
	"math/rand"
	"time"

	"github.com/ebursztein/arca-backend/internal/contracts"
)

// PopulationConfig bounds the synthetic birth population.
type PopulationConfig struct {
	Size         int   `yaml:"size"`
	Seed         int64 `yaml:"seed"`
	BirthYearMin int   `yaml:"birth_year_min"`
	BirthYearMax int   `yaml:"birth_year_max"`
	// Latitude is clamped away from the poles: house systems degrade
	// above the polar circles and real birth places cluster well inside.
	LatitudeMin float64 `yaml:"latitude_min"`
	LatitudeMax float64 `yaml:"latitude_max"`
}

// DefaultPopulationConfig returns the standard calibration population.
func DefaultPopulationConfig() PopulationConfig {
	return PopulationConfig{
		Size:         1000,
		Seed:         0, // 0 means time-seeded
		BirthYearMin: 1940,
		BirthYearMax: 2005,
		LatitudeMin:  -60,
		LatitudeMax:  60,
	}
}

// GeneratePopulation produces Size synthetic births spread uniformly over
// the configured year and latitude ranges. A non-zero seed makes the
// population reproducible.
func GeneratePopulation(cfg PopulationConfig) []contracts.BirthData {
	years := cfg.BirthYearMax - cfg.BirthYearMin + 1
	if cfg.Size <= 0 || years <= 0 || cfg.LatitudeMax < cfg.LatitudeMin {
		return nil
	}

	var rng *rand.Rand
	if cfg.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Seed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	births := make([]contracts.BirthData, cfg.Size)

	for i := range births {
		year := cfg.BirthYearMin + rng.Intn(years)
		// Day 0-364 keeps February simple across leap years
		dayOfYear := rng.Intn(365)
		minuteOfDay := rng.Intn(24 * 60)

		dt := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).
			AddDate(0, 0, dayOfYear).
			Add(time.Duration(minuteOfDay) * time.Minute)

		births[i] = contracts.BirthData{
			Datetime:  dt,
			Latitude:  cfg.LatitudeMin + rng.Float64()*(cfg.LatitudeMax-cfg.LatitudeMin),
			Longitude: -180 + rng.Float64()*360,
		}
	}

	return births
}
