package astro

import (
	"math"

	"github.com/ebursztein/arca-backend/internal/contracts"
)

// FinderConfig holds orb policy for aspect detection.
type FinderConfig struct {
	// BaseOrbs is the allowed deviation per aspect type, in degrees.
	BaseOrbs map[contracts.AspectType]float64 `yaml:"base_orbs"`
	// LuminaryBonus widens the orb when the Sun or Moon is involved.
	LuminaryBonus float64 `yaml:"luminary_bonus"`
}

// DefaultFinderConfig returns the standard orb policy.
func DefaultFinderConfig() FinderConfig {
	return FinderConfig{
		BaseOrbs: map[contracts.AspectType]float64{
			contracts.Conjunction: 8.0,
			contracts.Opposition:  8.0,
			contracts.Trine:       7.0,
			contracts.Square:      7.0,
			contracts.Sextile:     5.0,
		},
		LuminaryBonus: 1.5,
	}
}

// Finder derives the transit-to-natal aspect list from a chart pair.
type Finder struct {
	config FinderConfig
}

// NewFinder creates a Finder with the given orb policy.
func NewFinder(config FinderConfig) *Finder {
	return &Finder{config: config}
}

// Find returns every natal x transit x aspect-type contact within orb.
// Iteration follows the fixed body order so output order is deterministic
// for identical inputs.
func (f *Finder) Find(natal *contracts.NatalChart, transit *contracts.TransitChart) []contracts.TransitAspect {
	var aspects []contracts.TransitAspect
	for _, tb := range contracts.Bodies {
		tp, ok := transit.Positions[tb]
		if !ok {
			continue
		}
		for _, nb := range contracts.Bodies {
			np, ok := natal.Positions[nb]
			if !ok {
				continue
			}
			if a, found := f.match(tp, np, natal); found {
				aspects = append(aspects, a)
			}
		}
	}
	return aspects
}

// match tests one transit/natal pair against all aspect types and keeps
// the closest contact inside orb, if any.
func (f *Finder) match(tp, np contracts.Position, natal *contracts.NatalChart) (contracts.TransitAspect, bool) {
	sep := Separation(tp.Longitude, np.Longitude)

	best := contracts.TransitAspect{}
	bestDev := math.MaxFloat64
	found := false
	for _, at := range contracts.AspectTypes {
		dev := math.Abs(sep - at.Angle())
		maxOrb := f.orbFor(at, tp.Body, np.Body)
		if dev > maxOrb || dev >= bestDev {
			continue
		}
		bestDev = dev
		found = true
		best = contracts.TransitAspect{
			TransitBody:       tp.Body,
			NatalBody:         np.Body,
			NatalSign:         natalSign(np),
			NatalHouse:        natalHouse(np, natal),
			Type:              at,
			Orb:               dev,
			MaxOrb:            maxOrb,
			Phase:             phaseOf(tp, np, at),
			TransitRetrograde: tp.Retrograde,
			DaysToStation:     tp.DaysToStation,
		}
	}
	return best, found
}

func (f *Finder) orbFor(at contracts.AspectType, a, b contracts.Body) float64 {
	orb := f.config.BaseOrbs[at]
	if isLuminary(a) || isLuminary(b) {
		orb += f.config.LuminaryBonus
	}
	return orb
}

func isLuminary(b contracts.Body) bool {
	return b == contracts.Sun || b == contracts.Moon
}

// Separation returns the angular distance between two longitudes, [0, 180].
func Separation(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// phaseOf classifies the contact as applying or separating by stepping the
// transit body forward a fraction of a day and checking whether the
// deviation from exact shrinks. The natal point is fixed.
func phaseOf(tp, np contracts.Position, at contracts.AspectType) contracts.Phase {
	const step = 0.1 // days
	now := math.Abs(Separation(tp.Longitude, np.Longitude) - at.Angle())
	next := math.Abs(Separation(tp.Longitude+tp.Speed*step, np.Longitude) - at.Angle())
	if next < now {
		return contracts.Applying
	}
	return contracts.Separating
}

func natalSign(p contracts.Position) contracts.Sign {
	if p.Sign != "" {
		return p.Sign
	}
	return SignFor(p.Longitude)
}

func natalHouse(p contracts.Position, natal *contracts.NatalChart) int {
	if p.House > 0 {
		return p.House
	}
	return HouseFor(p.Longitude, natal.HouseCusps)
}
