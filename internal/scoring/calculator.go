package scoring

import (
	"fmt"

	"github.com/ebursztein/arca-backend/internal/astro"
	"github.com/ebursztein/arca-backend/internal/contracts"
)

// Calculator turns one transit aspect into one scored contribution.
// Pure and deterministic: the same aspect always yields the same output.
// Built once per natal chart because the chart ruler feeds weightage.
type Calculator struct {
	weights Weights
	ruler   contracts.Body
}

// NewCalculator creates a Calculator for a chart whose ascendant ruler
// is ruler.
func NewCalculator(weights Weights, ruler contracts.Body) *Calculator {
	return &Calculator{weights: weights, ruler: ruler}
}

// Score computes the weighted, signed contribution of one aspect.
func (c *Calculator) Score(a contracts.TransitAspect) contracts.AspectContribution {
	return contracts.AspectContribution{
		Aspect:    a,
		Weightage: c.weightage(a),
		Power:     c.power(a),
		Quality:   c.quality(a),
		Label:     label(a),
	}
}

// ScoreAll scores every aspect in input order.
func (c *Calculator) ScoreAll(aspects []contracts.TransitAspect) []contracts.AspectContribution {
	out := make([]contracts.AspectContribution, 0, len(aspects))
	for _, a := range aspects {
		out = append(out, c.Score(a))
	}
	return out
}

// weightage measures how structurally important the natal point is:
// planet tier, essential dignity, chart rulership, then house strength.
func (c *Calculator) weightage(a contracts.TransitAspect) float64 {
	w := c.weights.PlanetTier[a.NatalBody]
	w += c.weights.Dignity[astro.DignityOf(a.NatalBody, a.NatalSign)]
	if a.NatalBody == c.ruler {
		w += c.weights.ChartRulerBonus
	}
	w *= c.weights.HouseFactor[astro.ClassOfHouse(a.NatalHouse)]
	w *= c.weights.Sensitivity
	if w < 0 {
		w = 0
	}
	return w
}

// power measures how strongly the contact registers right now: aspect
// type, exactness, phase, station proximity, and how long the transiting
// body's influence persists.
func (c *Calculator) power(a contracts.TransitAspect) float64 {
	p := c.weights.AspectStrength[a.Type]
	p *= a.Closeness()
	if a.Phase == contracts.Applying {
		p *= c.weights.ApplyingBoost
	} else {
		p *= c.weights.SeparatingCut
	}
	if c.nearStation(a) {
		p *= c.weights.StationBoost
	}
	p *= c.weights.Persistence[a.TransitBody]
	return p
}

func (c *Calculator) nearStation(a contracts.TransitAspect) bool {
	if a.DaysToStation == nil {
		return false
	}
	d := *a.DaysToStation
	if d < 0 {
		d = -d
	}
	return d <= c.weights.StationWindowDays
}

// quality gives the contact its benefic/malefic sign. Conjunctions take
// their character entirely from the planet pair; other aspects start from
// the aspect-type base and bend toward the pair's combined nature.
func (c *Calculator) quality(a contracts.TransitAspect) float64 {
	pair := (c.weights.PlanetNature[a.TransitBody] + c.weights.PlanetNature[a.NatalBody]) / 2
	var q float64
	if a.Type == contracts.Conjunction {
		q = pair
	} else {
		q = c.weights.AspectQuality[a.Type] + c.weights.TemperamentShift*pair
	}
	return clamp(q, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func label(a contracts.TransitAspect) string {
	return fmt.Sprintf("transit %s %s natal %s (%s)", a.TransitBody, a.Type, a.NatalBody, a.Phase)
}
