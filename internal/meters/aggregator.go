package meters

import (
	"sort"
	"time"

	"github.com/ebursztein/arca-backend/internal/contracts"
)

// TopAspectLimit caps how many contributions a reading carries for display.
const TopAspectLimit = 5

// AggregatorConfig holds aggregation policy.
type AggregatorConfig struct {
	// GovernorDamp scales harmony, never intensity, while the meter's
	// governing planet is retrograde: expression is muddied, activity
	// is not.
	GovernorDamp float64 `yaml:"governor_damp"`
}

// DefaultAggregatorConfig returns the production aggregation policy.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{GovernorDamp: 0.5}
}

// Aggregator folds scored contributions into raw per-meter readings.
type Aggregator struct {
	registry *Registry
	config   AggregatorConfig
}

// NewAggregator creates an Aggregator over a registry.
func NewAggregator(registry *Registry, config AggregatorConfig) *Aggregator {
	return &Aggregator{registry: registry, config: config}
}

// Aggregate produces one raw reading per registered meter. A meter whose
// filter matches nothing yields an all-zero quiet reading, not an error.
// retrograde reports each body's motion in the day's transit chart.
func (g *Aggregator) Aggregate(date time.Time, contribs []contracts.AspectContribution, retrograde map[contracts.Body]bool) map[contracts.MeterID]*contracts.MeterReading {
	out := make(map[contracts.MeterID]*contracts.MeterReading, len(g.registry.defs))
	for i := range g.registry.defs {
		def := &g.registry.defs[i]
		out[def.ID] = g.aggregateOne(def, date, contribs, retrograde)
	}
	return out
}

func (g *Aggregator) aggregateOne(def *Definition, date time.Time, contribs []contracts.AspectContribution, retrograde map[contracts.Body]bool) *contracts.MeterReading {
	reading := &contracts.MeterReading{
		Meter:      def.ID,
		Group:      def.Group,
		Date:       date,
		TopAspects: make([]contracts.TopAspect, 0, TopAspectLimit),
	}

	var matched []contracts.AspectContribution
	for _, c := range contribs {
		if !def.Filter.Matches(&c.Aspect) {
			continue
		}
		reading.RawIntensity += c.Intensity()
		reading.RawValence += c.Valence()
		matched = append(matched, c)
	}

	if def.Governor != "" && retrograde[def.Governor] {
		reading.RawValence *= g.config.GovernorDamp
	}

	reading.TopAspects = append(reading.TopAspects, topAspects(matched)...)
	return reading
}

// topAspects ranks matched contributions by absolute valence and keeps the
// strongest few. Ties break on intensity, then on fixed body and type
// order, so identical inputs always rank identically.
func topAspects(matched []contracts.AspectContribution) []contracts.TopAspect {
	sorted := make([]contracts.AspectContribution, len(matched))
	copy(sorted, matched)
	sort.Slice(sorted, func(i, j int) bool {
		vi, vj := abs(sorted[i].Valence()), abs(sorted[j].Valence())
		if vi != vj {
			return vi > vj
		}
		ii, ij := sorted[i].Intensity(), sorted[j].Intensity()
		if ii != ij {
			return ii > ij
		}
		if a, b := bodyRank(sorted[i].Aspect.TransitBody), bodyRank(sorted[j].Aspect.TransitBody); a != b {
			return a < b
		}
		if a, b := bodyRank(sorted[i].Aspect.NatalBody), bodyRank(sorted[j].Aspect.NatalBody); a != b {
			return a < b
		}
		return aspectRank(sorted[i].Aspect.Type) < aspectRank(sorted[j].Aspect.Type)
	})

	n := len(sorted)
	if n > TopAspectLimit {
		n = TopAspectLimit
	}
	out := make([]contracts.TopAspect, 0, n)
	for _, c := range sorted[:n] {
		out = append(out, contracts.TopAspect{
			TransitBody: c.Aspect.TransitBody,
			NatalBody:   c.Aspect.NatalBody,
			Type:        c.Aspect.Type,
			Orb:         c.Aspect.Orb,
			Phase:       c.Aspect.Phase,
			Intensity:   c.Intensity(),
			Valence:     c.Valence(),
		})
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

var bodyRanks = func() map[contracts.Body]int {
	m := make(map[contracts.Body]int, len(contracts.Bodies))
	for i, b := range contracts.Bodies {
		m[b] = i
	}
	return m
}()

func bodyRank(b contracts.Body) int {
	return bodyRanks[b]
}

var aspectRanks = func() map[contracts.AspectType]int {
	m := make(map[contracts.AspectType]int, len(contracts.AspectTypes))
	for i, a := range contracts.AspectTypes {
		m[a] = i
	}
	return m
}()

func aspectRank(a contracts.AspectType) int {
	return aspectRanks[a]
}
