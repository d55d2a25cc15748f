package meters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebursztein/arca-backend/internal/contracts"
)

func contribution(tb, nb contracts.Body, at contracts.AspectType, w, p, q float64) contracts.AspectContribution {
	return contracts.AspectContribution{
		Aspect: contracts.TransitAspect{
			TransitBody: tb,
			NatalBody:   nb,
			Type:        at,
			NatalHouse:  5,
		},
		Weightage: w,
		Power:     p,
		Quality:   q,
	}
}

func testRegistry(t *testing.T, defs ...Definition) *Registry {
	t.Helper()
	// Pad with builtin-style filler so group size constraints hold.
	all := append([]Definition{}, defs...)
	fillers := []Definition{
		{ID: "f1", Group: GroupMind, Tier: 2, Weight: 1,
			Filter: Filter{NatalBodies: []contracts.Body{contracts.Neptune}, Logic: LogicAnd}},
		{ID: "f2", Group: GroupMind, Tier: 2, Weight: 1,
			Filter: Filter{NatalBodies: []contracts.Body{contracts.Uranus}, Logic: LogicAnd}},
	}
	for _, f := range fillers {
		if len(all) >= 3 {
			break
		}
		all = append(all, f)
	}
	for _, gid := range GroupIDs[1:] {
		for i := 0; i < 3; i++ {
			all = append(all, Definition{
				ID: contracts.MeterID(string(gid) + "-pad" + string(rune('a'+i))), Group: gid, Tier: 2, Weight: 1,
				Filter: Filter{NatalHouses: []int{12}, Logic: LogicAnd},
			})
		}
	}
	reg, err := NewRegistry(all)
	require.NoError(t, err)
	return reg
}

func TestAggregateSumsMatchingContributions(t *testing.T) {
	def := Definition{
		ID: "m", Group: GroupMind, Tier: 1, Weight: 1,
		Filter: Filter{
			NatalBodies: []contracts.Body{contracts.Sun},
			Logic:       LogicAnd,
		},
	}
	reg := testRegistry(t, def)
	agg := NewAggregator(reg, DefaultAggregatorConfig())
	date := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	contribs := []contracts.AspectContribution{
		contribution(contracts.Saturn, contracts.Sun, contracts.Square, 10, 1.0, -0.8), // matches
		contribution(contracts.Jupiter, contracts.Sun, contracts.Trine, 8, 0.5, 0.9),  // matches
		contribution(contracts.Venus, contracts.Moon, contracts.Sextile, 6, 0.4, 0.7), // filtered out
	}

	readings := agg.Aggregate(date, contribs, nil)
	r := readings["m"]
	require.NotNil(t, r)

	// 10*1.0 + 8*0.5 = 14; 10*1.0*-0.8 + 8*0.5*0.9 = -4.4
	assert.InDelta(t, 14.0, r.RawIntensity, 1e-9)
	assert.InDelta(t, -4.4, r.RawValence, 1e-9)
	assert.Len(t, r.TopAspects, 2)
	// Strongest by |valence| first: saturn-sun at -8 beats jupiter-sun at 3.6.
	assert.Equal(t, contracts.Saturn, r.TopAspects[0].TransitBody)
}

func TestAggregateQuietMeter(t *testing.T) {
	def := Definition{
		ID: "quiet", Group: GroupMind, Tier: 1, Weight: 1,
		Filter: Filter{NatalBodies: []contracts.Body{contracts.Pluto}, Logic: LogicAnd},
	}
	reg := testRegistry(t, def)
	agg := NewAggregator(reg, DefaultAggregatorConfig())

	contribs := []contracts.AspectContribution{
		contribution(contracts.Saturn, contracts.Sun, contracts.Square, 10, 1.0, -0.8),
	}
	readings := agg.Aggregate(time.Now(), contribs, nil)
	r := readings["quiet"]
	require.NotNil(t, r, "quiet meter still yields a reading")
	assert.Zero(t, r.RawIntensity)
	assert.Zero(t, r.RawValence)
	assert.Empty(t, r.TopAspects)
}

func TestGovernorRetrogradeDampsHarmonyOnly(t *testing.T) {
	def := Definition{
		ID: "gov", Group: GroupMind, Tier: 1, Governor: contracts.Mercury, Weight: 1,
		Filter: Filter{NatalBodies: []contracts.Body{contracts.Sun}, Logic: LogicAnd},
	}
	reg := testRegistry(t, def)
	agg := NewAggregator(reg, DefaultAggregatorConfig())
	contribs := []contracts.AspectContribution{
		contribution(contracts.Saturn, contracts.Sun, contracts.Square, 10, 1.0, -0.8),
	}

	direct := agg.Aggregate(time.Now(), contribs, map[contracts.Body]bool{contracts.Mercury: false})
	retro := agg.Aggregate(time.Now(), contribs, map[contracts.Body]bool{contracts.Mercury: true})

	assert.InDelta(t, direct["gov"].RawIntensity, retro["gov"].RawIntensity, 1e-9,
		"intensity must not be dampened")
	assert.InDelta(t, direct["gov"].RawValence*0.5, retro["gov"].RawValence, 1e-9,
		"harmony halves under governor retrograde")
}

func TestTopAspectsCappedAndSorted(t *testing.T) {
	def := Definition{
		ID: "busy", Group: GroupMind, Tier: 1, Weight: 1,
		Filter: Filter{NatalBodies: []contracts.Body{contracts.Sun}, Logic: LogicAnd},
	}
	reg := testRegistry(t, def)
	agg := NewAggregator(reg, DefaultAggregatorConfig())

	var contribs []contracts.AspectContribution
	weights := []float64{3, 9, 1, 7, 5, 8, 2}
	bodies := []contracts.Body{contracts.Moon, contracts.Mercury, contracts.Venus, contracts.Mars, contracts.Jupiter, contracts.Saturn, contracts.Uranus}
	for i, w := range weights {
		contribs = append(contribs, contribution(bodies[i], contracts.Sun, contracts.Trine, w, 1.0, 0.9))
	}

	r := agg.Aggregate(time.Now(), contribs, nil)["busy"]
	require.Len(t, r.TopAspects, TopAspectLimit)
	for i := 1; i < len(r.TopAspects); i++ {
		assert.GreaterOrEqual(t,
			absFloat(r.TopAspects[i-1].Valence), absFloat(r.TopAspects[i].Valence),
			"top aspects must be sorted by |valence| descending")
	}
	assert.Equal(t, contracts.Mercury, r.TopAspects[0].TransitBody)
}

func TestAggregateDeterministic(t *testing.T) {
	reg := Default()
	agg := NewAggregator(reg, DefaultAggregatorConfig())
	contribs := []contracts.AspectContribution{
		contribution(contracts.Saturn, contracts.Sun, contracts.Square, 10, 1.0, -0.8),
		contribution(contracts.Jupiter, contracts.Moon, contracts.Trine, 8, 0.5, 0.9),
		contribution(contracts.Venus, contracts.Venus, contracts.Sextile, 6, 0.4, 0.7),
	}
	date := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	first := agg.Aggregate(date, contribs, nil)
	second := agg.Aggregate(date, contribs, nil)
	require.Equal(t, len(first), len(second))
	for id, r := range first {
		assert.Equal(t, r, second[id], "meter %s", id)
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
