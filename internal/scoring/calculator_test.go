package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebursztein/arca-backend/internal/contracts"
)

func aspect(tb, nb contracts.Body, at contracts.AspectType, orb float64, phase contracts.Phase) contracts.TransitAspect {
	return contracts.TransitAspect{
		TransitBody: tb,
		NatalBody:   nb,
		NatalSign:   contracts.Gemini,
		NatalHouse:  5,
		Type:        at,
		Orb:         orb,
		MaxOrb:      8.0,
		Phase:       phase,
	}
}

func TestDefaultWeightsValidate(t *testing.T) {
	w := DefaultWeights()
	require.NoError(t, w.Validate())
}

func TestContributionNeverNegativeIntensity(t *testing.T) {
	// Sweep the full table space: every pairing, type, phase, and a band
	// of orbs must produce W >= 0, P >= 0, Q in [-1, 1].
	calc := NewCalculator(DefaultWeights(), contracts.Mars)
	for _, tb := range contracts.Bodies {
		for _, nb := range contracts.Bodies {
			for _, at := range contracts.AspectTypes {
				for _, phase := range []contracts.Phase{contracts.Applying, contracts.Separating} {
					for _, orb := range []float64{0, 3.7, 8.0} {
						c := calc.Score(aspect(tb, nb, at, orb, phase))
						assert.GreaterOrEqual(t, c.Weightage, 0.0)
						assert.GreaterOrEqual(t, c.Power, 0.0)
						assert.GreaterOrEqual(t, c.Intensity(), 0.0)
						assert.GreaterOrEqual(t, c.Quality, -1.0)
						assert.LessOrEqual(t, c.Quality, 1.0)
					}
				}
			}
		}
	}
}

func TestQualitySignMatchesAspectCharacter(t *testing.T) {
	// The temperament shift is small enough that it may never flip the
	// base sign of a non-conjunction aspect, for any planet pair.
	calc := NewCalculator(DefaultWeights(), contracts.Mars)
	for _, tb := range contracts.Bodies {
		for _, nb := range contracts.Bodies {
			for _, at := range []contracts.AspectType{contracts.Trine, contracts.Sextile} {
				c := calc.Score(aspect(tb, nb, at, 1.0, contracts.Applying))
				assert.Positive(t, c.Quality, "%s %s natal %s", tb, at, nb)
			}
			for _, at := range []contracts.AspectType{contracts.Square, contracts.Opposition} {
				c := calc.Score(aspect(tb, nb, at, 1.0, contracts.Applying))
				assert.Negative(t, c.Quality, "%s %s natal %s", tb, at, nb)
			}
		}
	}
}

func TestConjunctionQualityFollowsPlanetPair(t *testing.T) {
	calc := NewCalculator(DefaultWeights(), contracts.Mars)

	benefic := calc.Score(aspect(contracts.Jupiter, contracts.Venus, contracts.Conjunction, 1.0, contracts.Applying))
	assert.Positive(t, benefic.Quality, "jupiter-venus conjunction should be benefic")

	malefic := calc.Score(aspect(contracts.Saturn, contracts.Mars, contracts.Conjunction, 1.0, contracts.Applying))
	assert.Negative(t, malefic.Quality, "saturn-mars conjunction should be malefic")

	neutral := calc.Score(aspect(contracts.Mercury, contracts.Mercury, contracts.Conjunction, 1.0, contracts.Applying))
	assert.InDelta(t, 0.0, neutral.Quality, 1e-9, "mercury-mercury conjunction is neutral")
}

func TestSaturnSquareDomicileSunScenario(t *testing.T) {
	// Natal Sun domiciled in Leo, angular tenth house, chart ruler (Leo
	// rising). Transit Saturn square, exact and applying: structurally
	// heavy, momentarily strong, clearly malefic.
	a := contracts.TransitAspect{
		TransitBody: contracts.Saturn,
		NatalBody:   contracts.Sun,
		NatalSign:   contracts.Leo,
		NatalHouse:  10,
		Type:        contracts.Square,
		Orb:         0.0,
		MaxOrb:      8.5,
		Phase:       contracts.Applying,
	}
	calc := NewCalculator(DefaultWeights(), contracts.Sun)
	c := calc.Score(a)

	// (tier 10 + domicile 2 + ruler 1.5) * angular 1.2 = 16.2
	assert.InDelta(t, 16.2, c.Weightage, 1e-9)
	// square 0.85 * exact 1.0 * applying 1.15 * saturn persistence 1.15
	assert.InDelta(t, 1.124125, c.Power, 1e-6)
	assert.Less(t, c.Quality, -0.7)
	assert.Less(t, c.Valence(), -10.0, "valence should be strongly negative")
	assert.Greater(t, c.Intensity(), 15.0, "intensity should be well above a quiet baseline")
}

func TestApplyingOutpowersSeparating(t *testing.T) {
	calc := NewCalculator(DefaultWeights(), contracts.Mars)
	applying := calc.Score(aspect(contracts.Jupiter, contracts.Sun, contracts.Trine, 2.0, contracts.Applying))
	separating := calc.Score(aspect(contracts.Jupiter, contracts.Sun, contracts.Trine, 2.0, contracts.Separating))
	assert.Greater(t, applying.Power, separating.Power)
}

func TestStationBoost(t *testing.T) {
	calc := NewCalculator(DefaultWeights(), contracts.Mars)
	base := aspect(contracts.Mercury, contracts.Moon, contracts.Sextile, 1.0, contracts.Applying)

	plain := calc.Score(base)

	near := base
	days := 2.0
	near.DaysToStation = &days
	boosted := calc.Score(near)
	assert.InDelta(t, plain.Power*DefaultWeights().StationBoost, boosted.Power, 1e-9)

	far := base
	farDays := 10.0
	far.DaysToStation = &farDays
	unboosted := calc.Score(far)
	assert.InDelta(t, plain.Power, unboosted.Power, 1e-9)
}

func TestPowerDecaysWithOrb(t *testing.T) {
	calc := NewCalculator(DefaultWeights(), contracts.Mars)
	prev := -1.0
	for _, orb := range []float64{8.0, 6.0, 4.0, 2.0, 0.0} {
		c := calc.Score(aspect(contracts.Mars, contracts.Venus, contracts.Square, orb, contracts.Applying))
		assert.Greater(t, c.Power, prev, "power must rise as orb tightens")
		prev = c.Power
	}
}

func TestScoreDeterministic(t *testing.T) {
	calc := NewCalculator(DefaultWeights(), contracts.Venus)
	a := aspect(contracts.Pluto, contracts.Moon, contracts.Opposition, 3.3, contracts.Separating)
	assert.Equal(t, calc.Score(a), calc.Score(a))
}

func TestTableMaximaBoundScores(t *testing.T) {
	w := DefaultWeights()
	calc := NewCalculator(w, contracts.Sun)
	maxW, maxP := w.MaxWeightage(), w.MaxPower()
	days := 1.0
	for _, tb := range contracts.Bodies {
		for _, nb := range contracts.Bodies {
			for _, at := range contracts.AspectTypes {
				a := aspect(tb, nb, at, 0, contracts.Applying)
				a.NatalSign = contracts.Leo
				a.NatalHouse = 10
				a.DaysToStation = &days
				c := calc.Score(a)
				assert.LessOrEqual(t, c.Weightage, maxW+1e-9)
				assert.LessOrEqual(t, c.Power, maxP+1e-9)
			}
		}
	}
}

func TestLabel(t *testing.T) {
	calc := NewCalculator(DefaultWeights(), contracts.Mars)
	c := calc.Score(aspect(contracts.Saturn, contracts.Sun, contracts.Square, 1.0, contracts.Applying))
	assert.Equal(t, "transit saturn square natal sun (applying)", c.Label)
}
