package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebursztein/arca-backend/internal/astro"
	"github.com/ebursztein/arca-backend/internal/contracts"
	"github.com/ebursztein/arca-backend/internal/meters"
	"github.com/ebursztein/arca-backend/internal/normalize"
	"github.com/ebursztein/arca-backend/internal/observability"
	"github.com/ebursztein/arca-backend/internal/scoring"
	"github.com/ebursztein/arca-backend/internal/trend"
	"github.com/ebursztein/arca-backend/pkg/logger"
)

// fakeSource serves canned charts keyed by date.
type fakeSource struct {
	natal      *contracts.NatalChart
	natalErr   error
	transits   map[string]*contracts.TransitChart
	transitErr map[string]error
}

func (f *fakeSource) Natal(ctx context.Context, birth contracts.BirthData) (*contracts.NatalChart, error) {
	if f.natalErr != nil {
		return nil, f.natalErr
	}
	return f.natal, nil
}

func (f *fakeSource) Transits(ctx context.Context, date time.Time) (*contracts.TransitChart, error) {
	key := date.UTC().Format("2006-01-02")
	if err, ok := f.transitErr[key]; ok {
		return nil, err
	}
	chart, ok := f.transits[key]
	if !ok {
		return nil, fmt.Errorf("no transit chart for %s", key)
	}
	return chart, nil
}

func testNatal() *contracts.NatalChart {
	positions := map[contracts.Body]contracts.Position{
		contracts.Sun:     {Body: contracts.Sun, Longitude: 130, Sign: contracts.Leo, House: 10},
		contracts.Moon:    {Body: contracts.Moon, Longitude: 95, Sign: contracts.Cancer, House: 7},
		contracts.Mercury: {Body: contracts.Mercury, Longitude: 155, Sign: contracts.Virgo, House: 11},
		contracts.Venus:   {Body: contracts.Venus, Longitude: 110, Sign: contracts.Cancer, House: 8},
		contracts.Mars:    {Body: contracts.Mars, Longitude: 15, Sign: contracts.Aries, House: 2},
		contracts.Jupiter: {Body: contracts.Jupiter, Longitude: 62, Sign: contracts.Gemini, House: 5},
		contracts.Saturn:  {Body: contracts.Saturn, Longitude: 278, Sign: contracts.Capricorn, House: 6},
		contracts.Uranus:  {Body: contracts.Uranus, Longitude: 245, Sign: contracts.Sagittarius, House: 3},
		contracts.Neptune: {Body: contracts.Neptune, Longitude: 281, Sign: contracts.Capricorn, House: 4},
		contracts.Pluto:   {Body: contracts.Pluto, Longitude: 220, Sign: contracts.Scorpio, House: 1},
	}

	cusps := [12]float64{300, 330, 0, 30, 60, 90, 120, 150, 180, 210, 240, 270}

	return &contracts.NatalChart{
		Birth: contracts.BirthData{
			Datetime:  time.Date(1988, 8, 2, 6, 15, 0, 0, time.UTC),
			Latitude:  37.57,
			Longitude: 126.98,
		},
		Positions:  positions,
		HouseCusps: cusps,
		Ascendant:  contracts.Leo,
	}
}

// testTransits squares natal Sun (130) with transit Saturn and spreads the
// rest. Shifting by delta moves every body slightly for day-over-day change.
func testTransits(date time.Time, delta float64) *contracts.TransitChart {
	base := map[contracts.Body]float64{
		contracts.Sun:     353,
		contracts.Moon:    47,
		contracts.Mercury: 341,
		contracts.Venus:   28,
		contracts.Mars:    302,
		contracts.Jupiter: 75,
		contracts.Saturn:  219.6,
		contracts.Uranus:  54,
		contracts.Neptune: 355.8,
		contracts.Pluto:   309.9,
	}

	positions := make(map[contracts.Body]contracts.Position, len(base))
	for body, lon := range base {
		l := lon + delta
		for l >= 360 {
			l -= 360
		}
		positions[body] = contracts.Position{
			Body:      body,
			Longitude: l,
			Speed:     0.5,
			Sign:      astro.SignFor(l),
		}
	}

	return &contracts.TransitChart{Date: date, Positions: positions}
}

var testDate = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

func workingSource() *fakeSource {
	return &fakeSource{
		natal: testNatal(),
		transits: map[string]*contracts.TransitChart{
			"2025-03-14": testTransits(testDate, 0.4),
			"2025-03-13": testTransits(testDate.AddDate(0, 0, -1), 0),
		},
		transitErr: map[string]error{},
	}
}

func newTestEngine(t *testing.T, source contracts.ChartSource) (*Engine, clockwork.Clock) {
	t.Helper()

	registry := meters.Default()
	weights := scoring.DefaultWeights()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))

	eng := New(
		source,
		registry,
		astro.NewFinder(astro.DefaultFinderConfig()),
		weights,
		meters.NewAggregator(registry, meters.DefaultAggregatorConfig()),
		normalize.New(nil, weights, normalize.DefaultConfig()),
		normalize.NewCombiner(normalize.DefaultCombinerConfig(), normalize.DefaultAsymmetry()),
		trend.New(nil, trend.DefaultConfig()),
		nil,
		observability.NewForTesting(),
		clock,
		logger.NewNop(),
	)
	return eng, clock
}

func TestComputeFullReadings(t *testing.T) {
	eng, clock := newTestEngine(t, workingSource())

	readings, err := eng.Compute(context.Background(), Request{
		Birth: testNatal().Birth,
		Date:  testDate,
	})
	require.NoError(t, err)
	require.NotNil(t, readings)

	assert.Len(t, readings.Meters, 12)
	assert.Len(t, readings.Groups, 4)
	assert.Equal(t, "uncalibrated", readings.CalibrationVersion)
	assert.Equal(t, clock.Now().UTC(), readings.GeneratedAt)
	assert.NotEmpty(t, readings.ChartID)

	for id, r := range readings.Meters {
		assert.True(t, r.Uncalibrated, "meter %s should be flagged without calibration", id)
		assert.GreaterOrEqual(t, r.Intensity, 0.0, "meter %s", id)
		assert.GreaterOrEqual(t, r.Harmony, 0.0, "meter %s", id)
		assert.LessOrEqual(t, r.Harmony, 100.0, "meter %s", id)
		assert.GreaterOrEqual(t, r.Unified, -100.0, "meter %s", id)
		assert.LessOrEqual(t, r.Unified, 100.0, "meter %s", id)
		assert.LessOrEqual(t, len(r.TopAspects), 5, "meter %s", id)
		assert.NotEmpty(t, r.IntensityLabel, "meter %s", id)
		assert.NotEmpty(t, r.HarmonyLabel, "meter %s", id)
	}
}

func TestComputeAttachesTrends(t *testing.T) {
	eng, _ := newTestEngine(t, workingSource())

	readings, err := eng.Compute(context.Background(), Request{
		Birth: testNatal().Birth,
		Date:  testDate,
	})
	require.NoError(t, err)

	for id, r := range readings.Meters {
		require.NotNil(t, r.Trend, "meter %s should carry trends when both days score", id)
		require.NotNil(t, r.Trend.Intensity, "meter %s", id)
		require.NotNil(t, r.Trend.Harmony, "meter %s", id)
		require.NotNil(t, r.Trend.Unified, "meter %s", id)

		// The previous value recorded must reconstruct today's value
		rec := r.Trend.Intensity
		assert.InDelta(t, r.Intensity, rec.Previous+rec.Delta, 1e-9, "meter %s", id)
	}

	for id, g := range readings.Groups {
		require.NotNil(t, g.Trend, "group %s should carry trends", id)
	}
}

func TestComputeOmitsTrendsWhenPriorDayFails(t *testing.T) {
	source := workingSource()
	source.transitErr["2025-03-13"] = errors.New("ephemeris unavailable")

	eng, _ := newTestEngine(t, source)

	readings, err := eng.Compute(context.Background(), Request{
		Birth: testNatal().Birth,
		Date:  testDate,
	})
	require.NoError(t, err, "prior-day failure must not fail the run")

	for id, r := range readings.Meters {
		assert.Nil(t, r.Trend, "meter %s trend should be omitted", id)
	}
	for id, g := range readings.Groups {
		assert.Nil(t, g.Trend, "group %s trend should be omitted", id)
	}
}

func TestComputeHardFailsOnIncompleteNatal(t *testing.T) {
	source := workingSource()
	natal := testNatal()
	delete(natal.Positions, contracts.Pluto)
	source.natal = natal

	eng, _ := newTestEngine(t, source)

	_, err := eng.Compute(context.Background(), Request{
		Birth: natal.Birth,
		Date:  testDate,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrMissingChartData))
}

func TestComputeHardFailsWhenTargetDayFails(t *testing.T) {
	source := workingSource()
	source.transitErr["2025-03-14"] = errors.New("ephemeris unavailable")

	eng, _ := newTestEngine(t, source)

	_, err := eng.Compute(context.Background(), Request{
		Birth: testNatal().Birth,
		Date:  testDate,
	})
	require.Error(t, err)
}

func TestComputeDeterministic(t *testing.T) {
	eng, _ := newTestEngine(t, workingSource())
	req := Request{Birth: testNatal().Birth, Date: testDate}

	first, err := eng.Compute(context.Background(), req)
	require.NoError(t, err)

	second, err := eng.Compute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second, "same inputs must produce identical readings")
}

func TestComputeSaturnSquareLandsOnCareer(t *testing.T) {
	eng, _ := newTestEngine(t, workingSource())

	readings, err := eng.Compute(context.Background(), Request{
		Birth: testNatal().Birth,
		Date:  testDate,
	})
	require.NoError(t, err)

	career := readings.Meter("career")
	require.NotNil(t, career)
	require.NotEmpty(t, career.TopAspects)

	found := false
	for _, a := range career.TopAspects {
		if a.TransitBody == contracts.Saturn && a.NatalBody == contracts.Sun && a.Type == contracts.Square {
			found = true
			assert.Negative(t, a.Valence, "saturn square sun should read as friction")
		}
	}
	assert.True(t, found, "career should surface the saturn square")
}
