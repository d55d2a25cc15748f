package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ebursztein/arca-backend/internal/astro"
	"github.com/ebursztein/arca-backend/internal/contracts"
	"github.com/ebursztein/arca-backend/internal/meters"
	"github.com/ebursztein/arca-backend/internal/normalize"
	"github.com/ebursztein/arca-backend/internal/observability"
	"github.com/ebursztein/arca-backend/internal/scoring"
	"github.com/ebursztein/arca-backend/internal/trend"
	"github.com/ebursztein/arca-backend/pkg/logger"
	"github.com/ebursztein/arca-backend/pkg/redis"
)

// Engine coordinates the full reading pipeline for one chart and date:
// charts, aspects, contributions, meters, normalization, trends, groups.
type Engine struct {
	source     contracts.ChartSource
	registry   *meters.Registry
	finder     *astro.Finder
	weights    scoring.Weights
	aggregator *meters.Aggregator
	normalizer *normalize.Normalizer
	combiner   *normalize.Combiner
	classifier *trend.Classifier

	cache   *redis.Cache
	metrics *observability.Metrics
	clock   clockwork.Clock
	logger  *logger.Logger
}

// Request identifies one reading computation.
type Request struct {
	Birth contracts.BirthData
	Date  time.Time
	// SkipCache forces recomputation. The result is still stored.
	SkipCache bool
}

// New creates a new engine. cache may be nil.
func New(
	source contracts.ChartSource,
	registry *meters.Registry,
	finder *astro.Finder,
	weights scoring.Weights,
	aggregator *meters.Aggregator,
	normalizer *normalize.Normalizer,
	combiner *normalize.Combiner,
	classifier *trend.Classifier,
	cache *redis.Cache,
	metrics *observability.Metrics,
	clock clockwork.Clock,
	log *logger.Logger,
) *Engine {
	return &Engine{
		source:     source,
		registry:   registry,
		finder:     finder,
		weights:    weights,
		aggregator: aggregator,
		normalizer: normalizer,
		combiner:   combiner,
		classifier: classifier,
		cache:      cache,
		metrics:    metrics,
		clock:      clock,
		logger:     log,
	}
}

// dayScores holds one day's normalized meters and groups before trends
// are attached.
type dayScores struct {
	meters map[contracts.MeterID]*contracts.MeterReading
	groups map[contracts.GroupID]*contracts.GroupReading
}

type dayResult struct {
	scores *dayScores
	err    error
}

// Compute produces the full set of daily readings for one chart.
// The previous day is scored alongside the target day so trends compare
// like against like; if the previous day cannot be scored the readings
// are still returned, with trends omitted.
func (e *Engine) Compute(ctx context.Context, req Request) (*contracts.DailyReadings, error) {
	startTime := time.Now()
	date := req.Date.UTC().Truncate(24 * time.Hour)

	// Natal chart first: everything else keys off it
	natal, err := e.source.Natal(ctx, req.Birth)
	if err != nil {
		return nil, fmt.Errorf("natal chart: %w", err)
	}
	if err := astro.ValidateNatal(natal); err != nil {
		return nil, fmt.Errorf("natal chart: %w", err)
	}

	chartID := natal.Fingerprint()
	version := e.calibrationVersion()
	cacheKey := redis.ReadingKey(chartID, date.Format("2006-01-02"), version)

	log := e.logger.WithFields(map[string]interface{}{
		"chart_id": chartID,
		"date":     date.Format("2006-01-02"),
	})

	// Cache probe
	if e.cache != nil && !req.SkipCache {
		var cached contracts.DailyReadings
		found, err := e.cache.Get(ctx, cacheKey, &cached)
		if err == nil && found {
			e.metrics.ReadingCacheHits.Inc()
			log.Debug("Readings served from cache")
			return &cached, nil
		}
		e.metrics.ReadingCacheMisses.Inc()
	}

	log.Info("Computing readings")

	// Score target day and previous day concurrently. Both runs walk the
	// same natal chart, so neither mutates it.
	todayCh := make(chan dayResult, 1)
	priorCh := make(chan dayResult, 1)

	go func() {
		scores, err := e.scoreDay(ctx, natal, date)
		todayCh <- dayResult{scores: scores, err: err}
	}()
	go func() {
		scores, err := e.scoreDay(ctx, natal, date.AddDate(0, 0, -1))
		priorCh <- dayResult{scores: scores, err: err}
	}()

	today := <-todayCh
	prior := <-priorCh

	// Target day failure is a hard failure
	if today.err != nil {
		return nil, fmt.Errorf("score %s: %w", date.Format("2006-01-02"), today.err)
	}

	// Previous day failure degrades to trendless readings
	if prior.err != nil {
		e.metrics.TrendOmitted.Inc()
		log.WithError(prior.err).Warn("Previous day unavailable, omitting trends")
	} else {
		e.attachTrends(today.scores, prior.scores)
	}

	readings := &contracts.DailyReadings{
		ChartID:            chartID,
		Date:               date,
		Meters:             today.scores.meters,
		Groups:             today.scores.groups,
		CalibrationVersion: version,
		GeneratedAt:        e.clock.Now().UTC(),
	}

	for _, r := range readings.Meters {
		if r.Uncalibrated {
			e.metrics.UncalibratedReadings.Inc()
		}
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, cacheKey, readings, redis.TTLDaily); err != nil {
			log.WithError(err).Warn("Failed to cache readings")
		}
	}

	e.metrics.ReadingsComputed.Inc()
	e.metrics.ScoreDuration.Observe(time.Since(startTime).Seconds())

	log.WithFields(map[string]interface{}{
		"meters":   len(readings.Meters),
		"groups":   len(readings.Groups),
		"duration": time.Since(startTime).Seconds(),
	}).Info("Readings computed")

	return readings, nil
}

// scoreDay runs the scoring pipeline for a single date: transits, aspects,
// contributions, meter aggregation, normalization, group rollup.
func (e *Engine) scoreDay(ctx context.Context, natal *contracts.NatalChart, date time.Time) (*dayScores, error) {
	transits, err := e.source.Transits(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("transit chart: %w", err)
	}
	if err := astro.ValidateTransit(transits); err != nil {
		return nil, fmt.Errorf("transit chart: %w", err)
	}

	aspects := e.finder.Find(natal, transits)

	calc := scoring.NewCalculator(e.weights, astro.ChartRuler(natal))
	contribs := calc.ScoreAll(aspects)

	readings := e.aggregator.Aggregate(date, contribs, retrogradeSet(transits))

	for _, r := range readings {
		e.normalizer.Apply(r)
		r.Unified = e.combiner.Unified(r.Intensity, r.Harmony)
	}

	groups := meters.Combine(e.registry, date, readings)

	return &dayScores{meters: readings, groups: groups}, nil
}

// attachTrends classifies day-over-day movement for every meter and group.
func (e *Engine) attachTrends(today, prior *dayScores) {
	for id, reading := range today.meters {
		reading.Trend = e.classifier.MeterSet(reading, prior.meters[id])
	}
	for id, group := range today.groups {
		group.Trend = e.classifier.GroupSet(group, prior.groups[id])
	}
}

func (e *Engine) calibrationVersion() string {
	if table := e.normalizer.Table(); table != nil {
		return table.Version
	}
	return "uncalibrated"
}

// retrogradeSet collects the transit bodies currently retrograde.
func retrogradeSet(transits *contracts.TransitChart) map[contracts.Body]bool {
	retro := make(map[contracts.Body]bool)
	for body, p := range transits.Positions {
		if p.Retrograde || p.Speed < 0 {
			retro[body] = true
		}
	}
	return retro
}
