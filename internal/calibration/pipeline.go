package calibration

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/ebursztein/arca-backend/internal/astro"
	"github.com/ebursztein/arca-backend/internal/contracts"
	"github.com/ebursztein/arca-backend/internal/meters"
	"github.com/ebursztein/arca-backend/internal/normalize"
	"github.com/ebursztein/arca-backend/internal/observability"
	"github.com/ebursztein/arca-backend/internal/scoring"
	"github.com/ebursztein/arca-backend/pkg/logger"
)

// Config holds pipeline run parameters.
type Config struct {
	Workers int `yaml:"workers"`
	// Anchors is the number of sampled anchor dates. Each anchor scores
	// the anchor day and the following day, so rate quantiles measure
	// true day-over-day movement while anchors stay spread out.
	Anchors int `yaml:"anchors"`
	// Stride is the gap in days between anchors. A stride coprime with 7
	// avoids weekday aliasing in the slower bodies.
	Stride int `yaml:"stride"`
	// Start is the first anchor date. Zero means derived from the clock
	// so the window ends near today.
	Start time.Time `yaml:"start"`
}

// DefaultConfig returns the standard pipeline parameters.
func DefaultConfig() Config {
	return Config{
		Workers: 8,
		Anchors: 40,
		Stride:  9,
	}
}

// Progress is one pipeline progress event, streamed to observers.
type Progress struct {
	Stage string `json:"stage"` // transits, scoring, reduce
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

// Pipeline runs offline calibration: score a synthetic population over
// sampled dates, reduce the raw distributions into percentile curves and
// movement quantiles, and emit a sealed versioned artifact.
type Pipeline struct {
	source   contracts.ChartSource
	registry *meters.Registry
	finder   *astro.Finder
	weights  scoring.Weights

	aggConfig  meters.AggregatorConfig
	normConfig normalize.Config
	combiner   *normalize.Combiner

	metrics *observability.Metrics
	clock   clockwork.Clock
	logger  *logger.Logger
}

// NewPipeline creates a calibration pipeline. The scoring knobs mirror the
// serving engine so calibrated curves match what serving produces.
func NewPipeline(
	source contracts.ChartSource,
	registry *meters.Registry,
	finder *astro.Finder,
	weights scoring.Weights,
	aggConfig meters.AggregatorConfig,
	normConfig normalize.Config,
	combiner *normalize.Combiner,
	metrics *observability.Metrics,
	clock clockwork.Clock,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		source:     source,
		registry:   registry,
		finder:     finder,
		weights:    weights,
		aggConfig:  aggConfig,
		normConfig: normConfig,
		combiner:   combiner,
		metrics:    metrics,
		clock:      clock,
		logger:     log.WithField("module", "calibration"),
	}
}

// rawScore is one meter's pre-normalization output for one day.
type rawScore struct {
	intensity float64
	valence   float64
}

type rawDay map[contracts.MeterID]rawScore

// personSeries is one synthetic chart scored over every anchor pair.
type personSeries struct {
	idx  int
	days [][2]rawDay
	err  error
}

// Run executes the full calibration and returns a sealed table.
// If events is non-nil it receives progress updates and is closed when the
// run finishes.
func (p *Pipeline) Run(ctx context.Context, popCfg PopulationConfig, cfg Config, events chan<- Progress) (*contracts.CalibrationTable, error) {
	if events != nil {
		defer close(events)
	}

	table, err := p.run(ctx, popCfg, cfg, events)
	if err != nil {
		p.metrics.CalibrationErrors.Inc()
		return nil, err
	}
	p.metrics.CalibrationRuns.Inc()
	return table, nil
}

func (p *Pipeline) run(ctx context.Context, popCfg PopulationConfig, cfg Config, events chan<- Progress) (*contracts.CalibrationTable, error) {
	startedAt := p.clock.Now().UTC()

	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.Anchors <= 0 || cfg.Stride <= 0 {
		return nil, fmt.Errorf("calibration: anchors and stride must be positive")
	}
	if cfg.Start.IsZero() {
		// Window trails today so every anchor has real ephemeris data
		cfg.Start = startedAt.AddDate(0, 0, -(cfg.Anchors*cfg.Stride + 1))
	}

	// Resolve the seed up front so provenance records what actually ran
	if popCfg.Seed == 0 {
		popCfg.Seed = p.clock.Now().UnixNano()
	}

	births := GeneratePopulation(popCfg)
	if len(births) == 0 {
		return nil, fmt.Errorf("calibration: empty population")
	}

	p.logger.WithFields(map[string]interface{}{
		"population": len(births),
		"anchors":    cfg.Anchors,
		"stride":     cfg.Stride,
		"start":      cfg.Start.Format("2006-01-02"),
		"workers":    cfg.Workers,
		"seed":       popCfg.Seed,
	}).Info("Starting calibration run")

	// Transit charts are chart-independent: fetch each sampled day once
	transits, err := p.fetchTransits(ctx, cfg, events)
	if err != nil {
		return nil, fmt.Errorf("fetch transits: %w", err)
	}

	// Map: score every person over every anchor pair
	series, err := p.scorePopulation(ctx, births, cfg, transits, events)
	if err != nil {
		return nil, fmt.Errorf("score population: %w", err)
	}

	// Reduce: distributions to curves, then normalized deltas to rates
	emit(events, Progress{Stage: "reduce", Done: 0, Total: 1})
	table := p.reduce(series, cfg)
	emit(events, Progress{Stage: "reduce", Done: 1, Total: 1})

	table.Version = uuid.New().String()
	table.CreatedAt = p.clock.Now().UTC()
	table.Provenance = contracts.Provenance{
		PopulationSize: popCfg.Size,
		DatesSampled:   cfg.Anchors,
		Seed:           popCfg.Seed,
		BirthYearMin:   popCfg.BirthYearMin,
		BirthYearMax:   popCfg.BirthYearMax,
		LatitudeMin:    popCfg.LatitudeMin,
		LatitudeMax:    popCfg.LatitudeMax,
		StartedAt:      startedAt,
		FinishedAt:     p.clock.Now().UTC(),
	}

	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("calibration produced invalid table: %w", err)
	}
	if err := table.Seal(); err != nil {
		return nil, fmt.Errorf("seal calibration table: %w", err)
	}

	p.logger.WithFields(map[string]interface{}{
		"version":  table.Version,
		"meters":   len(table.Meters),
		"duration": p.clock.Now().UTC().Sub(startedAt).Seconds(),
	}).Info("Calibration run completed")

	return table, nil
}

// fetchTransits loads the transit chart for every sampled day.
func (p *Pipeline) fetchTransits(ctx context.Context, cfg Config, events chan<- Progress) (map[string]*contracts.TransitChart, error) {
	total := cfg.Anchors * 2
	charts := make(map[string]*contracts.TransitChart, total)

	done := 0
	for i := 0; i < cfg.Anchors; i++ {
		anchor := cfg.Start.AddDate(0, 0, i*cfg.Stride)
		for _, date := range [2]time.Time{anchor, anchor.AddDate(0, 0, 1)} {
			key := date.UTC().Format("2006-01-02")
			if _, ok := charts[key]; ok {
				done++
				continue
			}

			chart, err := p.source.Transits(ctx, date)
			if err != nil {
				return nil, fmt.Errorf("transits for %s: %w", key, err)
			}
			if err := astro.ValidateTransit(chart); err != nil {
				return nil, fmt.Errorf("transits for %s: %w", key, err)
			}

			charts[key] = chart
			done++
			emit(events, Progress{Stage: "transits", Done: done, Total: total})
		}
	}

	return charts, nil
}

// scorePopulation fans the population out over a worker pool and collects
// every person's raw meter series.
func (p *Pipeline) scorePopulation(ctx context.Context, births []contracts.BirthData, cfg Config, transits map[string]*contracts.TransitChart, events chan<- Progress) ([]personSeries, error) {
	jobCh := make(chan int, len(births))
	resultCh := make(chan personSeries, len(births))

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.scoreWorker(ctx, births, cfg, transits, jobCh, resultCh)
		}()
	}

	for i := range births {
		jobCh <- i
	}
	close(jobCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	series := make([]personSeries, 0, len(births))
	failed := 0
	var firstErr error
	for result := range resultCh {
		if result.err != nil {
			failed++
			if firstErr == nil {
				firstErr = result.err
			}
			continue
		}
		series = append(series, result)
		emit(events, Progress{Stage: "scoring", Done: len(series), Total: len(births)})
	}

	// A partially scored population would skew the distributions
	if failed > 0 {
		return nil, fmt.Errorf("%d of %d charts failed, first: %w", failed, len(births), firstErr)
	}

	// Workers return out of order; restore population order so reruns
	// with the same seed reduce identically.
	sort.Slice(series, func(i, j int) bool { return series[i].idx < series[j].idx })

	return series, nil
}

func (p *Pipeline) scoreWorker(ctx context.Context, births []contracts.BirthData, cfg Config, transits map[string]*contracts.TransitChart, jobCh <-chan int, resultCh chan<- personSeries) {
	aggregator := meters.NewAggregator(p.registry, p.aggConfig)

	for idx := range jobCh {
		select {
		case <-ctx.Done():
			resultCh <- personSeries{idx: idx, err: ctx.Err()}
			continue
		default:
		}

		natal, err := p.source.Natal(ctx, births[idx])
		if err != nil {
			resultCh <- personSeries{idx: idx, err: fmt.Errorf("natal: %w", err)}
			continue
		}
		if err := astro.ValidateNatal(natal); err != nil {
			resultCh <- personSeries{idx: idx, err: fmt.Errorf("natal: %w", err)}
			continue
		}

		calc := scoring.NewCalculator(p.weights, astro.ChartRuler(natal))

		days := make([][2]rawDay, cfg.Anchors)
		for i := 0; i < cfg.Anchors; i++ {
			anchor := cfg.Start.AddDate(0, 0, i*cfg.Stride)
			for d := 0; d < 2; d++ {
				date := anchor.AddDate(0, 0, d)
				chart := transits[date.UTC().Format("2006-01-02")]
				days[i][d] = p.scoreRaw(natal, chart, calc, aggregator, date)
			}
		}

		resultCh <- personSeries{idx: idx, days: days}
	}
}

// scoreRaw runs the pre-normalization pipeline for one chart and day.
func (p *Pipeline) scoreRaw(natal *contracts.NatalChart, transits *contracts.TransitChart, calc *scoring.Calculator, aggregator *meters.Aggregator, date time.Time) rawDay {
	aspects := p.finder.Find(natal, transits)
	contribs := calc.ScoreAll(aspects)

	retro := make(map[contracts.Body]bool)
	for body, pos := range transits.Positions {
		if pos.Retrograde || pos.Speed < 0 {
			retro[body] = true
		}
	}

	readings := aggregator.Aggregate(date, contribs, retro)

	day := make(rawDay, len(readings))
	for id, r := range readings {
		day[id] = rawScore{intensity: r.RawIntensity, valence: r.RawValence}
	}
	return day
}

// reduce folds every person's raw series into the calibration table.
func (p *Pipeline) reduce(series []personSeries, cfg Config) *contracts.CalibrationTable {
	ids := p.registry.IDs()

	// Phase one: raw distributions per meter
	intensitySamples := make(map[contracts.MeterID][]float64, len(ids))
	positiveSamples := make(map[contracts.MeterID][]float64, len(ids))
	negativeSamples := make(map[contracts.MeterID][]float64, len(ids))

	for _, person := range series {
		for _, pair := range person.days {
			for _, day := range pair {
				for id, raw := range day {
					intensitySamples[id] = append(intensitySamples[id], raw.intensity)
					if raw.valence > 0 {
						positiveSamples[id] = append(positiveSamples[id], raw.valence)
					} else if raw.valence < 0 {
						negativeSamples[id] = append(negativeSamples[id], -raw.valence)
					}
				}
			}
		}
	}

	table := &contracts.CalibrationTable{
		Meters:     make(map[contracts.MeterID]*contracts.MeterCalibration, len(ids)),
		GroupRates: make(map[contracts.GroupID]map[contracts.TrendMetric]contracts.RateQuantiles),
	}

	for _, id := range ids {
		table.Meters[id] = &contracts.MeterCalibration{
			Intensity:       quantileCurve(intensitySamples[id]),
			HarmonyPositive: quantileCurve(positiveSamples[id]),
			HarmonyNegative: quantileCurve(negativeSamples[id]),
			Rates:           make(map[contracts.TrendMetric]contracts.RateQuantiles),
		}
	}

	// Phase two: normalize through the freshly built curves, then measure
	// day-over-day movement on the normalized scale.
	normalizer := normalize.New(table, p.weights, p.normConfig)

	meterDeltas := make(map[contracts.MeterID]map[contracts.TrendMetric][]float64, len(ids))
	for _, id := range ids {
		meterDeltas[id] = make(map[contracts.TrendMetric][]float64)
	}
	groupDeltas := make(map[contracts.GroupID]map[contracts.TrendMetric][]float64)

	for _, person := range series {
		for _, pair := range person.days {
			day0 := p.normalizeDay(normalizer, pair[0])
			day1 := p.normalizeDay(normalizer, pair[1])

			for id, r1 := range day1 {
				r0, ok := day0[id]
				if !ok {
					continue
				}
				meterDeltas[id][contracts.MetricIntensity] = append(meterDeltas[id][contracts.MetricIntensity], math.Abs(r1.Intensity-r0.Intensity))
				meterDeltas[id][contracts.MetricHarmony] = append(meterDeltas[id][contracts.MetricHarmony], math.Abs(r1.Harmony-r0.Harmony))
				meterDeltas[id][contracts.MetricUnified] = append(meterDeltas[id][contracts.MetricUnified], math.Abs(r1.Unified-r0.Unified))
			}

			groups0 := meters.Combine(p.registry, time.Time{}, day0)
			groups1 := meters.Combine(p.registry, time.Time{}, day1)
			for gid, g1 := range groups1 {
				g0, ok := groups0[gid]
				if !ok {
					continue
				}
				if groupDeltas[gid] == nil {
					groupDeltas[gid] = make(map[contracts.TrendMetric][]float64)
				}
				groupDeltas[gid][contracts.MetricIntensity] = append(groupDeltas[gid][contracts.MetricIntensity], math.Abs(g1.Intensity-g0.Intensity))
				groupDeltas[gid][contracts.MetricHarmony] = append(groupDeltas[gid][contracts.MetricHarmony], math.Abs(g1.Harmony-g0.Harmony))
				groupDeltas[gid][contracts.MetricUnified] = append(groupDeltas[gid][contracts.MetricUnified], math.Abs(g1.Unified-g0.Unified))
			}
		}
	}

	for id, byMetric := range meterDeltas {
		for _, metric := range contracts.TrendMetrics {
			table.Meters[id].Rates[metric] = rateQuantiles(byMetric[metric])
		}
	}
	for gid, byMetric := range groupDeltas {
		table.GroupRates[gid] = make(map[contracts.TrendMetric]contracts.RateQuantiles, len(contracts.TrendMetrics))
		for _, metric := range contracts.TrendMetrics {
			table.GroupRates[gid][metric] = rateQuantiles(byMetric[metric])
		}
	}

	return table
}

// normalizeDay turns raw scores into normalized readings using the same
// code path the serving engine runs.
func (p *Pipeline) normalizeDay(normalizer *normalize.Normalizer, day rawDay) map[contracts.MeterID]*contracts.MeterReading {
	readings := make(map[contracts.MeterID]*contracts.MeterReading, len(day))
	for id, raw := range day {
		def, err := p.registry.Get(id)
		if err != nil {
			continue
		}
		r := &contracts.MeterReading{
			Meter:        id,
			Group:        def.Group,
			RawIntensity: raw.intensity,
			RawValence:   raw.valence,
		}
		normalizer.Apply(r)
		r.Unified = p.combiner.Unified(r.Intensity, r.Harmony)
		readings[id] = r
	}
	return readings
}

func quantileCurve(samples []float64) contracts.Curve {
	return contracts.Curve{
		Ranks:  append([]float64(nil), contracts.StandardRanks...),
		Values: Quantiles(samples, contracts.StandardRanks),
	}
}

func rateQuantiles(samples []float64) contracts.RateQuantiles {
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	return contracts.RateQuantiles{
		P50: Percentile(sorted, 50),
		P80: Percentile(sorted, 80),
		P95: Percentile(sorted, 95),
	}
}

// emit sends without blocking; a slow observer drops updates rather than
// stalling the run.
func emit(events chan<- Progress, p Progress) {
	if events == nil {
		return
	}
	select {
	case events <- p:
	default:
	}
}
