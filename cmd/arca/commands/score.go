package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/ebursztein/arca-backend/internal/astro"
	"github.com/ebursztein/arca-backend/internal/calibration"
	"github.com/ebursztein/arca-backend/internal/contracts"
	"github.com/ebursztein/arca-backend/internal/engine"
	"github.com/ebursztein/arca-backend/internal/external/ephem"
	"github.com/ebursztein/arca-backend/internal/meters"
	"github.com/ebursztein/arca-backend/internal/normalize"
	"github.com/ebursztein/arca-backend/internal/observability"
	"github.com/ebursztein/arca-backend/internal/scoring"
	"github.com/ebursztein/arca-backend/internal/trend"
	"github.com/ebursztein/arca-backend/pkg/config"
	"github.com/ebursztein/arca-backend/pkg/database"
	"github.com/ebursztein/arca-backend/pkg/httputil"
	"github.com/ebursztein/arca-backend/pkg/logger"
	"github.com/ebursztein/arca-backend/pkg/redis"
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute daily readings for one chart",
	Long: `Computes the full set of daily meter readings for one birth chart,
using the same engine the API serves from.

Example:
  go run ./cmd/arca score --datetime 1988-08-02T06:15:00Z --lat 37.57 --lon 126.98
  go run ./cmd/arca score --datetime 1988-08-02T06:15:00Z --lat 37.57 --lon 126.98 --date 2025-03-14
  go run ./cmd/arca score --datetime 1988-08-02T06:15:00Z --lat 37.57 --lon 126.98 --explain career`,
	RunE: runScore,
}

var (
	scoreDatetime  string
	scoreLat       float64
	scoreLon       float64
	scoreDate      string
	scoreJSON      bool
	scoreExplain   string
	scoreSkipCache bool
)

func init() {
	rootCmd.AddCommand(scoreCmd)

	// Flags
	scoreCmd.Flags().StringVar(&scoreDatetime, "datetime", "", "birth moment, RFC3339")
	scoreCmd.Flags().Float64Var(&scoreLat, "lat", 0, "birth latitude")
	scoreCmd.Flags().Float64Var(&scoreLon, "lon", 0, "birth longitude")
	scoreCmd.Flags().StringVar(&scoreDate, "date", "", "target date YYYY-MM-DD (default: today)")
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "print raw JSON instead of the table")
	scoreCmd.Flags().StringVar(&scoreExplain, "explain", "", "also print top aspects for one meter")
	scoreCmd.Flags().BoolVar(&scoreSkipCache, "skip-cache", false, "recompute even when a cached reading exists")
	_ = scoreCmd.MarkFlagRequired("datetime")
	_ = scoreCmd.MarkFlagRequired("lat")
	_ = scoreCmd.MarkFlagRequired("lon")
}

func runScore(cmd *cobra.Command, args []string) error {
	// Parse inputs before touching any dependency.
	birthTime, err := time.Parse(time.RFC3339, scoreDatetime)
	if err != nil {
		return fmt.Errorf("parse --datetime (want RFC3339): %w", err)
	}
	date := time.Now().UTC()
	if scoreDate != "" {
		date, err = time.Parse("2006-01-02", scoreDate)
		if err != nil {
			return fmt.Errorf("parse --date (want YYYY-MM-DD): %w", err)
		}
	}

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database, optional for scoring
	var repo *calibration.Repository
	db, err := database.New(cfg)
	if err != nil {
		log.WithError(err).Debug("Database unavailable, resolving calibration from artifact")
	} else {
		defer db.Close()
		repo = calibration.NewRepository(db.Pool)
	}

	// 4. Connect to Redis
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, "arca")

	// 5. Create ephemeris client
	httpClient := httputil.NewWithTimeout(cfg, log, cfg.Ephemeris.Timeout)
	if cfg.Ephemeris.APIKey != "" {
		httpClient = httpClient.WithHeader("X-API-Key", cfg.Ephemeris.APIKey)
	}
	chartSource := ephem.NewClient(cfg.Ephemeris, httpClient, log, cache)

	// 6. Build the scoring engine, same parts as the API server
	registry, _, err := meters.LoadOrDefault(cfg.MetersPath)
	if err != nil {
		return fmt.Errorf("load meter taxonomy: %w", err)
	}
	weights := scoring.DefaultWeights()
	finder := astro.NewFinder(astro.DefaultFinderConfig())
	aggregator := meters.NewAggregator(registry, meters.DefaultAggregatorConfig())

	table := loadServingTable(context.Background(), repo, cfg, log)
	normalizer := normalize.New(table, weights, normalize.DefaultConfig())
	combiner := normalize.NewCombiner(normalize.DefaultCombinerConfig(), normalize.DefaultAsymmetry())
	classifier := trend.New(table, trend.DefaultConfig())

	eng := engine.New(chartSource, registry, finder, weights, aggregator,
		normalizer, combiner, classifier, cache, observability.New(),
		clockwork.NewRealClock(), log)

	// 7. Compute
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	readings, err := eng.Compute(ctx, engine.Request{
		Birth: contracts.BirthData{
			Datetime:  birthTime,
			Latitude:  scoreLat,
			Longitude: scoreLon,
		},
		Date:      date,
		SkipCache: scoreSkipCache,
	})
	if err != nil {
		return fmt.Errorf("compute readings: %w", err)
	}

	// 8. Print
	if scoreJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(readings)
	}

	printReadings(readings, registry)

	if scoreExplain != "" {
		m := readings.Meter(contracts.MeterID(scoreExplain))
		if m == nil {
			PrintWarning(fmt.Sprintf("Unknown meter %q, see `arca meters` for the catalog", scoreExplain))
			return nil
		}
		printTopAspects(m)
	}

	return nil
}
