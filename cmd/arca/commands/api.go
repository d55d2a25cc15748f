package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/ebursztein/arca-backend/internal/api"
	"github.com/ebursztein/arca-backend/internal/api/handlers"
	"github.com/ebursztein/arca-backend/internal/astro"
	"github.com/ebursztein/arca-backend/internal/calibration"
	"github.com/ebursztein/arca-backend/internal/contracts"
	"github.com/ebursztein/arca-backend/internal/engine"
	"github.com/ebursztein/arca-backend/internal/external/ephem"
	"github.com/ebursztein/arca-backend/internal/meters"
	"github.com/ebursztein/arca-backend/internal/normalize"
	"github.com/ebursztein/arca-backend/internal/observability"
	"github.com/ebursztein/arca-backend/internal/scheduler"
	"github.com/ebursztein/arca-backend/internal/scheduler/jobs"
	"github.com/ebursztein/arca-backend/internal/scoring"
	"github.com/ebursztein/arca-backend/internal/trend"
	"github.com/ebursztein/arca-backend/pkg/config"
	"github.com/ebursztein/arca-backend/pkg/database"
	"github.com/ebursztein/arca-backend/pkg/httputil"
	"github.com/ebursztein/arca-backend/pkg/logger"
	"github.com/ebursztein/arca-backend/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server with the background scheduler.

This command:
- Serves daily readings and the meter catalog
- Triggers and streams calibration runs
- Runs the staleness check and chart warmup jobs

Endpoints:
  GET  /health                    - Health check
  GET  /metrics                   - Prometheus metrics
  POST /api/readings              - Daily readings for a chart
  GET  /api/meters                - Meter catalog
  GET  /api/calibration           - Calibration status
  POST /api/calibration/run       - Start a calibration run
  GET  /api/calibration/progress  - Calibration progress (websocket)

Example:
  go run ./cmd/arca api
  go run ./cmd/arca api --port 8087`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default from config)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Arca API Server ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Override port if flag is set
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// 3. Connect to database. The scoring path does not need it, so a
	// missing database only disables calibration persistence.
	var repo *calibration.Repository
	db, err := database.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Database unavailable, calibration history disabled")
	} else {
		defer db.Close()
		repo = calibration.NewRepository(db.Pool)
		log.Info("Connected to database")
	}

	// 4. Connect to Redis
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	cache := redis.NewCache(redisClient, "arca")
	limiter := redis.NewRateLimiter(redisClient, "arca")

	// 5. Create HTTP client
	httpClient := httputil.NewWithTimeout(cfg, log, cfg.Ephemeris.Timeout)
	if cfg.Ephemeris.APIKey != "" {
		httpClient = httpClient.WithHeader("X-API-Key", cfg.Ephemeris.APIKey)
	}

	// 6. Create ephemeris client
	chartSource := ephem.NewClient(cfg.Ephemeris, httpClient, log, cache)

	// 7. Load meter taxonomy
	registry, taxonomyHash, err := meters.LoadOrDefault(cfg.MetersPath)
	if err != nil {
		return fmt.Errorf("load meter taxonomy: %w", err)
	}
	log.WithField("hash", taxonomyHash[:12]).Info("Meter taxonomy loaded")

	// 8. Create scoring components
	weights := scoring.DefaultWeights()
	finder := astro.NewFinder(astro.DefaultFinderConfig())
	aggregator := meters.NewAggregator(registry, meters.DefaultAggregatorConfig())

	// 9. Load the serving calibration table
	ctx := context.Background()
	table := loadServingTable(ctx, repo, cfg, log)

	normalizer := normalize.New(table, weights, normalize.DefaultConfig())
	combiner := normalize.NewCombiner(normalize.DefaultCombinerConfig(), normalize.DefaultAsymmetry())
	classifier := trend.New(table, trend.DefaultConfig())

	// 10. Create metrics and engine
	metrics := observability.New()
	clock := clockwork.NewRealClock()

	eng := engine.New(chartSource, registry, finder, weights, aggregator,
		normalizer, combiner, classifier, cache, metrics, clock, log)

	// 11. Create calibration pipeline
	pipeline := calibration.NewPipeline(chartSource, registry, finder, weights,
		meters.DefaultAggregatorConfig(), normalize.DefaultConfig(), combiner,
		metrics, clock, log)

	// 12. Create handlers
	readingsHandler := handlers.NewReadingsHandler(eng, log)
	metersHandler := handlers.NewMetersHandler(registry, log)
	calibrationHandler := handlers.NewCalibrationHandler(pipeline,
		calibration.DefaultPopulationConfig(), calibration.DefaultConfig(),
		cfg.Calibration.ArtifactPath, repo, normalizer, cfg.Calibration.MaxAge,
		clock, log)

	// 13. Create router
	var metricsHandler = metrics.Handler()
	if !cfg.MetricsEnabled {
		metricsHandler = nil
	}
	router := api.NewRouter(readingsHandler, metersHandler, calibrationHandler,
		metricsHandler, limiter, log)

	// 14. Create server
	server := api.New(cfg, log, router)

	// 15. Start background jobs
	sched := scheduler.New(log)
	if err := sched.AddJob(jobs.NewStalenessJob(table, repo, cfg.Calibration.MaxAge, metrics, clock, log)); err != nil {
		return fmt.Errorf("register staleness job: %w", err)
	}
	if err := sched.AddJob(jobs.NewChartWarmupJob(chartSource, 2, clock, log)); err != nil {
		return fmt.Errorf("register warmup job: %w", err)
	}
	sched.Start()

	// Prime the gauges and the transit cache right away rather than
	// waiting for the first scheduled tick.
	for _, jobName := range sched.Jobs() {
		if err := sched.RunJob(jobName); err != nil {
			log.WithError(err).WithField("job", jobName).Warn("Initial job run failed to start")
		}
	}

	// 16. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /metrics")
	fmt.Println("  POST /api/readings")
	fmt.Println("  GET  /api/meters")
	fmt.Println("  GET  /api/calibration")
	fmt.Println("  POST /api/calibration/run")
	fmt.Println("  GET  /api/calibration/progress (websocket)")
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	sched.Stop()

	log.Info("Server stopped")
	return nil
}

// loadServingTable resolves the calibration table this process serves. The
// database's active run wins, then the local artifact, then nothing. The
// choice is fixed for the life of the process.
func loadServingTable(ctx context.Context, repo *calibration.Repository, cfg *config.Config, log *logger.Logger) *contracts.CalibrationTable {
	if repo != nil {
		table, err := repo.GetActive(ctx)
		if err != nil {
			log.WithError(err).Warn("Could not load active calibration from database")
		} else if table != nil {
			log.WithFields(map[string]interface{}{
				"version": table.Version,
				"source":  "database",
			}).Info("Calibration table loaded")
			return table
		}
	}

	table, err := calibration.Load(cfg.Calibration.ArtifactPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", cfg.Calibration.ArtifactPath).Warn("No calibration artifact, serving uncalibrated readings")
		} else {
			log.WithError(err).Warn("Calibration artifact rejected, serving uncalibrated readings")
		}
		return nil
	}

	log.WithFields(map[string]interface{}{
		"version": table.Version,
		"source":  "artifact",
	}).Info("Calibration table loaded")
	return table
}
