package commands

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/ebursztein/arca-backend/internal/astro"
	"github.com/ebursztein/arca-backend/internal/calibration"
	"github.com/ebursztein/arca-backend/internal/external/ephem"
	"github.com/ebursztein/arca-backend/internal/meters"
	"github.com/ebursztein/arca-backend/internal/normalize"
	"github.com/ebursztein/arca-backend/internal/observability"
	"github.com/ebursztein/arca-backend/internal/scoring"
	"github.com/ebursztein/arca-backend/pkg/config"
	"github.com/ebursztein/arca-backend/pkg/database"
	"github.com/ebursztein/arca-backend/pkg/httputil"
	"github.com/ebursztein/arca-backend/pkg/logger"
	"github.com/ebursztein/arca-backend/pkg/redis"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Calibration pipeline and run management",
	Long: `Runs the offline calibration pipeline and manages stored runs.

The pipeline scores a synthetic population across sampled dates and
derives the percentile curves and trend rate thresholds the serving
path normalizes against.

Commands:
  run       Run the pipeline and write the artifact
  list      List stored calibration runs
  activate  Mark a stored run as active (rollback or promote)`,
}

var (
	// run flags
	calibSize     int
	calibSeed     int64
	calibAnchors  int
	calibStride   int
	calibWorkers  int
	calibStart    string
	calibOut      string
	calibActivate bool

	// list flags
	calibListLimit int
)

var calibrateRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the calibration pipeline",
	Long: `Runs the full pipeline: generate population, fetch charts, score,
reduce to percentile curves, then write the artifact.

Example:
  go run ./cmd/arca calibrate run
  go run ./cmd/arca calibrate run --population 500 --seed 42
  go run ./cmd/arca calibrate run --activate`,
	RunE: runCalibrateRun,
}

var calibrateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored calibration runs",
	Long: `Lists calibration runs stored in the database, newest first.

Example:
  go run ./cmd/arca calibrate list
  go run ./cmd/arca calibrate list --limit 5`,
	RunE: runCalibrateList,
}

var calibrateActivateCmd = &cobra.Command{
	Use:   "activate [version]",
	Short: "Mark a stored run as active",
	Long: `Marks one stored calibration run as active. The API server picks
the active run up on its next start.

Example:
  go run ./cmd/arca calibrate activate 0d4cf2b2-8edb-49c5-bf0a-52f21c5cbe4c`,
	Args: cobra.ExactArgs(1),
	RunE: runCalibrateActivate,
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
	calibrateCmd.AddCommand(calibrateRunCmd)
	calibrateCmd.AddCommand(calibrateListCmd)
	calibrateCmd.AddCommand(calibrateActivateCmd)

	// run flags
	calibrateRunCmd.Flags().IntVar(&calibSize, "population", 0, "synthetic population size (default from pipeline)")
	calibrateRunCmd.Flags().Int64Var(&calibSeed, "seed", 0, "population seed (0: time-seeded)")
	calibrateRunCmd.Flags().IntVar(&calibAnchors, "anchors", 0, "anchor dates to sample")
	calibrateRunCmd.Flags().IntVar(&calibStride, "stride", 0, "days between anchors")
	calibrateRunCmd.Flags().IntVar(&calibWorkers, "workers", 0, "scoring workers")
	calibrateRunCmd.Flags().StringVar(&calibStart, "start", "", "first anchor date YYYY-MM-DD (default: derived)")
	calibrateRunCmd.Flags().StringVar(&calibOut, "out", "", "artifact path (default from config)")
	calibrateRunCmd.Flags().BoolVar(&calibActivate, "activate", false, "store the run in the database and mark it active")

	// list flags
	calibrateListCmd.Flags().IntVar(&calibListLimit, "limit", 20, "runs to show")
}

func runCalibrateRun(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Arca Calibration ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database, required only for --activate
	var repo *calibration.Repository
	db, err := database.New(cfg)
	if err != nil {
		if calibActivate {
			return fmt.Errorf("connect to database (needed for --activate): %w", err)
		}
		log.WithError(err).Debug("Database unavailable, run will not be stored")
	} else {
		defer db.Close()
		repo = calibration.NewRepository(db.Pool)
	}

	// 4. Connect to Redis, only to share the transit chart cache
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

	// 6. Create the pipeline
	registry, _, err := meters.LoadOrDefault(cfg.MetersPath)
	if err != nil {
		return fmt.Errorf("load meter taxonomy: %w", err)
	}
	weights := scoring.DefaultWeights()
	finder := astro.NewFinder(astro.DefaultFinderConfig())
	combiner := normalize.NewCombiner(normalize.DefaultCombinerConfig(), normalize.DefaultAsymmetry())

	pipeline := calibration.NewPipeline(chartSource, registry, finder, weights,
		meters.DefaultAggregatorConfig(), normalize.DefaultConfig(), combiner,
		observability.New(), clockwork.NewRealClock(), log)

	// 7. Resolve run parameters, flags over defaults
	popCfg := calibration.DefaultPopulationConfig()
	if calibSize > 0 {
		popCfg.Size = calibSize
	}
	if calibSeed != 0 {
		popCfg.Seed = calibSeed
	}

	runCfg := calibration.DefaultConfig()
	if calibAnchors > 0 {
		runCfg.Anchors = calibAnchors
	}
	if calibStride > 0 {
		runCfg.Stride = calibStride
	}
	if calibWorkers > 0 {
		runCfg.Workers = calibWorkers
	}
	if calibStart != "" {
		start, err := time.Parse("2006-01-02", calibStart)
		if err != nil {
			return fmt.Errorf("parse --start (want YYYY-MM-DD): %w", err)
		}
		runCfg.Start = start
	}

	fmt.Printf("Population: %d  Anchors: %d  Stride: %d  Workers: %d\n\n",
		popCfg.Size, runCfg.Anchors, runCfg.Stride, runCfg.Workers)

	// 8. Run with a progress printer
	events := make(chan calibration.Progress, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		printCalibrationProgress(events)
	}()

	started := time.Now()
	table, err := pipeline.Run(context.Background(), popCfg, runCfg, events)
	wg.Wait()
	if err != nil {
		return fmt.Errorf("calibration run: %w", err)
	}

	PrintSuccess(fmt.Sprintf("Calibration completed in %.1fs", time.Since(started).Seconds()))
	fmt.Printf("   Version    : %s\n", table.Version)
	fmt.Printf("   Population : %d\n", table.Provenance.PopulationSize)
	fmt.Printf("   Dates      : %d\n", table.Provenance.DatesSampled)
	fmt.Printf("   Checksum   : %s\n", table.Checksum[:12])

	// 9. Write the artifact
	out := calibOut
	if out == "" {
		out = cfg.Calibration.ArtifactPath
	}
	if err := calibration.Save(out, table); err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	fmt.Printf("   Artifact   : %s\n", out)

	// 10. Store and activate
	if calibActivate {
		ctx := context.Background()
		if err := repo.SaveRun(ctx, table); err != nil {
			return fmt.Errorf("store run: %w", err)
		}
		if err := repo.Activate(ctx, table.Version); err != nil {
			return fmt.Errorf("activate run: %w", err)
		}
		PrintSuccess("Run stored and activated, restart the API server to serve it")
	}

	return nil
}

// printCalibrationProgress drains pipeline progress events, printing stage
// transitions and every tenth step so long runs stay readable.
func printCalibrationProgress(events <-chan calibration.Progress) {
	var last calibration.Progress
	for ev := range events {
		step := ev.Total / 10
		if step == 0 {
			step = 1
		}
		if ev.Stage != last.Stage || ev.Done == ev.Total || ev.Done%step == 0 {
			PrintProgress("Calibration", ev.Stage, ev.Done, ev.Total)
		}
		last = ev
	}
}

func runCalibrateList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	repo := calibration.NewRepository(db.Pool)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runs, err := repo.History(ctx, calibListLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No calibration runs stored.")
		return nil
	}

	fmt.Println("Stored calibration runs:")
	fmt.Println()
	fmt.Printf("  %-8s %-36s %-20s %10s %6s\n", "ACTIVE", "VERSION", "CREATED", "POPULATION", "DATES")
	PrintSeparator()
	for _, run := range runs {
		active := ""
		if run.Active {
			active = "✓"
		}
		fmt.Printf("  %-8s %-36s %-20s %10d %6d\n",
			active, run.Version, run.CreatedAt.Format("2006-01-02 15:04:05"),
			run.PopulationSize, run.DatesSampled)
	}

	return nil
}

func runCalibrateActivate(cmd *cobra.Command, args []string) error {
	version := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	repo := calibration.NewRepository(db.Pool)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := repo.Activate(ctx, version); err != nil {
		return fmt.Errorf("activate run: %w", err)
	}

	PrintSuccess(fmt.Sprintf("Calibration %s activated, restart the API server to serve it", version))
	return nil
}
