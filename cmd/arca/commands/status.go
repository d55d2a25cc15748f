package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ebursztein/arca-backend/internal/calibration"
	"github.com/ebursztein/arca-backend/pkg/config"
	"github.com/ebursztein/arca-backend/pkg/database"
	"github.com/ebursztein/arca-backend/pkg/httputil"
	"github.com/ebursztein/arca-backend/pkg/logger"
	"github.com/ebursztein/arca-backend/pkg/redis"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check every dependency",
	Long: `Probes each dependency the service needs and reports what it found.

Checks:
- PostgreSQL connection and the active calibration run
- Redis connection
- Ephemeris service health
- Calibration artifact on disk

Example:
  go run ./cmd/arca status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Arca Dependency Status ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.NewNop()

	fmt.Printf("Environment : %s\n", cfg.Env)
	fmt.Printf("Port        : %s\n\n", cfg.Port)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	failures := 0

	// 1. Database
	fmt.Println("Checking database...")
	db, err := database.New(cfg)
	if err != nil {
		fmt.Printf("❌ Database: %v\n\n", err)
		failures++
	} else {
		defer db.Close()
		if err := db.Ping(ctx); err != nil {
			fmt.Printf("❌ Database ping: %v\n\n", err)
			failures++
		} else {
			fmt.Println("✅ Database reachable")
			repo := calibration.NewRepository(db.Pool)
			active, err := repo.GetActive(ctx)
			switch {
			case err != nil:
				fmt.Printf("⚠️  Active calibration: %v\n\n", err)
			case active == nil:
				fmt.Printf("   No active calibration run\n\n")
			default:
				fmt.Printf("   Active calibration: %s (created %s)\n\n",
					active.Version, active.CreatedAt.Format("2006-01-02"))
			}
		}
	}

	// 2. Redis
	fmt.Println("Checking redis...")
	redisClient, err := redis.New(cfg)
	switch {
	case err != nil:
		fmt.Printf("❌ Redis: %v\n\n", err)
		failures++
	case !redisClient.Enabled():
		fmt.Printf("⚠️  Redis disabled, caching and rate limits off\n\n")
	default:
		defer redisClient.Close()
		fmt.Println("✅ Redis reachable")
		fmt.Println()
	}

	// 3. Ephemeris service
	fmt.Println("Checking ephemeris service...")
	httpClient := httputil.NewWithTimeout(cfg, log, cfg.Ephemeris.Timeout).DisableRetry()
	if cfg.Ephemeris.APIKey != "" {
		httpClient = httpClient.WithHeader("X-API-Key", cfg.Ephemeris.APIKey)
	}
	resp, err := httpClient.Get(ctx, cfg.Ephemeris.BaseURL+"/health")
	if err != nil {
		fmt.Printf("❌ Ephemeris: %v\n\n", err)
		failures++
	} else {
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			fmt.Printf("❌ Ephemeris health returned %d\n\n", resp.StatusCode)
			failures++
		} else {
			fmt.Printf("✅ Ephemeris reachable at %s\n\n", cfg.Ephemeris.BaseURL)
		}
	}

	// 4. Calibration artifact
	fmt.Println("Checking calibration artifact...")
	table, err := calibration.Load(cfg.Calibration.ArtifactPath)
	switch {
	case os.IsNotExist(err):
		fmt.Printf("⚠️  No artifact at %s, readings will be uncalibrated\n\n", cfg.Calibration.ArtifactPath)
	case err != nil:
		fmt.Printf("❌ Artifact: %v\n\n", err)
		failures++
	default:
		age := time.Since(table.CreatedAt)
		ageDays := int(age.Hours() / 24)
		if age > cfg.Calibration.MaxAge {
			fmt.Printf("⚠️  Artifact %s is %d days old (max %s)\n\n",
				table.Version, ageDays, cfg.Calibration.MaxAge)
		} else {
			fmt.Printf("✅ Artifact %s, %d days old\n\n", table.Version, ageDays)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d dependency checks failed", failures)
	}

	fmt.Println("✅ All dependencies healthy")
	return nil
}
