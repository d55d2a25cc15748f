package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ebursztein/arca-backend/pkg/config"
	"github.com/ebursztein/arca-backend/pkg/logger"
)

// testLoggerCmd represents the test-logger command
var testLoggerCmd = &cobra.Command{
	Use:   "test-logger",
	Short: "Logger output test",
	Long: `Exercises the structured logger in every configuration.

This command:
- JSON/Console format output
- Log level filtering
- Structured field logging
- Error context logging

Example:
  go run ./cmd/arca test-logger
  go run ./cmd/arca test-logger --env production`,
	RunE: runTestLogger,
}

func init() {
	rootCmd.AddCommand(testLoggerCmd)
}

func runTestLogger(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Arca Logger Test ===")

	// Test 1: JSON Format (Production)
	fmt.Println("1. JSON Format (Production)")
	fmt.Println("--------------------------------")
	testJSONFormat()
	fmt.Println()

	// Test 2: Console Format (Development)
	fmt.Println("2. Console Format (Development)")
	fmt.Println("--------------------------------")
	testConsoleFormat()
	fmt.Println()

	// Test 3: Structured Logging
	fmt.Println("3. Structured Logging with Fields")
	fmt.Println("--------------------------------")
	testStructuredLogging()
	fmt.Println()

	// Test 4: Error Logging
	fmt.Println("4. Error Logging")
	fmt.Println("--------------------------------")
	testErrorLogging()
	fmt.Println()

	fmt.Println("✅ All logger tests completed!")
	return nil
}

func testJSONFormat() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)
	log.Info("Service started")
	log.Warn("Calibration table is stale")
	log.Error("Failed to reach ephemeris service")
}

func testConsoleFormat() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "debug",
		LogFormat: "console",
	}

	log := logger.New(cfg)
	log.Debug("Resolving transit chart from cache")
	log.Info("Readings computed")
	log.Warn("Cache miss, fetching from ephemeris")
}

func testStructuredLogging() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	// Single field
	chartLog := log.WithField("chart_id", "8c50f2ab94d17e03")
	chartLog.Info("Natal chart computed")

	// Multiple fields
	readingLog := log.WithFields(map[string]interface{}{
		"meter":     "career",
		"date":      "2025-03-14",
		"intensity": 62.4,
		"harmony":   55.1,
	})
	readingLog.Info("Meter reading computed")

	// Chained fields
	log.WithField("module", "calibration").
		WithField("stage", "scoring").
		Info("Pipeline stage started")
}

func testErrorLogging() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "error",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	// Simple error
	err := errors.New("connection timeout")
	log.WithError(err).Error("Failed to fetch transit chart")

	// Error with context
	log.WithError(err).
		WithFields(map[string]interface{}{
			"retry_count": 3,
			"timeout_ms":  5000,
			"endpoint":    "/api/v1/charts/transits",
		}).
		Error("Connection failed after retries")
}
