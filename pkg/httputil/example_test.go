package httputil_test

import (
	"context"
	"fmt"
	"time"

	"github.com/ebursztein/arca-backend/pkg/config"
	"github.com/ebursztein/arca-backend/pkg/httputil"
	"github.com/ebursztein/arca-backend/pkg/logger"
)

// Example_basic demonstrates basic HTTP client usage
func Example_basic() {
	// Create config and logger
	cfg := &config.Config{
		Env:      "production",
		LogLevel: "info",
		Database: config.DatabaseConfig{
			URL: "dummy",
		},
	}
	log := logger.New(cfg)

	// Create HTTP client
	client := httputil.New(cfg, log)

	// Make GET request
	ctx := context.Background()
	resp, err := client.Get(ctx, "https://api.example.com/data")
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		return
	}
	defer resp.Body.Close()

	fmt.Printf("Status: %d\n", resp.StatusCode)
}

// Example_withRetry demonstrates retry configuration
func Example_withRetry() {
	cfg := &config.Config{
		Env:      "production",
		LogLevel: "info",
		Database: config.DatabaseConfig{
			URL: "dummy",
		},
	}
	log := logger.New(cfg)

	// Create client with custom retry settings
	client := httputil.New(cfg, log).
		WithRetry(5, 2*time.Second) // 5 retries, 2s initial delay

	ctx := context.Background()
	resp, err := client.Get(ctx, "https://api.example.com/data")
	if err != nil {
		fmt.Printf("Request failed after retries: %v\n", err)
		return
	}
	defer resp.Body.Close()

	fmt.Println("Request succeeded")
}

// Example_postJSON demonstrates JSON POST requests
func Example_postJSON() {
	cfg := &config.Config{
		Env:      "production",
		LogLevel: "info",
		Database: config.DatabaseConfig{
			URL: "dummy",
		},
	}
	log := logger.New(cfg)

	client := httputil.New(cfg, log)

	// Prepare JSON data
	data := map[string]interface{}{
		"datetime":  "1990-06-15T14:30:00Z",
		"latitude":  40.71,
		"longitude": -74.00,
	}

	// Send POST request with JSON body
	ctx := context.Background()
	resp, err := client.PostJSON(ctx, "https://api.example.com/charts/natal", data)
	if err != nil {
		fmt.Printf("POST request failed: %v\n", err)
		return
	}
	defer resp.Body.Close()

	fmt.Printf("Chart computed: %d\n", resp.StatusCode)
}

// Example_withHeader demonstrates default headers for authenticated APIs
func Example_withHeader() {
	cfg := &config.Config{
		Env:      "production",
		LogLevel: "info",
		Database: config.DatabaseConfig{
			URL: "dummy",
		},
	}
	log := logger.New(cfg)

	// Every request carries the API key header
	client := httputil.New(cfg, log).
		WithHeader("X-API-Key", "secret")

	ctx := context.Background()
	resp, err := client.Get(ctx, "https://api.example.com/data")
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		return
	}
	defer resp.Body.Close()

	fmt.Println("Authenticated request sent")
}

// Example_timeout demonstrates custom timeout
func Example_timeout() {
	cfg := &config.Config{
		Env:      "production",
		LogLevel: "info",
		Database: config.DatabaseConfig{
			URL: "dummy",
		},
	}
	log := logger.New(cfg)

	// Create client with 5 second timeout
	client := httputil.NewWithTimeout(cfg, log, 5*time.Second)

	ctx := context.Background()
	resp, err := client.Get(ctx, "https://api.example.com/slow-endpoint")
	if err != nil {
		fmt.Printf("Request timeout: %v\n", err)
		return
	}
	defer resp.Body.Close()

	fmt.Println("Request completed within timeout")
}

// Example_disableRetry demonstrates disabling retry
func Example_disableRetry() {
	cfg := &config.Config{
		Env:      "production",
		LogLevel: "info",
		Database: config.DatabaseConfig{
			URL: "dummy",
		},
	}
	log := logger.New(cfg)

	// Create client without retry
	client := httputil.New(cfg, log).DisableRetry()

	ctx := context.Background()
	resp, err := client.Get(ctx, "https://api.example.com/data")
	if err != nil {
		fmt.Printf("Request failed (no retry): %v\n", err)
		return
	}
	defer resp.Body.Close()

	fmt.Println("Request succeeded on first attempt")
}
