package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ebursztein/arca-backend/internal/api/handlers"
	"github.com/ebursztein/arca-backend/pkg/logger"
	"github.com/ebursztein/arca-backend/pkg/redis"
)

// NewRouter creates and configures the HTTP router.
// Routing lives in this function and nowhere else. metricsHandler and
// limiter are optional; nil disables the endpoint or the budget checks.
func NewRouter(
	readings *handlers.ReadingsHandler,
	meters *handlers.MetersHandler,
	calib *handlers.CalibrationHandler,
	metricsHandler http.Handler,
	limiter *redis.RateLimiter,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Prometheus scrape endpoint
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods("GET")
	}

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// Reading endpoints
	api.HandleFunc("/readings", readings.Compute).Methods("POST")

	// Meter taxonomy
	api.HandleFunc("/meters", meters.List).Methods("GET")

	// Calibration endpoints
	api.HandleFunc("/calibration", calib.Status).Methods("GET")
	api.HandleFunc("/calibration/run", calib.Run).Methods("POST")
	api.HandleFunc("/calibration/progress", calib.Progress).Methods("GET")

	// Apply middleware
	if limiter != nil {
		api.Use(rateLimitMiddleware(limiter, log))
	}
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "arca-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
