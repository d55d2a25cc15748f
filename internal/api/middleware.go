package api

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ebursztein/arca-backend/pkg/logger"
	"github.com/ebursztein/arca-backend/pkg/redis"
)

// rateLimitMiddleware applies per-client budgets to the expensive
// endpoints. Reading computation costs two upstream round trips and a
// calibration run occupies the process for minutes, so both are capped;
// everything else passes through.
func rateLimitMiddleware(limiter *redis.RateLimiter, log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var cfg redis.RateLimitConfig
			switch {
			case r.Method == http.MethodPost && r.URL.Path == "/api/readings":
				cfg = redis.ReadingsRateLimit
			case r.Method == http.MethodPost && r.URL.Path == "/api/calibration/run":
				cfg = redis.CalibrateRateLimit
			default:
				next.ServeHTTP(w, r)
				return
			}

			allowed, remaining, err := limiter.Allow(r.Context(), cfg.PerClient(clientIP(r)))
			if err != nil {
				// A broken limiter must not take the API down with it
				log.WithError(err).Warn("Rate limit check failed, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Rate limit exceeded",
				})
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the caller address, preferring the first forwarded hop.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
