package ephem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/ebursztein/arca-backend/internal/contracts"
	"github.com/ebursztein/arca-backend/pkg/config"
	"github.com/ebursztein/arca-backend/pkg/httputil"
	"github.com/ebursztein/arca-backend/pkg/logger"
	"github.com/ebursztein/arca-backend/pkg/redis"
)

// Client talks to the ephemeris service that computes natal and transit
// charts. All chart computation calls go through this client; the scoring
// core never computes positions itself.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.EphemerisConfig

	// Client-side throttle for the upstream service. The Redis limiter in
	// pkg/redis covers inbound traffic; this one covers outbound.
	limiter *rate.Limiter

	cache *redis.Cache
}

// NewClient creates a new ephemeris client. cache may be nil, in which case
// every call hits the service.
func NewClient(cfg config.EphemerisConfig, httpClient *httputil.Client, log *logger.Logger, cache *redis.Cache) *Client {
	rps := cfg.RateRPS
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = int(rps)
	}

	return &Client{
		httpClient: httpClient,
		logger:     log,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		cache:      cache,
	}
}

// natalResponse is the wire shape of a natal chart. Positions arrive as a
// list and are keyed by body here.
type natalResponse struct {
	Birth      contracts.BirthData  `json:"birth"`
	Positions  []contracts.Position `json:"positions"`
	HouseCusps []float64            `json:"house_cusps"`
	Ascendant  contracts.Sign       `json:"ascendant"`
}

// transitResponse is the wire shape of a transit chart.
type transitResponse struct {
	Date      time.Time            `json:"date"`
	Positions []contracts.Position `json:"positions"`
}

// Natal computes the natal chart for the given birth data.
func (c *Client) Natal(ctx context.Context, birth contracts.BirthData) (*contracts.NatalChart, error) {
	cacheKey := redis.NatalKey(birthHash(birth))

	if c.cache != nil {
		var cached contracts.NatalChart
		found, err := c.cache.Get(ctx, cacheKey, &cached)
		if err == nil && found {
			return &cached, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/charts/natal", c.cfg.BaseURL)
	resp, err := c.httpClient.PostJSON(ctx, endpoint, birth)
	if err != nil {
		return nil, fmt.Errorf("natal chart request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("natal chart request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var wire natalResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode natal chart: %w", err)
	}

	chart, err := wire.toChart()
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, chart, redis.TTLLong); err != nil {
			c.logger.WithError(err).Warn("Failed to cache natal chart")
		}
	}

	return chart, nil
}

// Transits computes the transit chart for the given date. Transit positions
// are chart-independent, so the cache entry is shared by every caller.
func (c *Client) Transits(ctx context.Context, date time.Time) (*contracts.TransitChart, error) {
	day := date.UTC().Format("2006-01-02")
	cacheKey := redis.TransitKey(day)

	if c.cache != nil {
		var cached contracts.TransitChart
		found, err := c.cache.Get(ctx, cacheKey, &cached)
		if err == nil && found {
			return &cached, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	params := url.Values{}
	params.Set("date", day)
	endpoint := fmt.Sprintf("%s/api/v1/charts/transits?%s", c.cfg.BaseURL, params.Encode())

	resp, err := c.httpClient.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("transit chart request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("transit chart request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var wire transitResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode transit chart: %w", err)
	}

	chart := wire.toChart()

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, chart, redis.TTLDaily); err != nil {
			c.logger.WithError(err).Warn("Failed to cache transit chart")
		}
	}

	return chart, nil
}

func (r *natalResponse) toChart() (*contracts.NatalChart, error) {
	if len(r.HouseCusps) != 12 {
		return nil, fmt.Errorf("expected 12 house cusps, got %d", len(r.HouseCusps))
	}

	chart := &contracts.NatalChart{
		Birth:     r.Birth,
		Positions: make(map[contracts.Body]contracts.Position, len(r.Positions)),
		Ascendant: r.Ascendant,
	}
	copy(chart.HouseCusps[:], r.HouseCusps)

	for _, p := range r.Positions {
		chart.Positions[p.Body] = p
	}

	return chart, nil
}

func (r *transitResponse) toChart() *contracts.TransitChart {
	chart := &contracts.TransitChart{
		Date:      r.Date,
		Positions: make(map[contracts.Body]contracts.Position, len(r.Positions)),
	}
	for _, p := range r.Positions {
		chart.Positions[p.Body] = p
	}
	return chart
}

// birthHash keys the natal cache before any chart exists. The fingerprint on
// NatalChart needs positions; this needs only the request.
func birthHash(birth contracts.BirthData) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%.4f|%.4f", birth.Datetime.UTC().Format(time.RFC3339), birth.Latitude, birth.Longitude)
	return hex.EncodeToString(h.Sum(nil))[:16]
}
