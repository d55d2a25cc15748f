package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebursztein/arca-backend/internal/astro"
	"github.com/ebursztein/arca-backend/internal/calibration"
	"github.com/ebursztein/arca-backend/internal/contracts"
	"github.com/ebursztein/arca-backend/internal/meters"
	"github.com/ebursztein/arca-backend/internal/normalize"
	"github.com/ebursztein/arca-backend/internal/observability"
	"github.com/ebursztein/arca-backend/internal/scoring"
	"github.com/ebursztein/arca-backend/pkg/logger"
)

func testPipeline(t *testing.T) *calibration.Pipeline {
	t.Helper()

	return calibration.NewPipeline(
		&chartSource{},
		meters.Default(),
		astro.NewFinder(astro.DefaultFinderConfig()),
		scoring.DefaultWeights(),
		meters.DefaultAggregatorConfig(),
		normalize.DefaultConfig(),
		normalize.NewCombiner(normalize.DefaultCombinerConfig(), normalize.DefaultAsymmetry()),
		observability.NewForTesting(),
		clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
		logger.NewNop(),
	)
}

func testCalibrationConfigs() (calibration.PopulationConfig, calibration.Config) {
	popCfg := calibration.PopulationConfig{
		Size:         6,
		Seed:         3,
		BirthYearMin: 1970,
		BirthYearMax: 1995,
		LatitudeMin:  -50,
		LatitudeMax:  50,
	}
	runCfg := calibration.Config{
		Workers: 2,
		Anchors: 2,
		Stride:  9,
		Start:   time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC),
	}
	return popCfg, runCfg
}

func newTestCalibrationHandler(t *testing.T, table *contracts.CalibrationTable) (*CalibrationHandler, string) {
	t.Helper()

	popCfg, runCfg := testCalibrationConfigs()
	artifactPath := filepath.Join(t.TempDir(), "calibration.json")

	h := NewCalibrationHandler(
		testPipeline(t),
		popCfg,
		runCfg,
		artifactPath,
		nil,
		normalize.New(table, scoring.DefaultWeights(), normalize.DefaultConfig()),
		90*24*time.Hour,
		clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
		logger.NewNop(),
	)
	return h, artifactPath
}

func TestCalibrationStatusUncalibrated(t *testing.T) {
	h, _ := newTestCalibrationHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/calibration", nil)
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, false, resp["calibrated"])
	assert.Equal(t, "uncalibrated", resp["version"])
	assert.Equal(t, false, resp["running"])
}

func TestCalibrationStatusCalibrated(t *testing.T) {
	popCfg, runCfg := testCalibrationConfigs()
	table, err := testPipeline(t).Run(context.Background(), popCfg, runCfg, nil)
	require.NoError(t, err)

	h, _ := newTestCalibrationHandler(t, table)

	req := httptest.NewRequest(http.MethodGet, "/api/calibration", nil)
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, true, resp["calibrated"])
	assert.Equal(t, table.Version, resp["version"])
	assert.Equal(t, 0.0, resp["age_days"])
	assert.Equal(t, false, resp["stale"])
	assert.NotNil(t, resp["provenance"])
}

func TestCalibrationRunPersistsArtifact(t *testing.T) {
	h, artifactPath := newTestCalibrationHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/calibration/run", nil)
	rec := httptest.NewRecorder()
	h.Run(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		_, err := calibration.Load(artifactPath)
		return err == nil
	}, 15*time.Second, 50*time.Millisecond, "artifact never appeared")

	table, err := calibration.Load(artifactPath)
	require.NoError(t, err)
	_, err = uuid.Parse(table.Version)
	assert.NoError(t, err)
	assert.NoError(t, table.VerifyChecksum())
}

func TestCalibrationRunConflict(t *testing.T) {
	h, _ := newTestCalibrationHandler(t, nil)

	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	req := httptest.NewRequest(http.MethodPost, "/api/calibration/run", nil)
	rec := httptest.NewRecorder()
	h.Run(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCalibrationProgressStreams(t *testing.T) {
	h, artifactPath := newTestCalibrationHandler(t, nil)

	server := httptest.NewServer(http.HandlerFunc(h.Progress))
	defer server.Close()

	wsURL := strings.Replace(server.URL, "http", "ws", 1)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The subscription registers inside the handler goroutine; wait for it
	// before starting the run so the first events are not missed.
	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.subs) > 0
	}, 5*time.Second, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	h.Run(rec, httptest.NewRequest(http.MethodPost, "/api/calibration/run", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	stages := make(map[string]bool)
	deadline := time.Now().Add(15 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))

		var ev calibration.Progress
		require.NoError(t, conn.ReadJSON(&ev))
		stages[ev.Stage] = true

		if ev.Stage == "reduce" && ev.Done == 1 {
			break
		}
	}

	assert.True(t, stages["transits"])
	assert.True(t, stages["scoring"])
	assert.True(t, stages["reduce"])

	require.Eventually(t, func() bool {
		_, err := calibration.Load(artifactPath)
		return err == nil
	}, 15*time.Second, 50*time.Millisecond)
}
