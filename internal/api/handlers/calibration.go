package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/ebursztein/arca-backend/internal/calibration"
	"github.com/ebursztein/arca-backend/internal/normalize"
	"github.com/ebursztein/arca-backend/pkg/logger"
)

const (
	progressPingInterval = 30 * time.Second
	progressWriteWait    = 10 * time.Second
)

// CalibrationHandler serves calibration status and drives API-triggered
// calibration runs. At most one run is in flight per process; progress
// events fan out to every connected websocket.
type CalibrationHandler struct {
	pipeline     *calibration.Pipeline
	popCfg       calibration.PopulationConfig
	runCfg       calibration.Config
	artifactPath string
	repo         *calibration.Repository // nil without a database
	normalizer   *normalize.Normalizer
	maxAge       time.Duration
	clock        clockwork.Clock
	logger       *logger.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	running bool
	subs    map[chan calibration.Progress]struct{}
}

// NewCalibrationHandler creates a new calibration handler
func NewCalibrationHandler(
	pipeline *calibration.Pipeline,
	popCfg calibration.PopulationConfig,
	runCfg calibration.Config,
	artifactPath string,
	repo *calibration.Repository,
	normalizer *normalize.Normalizer,
	maxAge time.Duration,
	clock clockwork.Clock,
	log *logger.Logger,
) *CalibrationHandler {
	return &CalibrationHandler{
		pipeline:     pipeline,
		popCfg:       popCfg,
		runCfg:       runCfg,
		artifactPath: artifactPath,
		repo:         repo,
		normalizer:   normalizer,
		maxAge:       maxAge,
		clock:        clock,
		logger:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin enforcement is the fronting proxy's job
			CheckOrigin: func(*http.Request) bool { return true },
		},
		subs: make(map[chan calibration.Progress]struct{}),
	}
}

// Status reports the serving table's version, age and provenance
// GET /api/calibration
func (h *CalibrationHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	running := h.running
	h.mu.Unlock()

	table := h.normalizer.Table()
	if table == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"calibrated": false,
			"version":    "uncalibrated",
			"running":    running,
		})
		return
	}

	age := table.Age(h.clock.Now().UTC())
	resp := map[string]interface{}{
		"calibrated": true,
		"version":    table.Version,
		"created_at": table.CreatedAt,
		"age_days":   int(age.Hours() / 24),
		"stale":      age > h.maxAge,
		"provenance": table.Provenance,
		"running":    running,
	}

	if h.repo != nil {
		if history, err := h.repo.History(r.Context(), 10); err == nil {
			resp["history"] = history
		} else {
			h.logger.WithError(err).Warn("Failed to load calibration history")
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// Run starts a calibration run in the background
// POST /api/calibration/run
func (h *CalibrationHandler) Run(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		respondError(w, http.StatusConflict, "Calibration run already in progress")
		return
	}
	h.running = true
	h.mu.Unlock()

	// Detached from the request context: the run outlives this exchange
	events := make(chan calibration.Progress, 64)
	go h.fanOut(events)
	go h.execute(events)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
	})
}

// Progress streams pipeline progress events over a websocket
// GET /api/calibration/progress
func (h *CalibrationHandler) Progress(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := make(chan calibration.Progress, 64)
	h.addSub(sub)
	defer h.removeSub(sub)

	// Reader drains control frames and signals client close
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(progressPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev := <-sub:
			conn.SetWriteDeadline(time.Now().Add(progressWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(progressWriteWait)); err != nil {
				return
			}
		}
	}
}

// execute runs the pipeline and persists the result.
func (h *CalibrationHandler) execute(events chan<- calibration.Progress) {
	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	table, err := h.pipeline.Run(context.Background(), h.popCfg, h.runCfg, events)
	if err != nil {
		h.logger.WithError(err).Error("Calibration run failed")
		return
	}

	if err := calibration.Save(h.artifactPath, table); err != nil {
		h.logger.WithError(err).Error("Failed to save calibration artifact")
		return
	}

	if h.repo != nil {
		ctx := context.Background()
		if err := h.repo.SaveRun(ctx, table); err != nil {
			h.logger.WithError(err).Error("Failed to persist calibration run")
		} else if err := h.repo.Activate(ctx, table.Version); err != nil {
			h.logger.WithError(err).Error("Failed to activate calibration run")
		}
	}

	// The serving table is immutable once loaded; the new version is
	// picked up on the next process start.
	h.logger.WithFields(map[string]interface{}{
		"version": table.Version,
		"path":    h.artifactPath,
	}).Info("Calibration run completed, restart to serve the new table")
}

// fanOut relays pipeline events to every subscriber until the run closes
// the channel.
func (h *CalibrationHandler) fanOut(events <-chan calibration.Progress) {
	for ev := range events {
		h.mu.Lock()
		for sub := range h.subs {
			select {
			case sub <- ev:
			default: // slow subscriber drops updates
			}
		}
		h.mu.Unlock()
	}
}

func (h *CalibrationHandler) addSub(sub chan calibration.Progress) {
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
}

func (h *CalibrationHandler) removeSub(sub chan calibration.Progress) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}
