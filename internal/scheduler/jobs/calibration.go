package jobs

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ebursztein/arca-backend/internal/calibration"
	"github.com/ebursztein/arca-backend/internal/contracts"
	"github.com/ebursztein/arca-backend/internal/observability"
	"github.com/ebursztein/arca-backend/pkg/logger"
)

// StalenessJob checks the age of the serving calibration table once a day
// and surfaces it through the calibration gauges. Staleness is advisory:
// old tables keep serving, this job only makes the age visible.
type StalenessJob struct {
	table   *contracts.CalibrationTable
	repo    *calibration.Repository
	maxAge  time.Duration
	metrics *observability.Metrics
	clock   clockwork.Clock
	logger  *logger.Logger
}

// NewStalenessJob creates a new staleness check job. table is the table
// loaded at startup and may be nil when serving uncalibrated. repo may be
// nil when the service runs without a database.
func NewStalenessJob(table *contracts.CalibrationTable, repo *calibration.Repository, maxAge time.Duration, metrics *observability.Metrics, clock clockwork.Clock, log *logger.Logger) *StalenessJob {
	return &StalenessJob{
		table:   table,
		repo:    repo,
		maxAge:  maxAge,
		metrics: metrics,
		clock:   clock,
		logger:  log,
	}
}

// Name returns the job name.
func (j *StalenessJob) Name() string {
	return "calibration_staleness"
}

// Schedule returns the cron schedule (06:15 UTC daily).
func (j *StalenessJob) Schedule() string {
	return "0 15 6 * * *"
}

// Run checks the serving table's age. It never returns an error: a stale
// or missing table degrades reading quality but must not trip the
// scheduler's retry and alerting path.
func (j *StalenessJob) Run(ctx context.Context) error {
	if j.table == nil {
		j.metrics.CalibrationStale.Set(1)
		j.logger.Warn("No calibration table loaded, readings are served uncalibrated")
		return nil
	}

	age := j.clock.Now().UTC().Sub(j.table.CreatedAt)
	ageDays := age.Hours() / 24
	j.metrics.CalibrationAgeDays.Set(ageDays)

	if age > j.maxAge {
		j.metrics.CalibrationStale.Set(1)
		j.logger.WithFields(map[string]interface{}{
			"version":  j.table.Version,
			"age_days": int(ageDays),
			"max_age":  j.maxAge.String(),
		}).Warn("Calibration table is stale, schedule a recalibration")
	} else {
		j.metrics.CalibrationStale.Set(0)
		j.logger.WithFields(map[string]interface{}{
			"version":  j.table.Version,
			"age_days": int(ageDays),
		}).Debug("Calibration table within freshness window")
	}

	// The serving table is fixed at startup, so a run completed since then
	// only takes effect after a restart. Point that out when it happens.
	if j.repo != nil {
		active, err := j.repo.GetActive(ctx)
		if err != nil {
			j.logger.WithError(err).Warn("Could not check database for a newer calibration")
			return nil
		}
		if active != nil && active.Version != j.table.Version {
			j.logger.WithFields(map[string]interface{}{
				"serving": j.table.Version,
				"active":  active.Version,
			}).Info("A newer calibration is active in the database, restart to serve it")
		}
	}

	return nil
}
