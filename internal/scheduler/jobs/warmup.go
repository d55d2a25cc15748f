package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ebursztein/arca-backend/internal/contracts"
	"github.com/ebursztein/arca-backend/pkg/logger"
)

// ChartWarmupJob pre-fetches transit charts around the current date so the
// first readings after midnight are served from cache. Transit charts are
// shared across every user, which makes this the one chart worth warming.
type ChartWarmupJob struct {
	source contracts.ChartSource
	ahead  int
	clock  clockwork.Clock
	logger *logger.Logger
}

// NewChartWarmupJob creates a new warmup job. ahead is how many days past
// today to fetch; values below 1 fall back to 2.
func NewChartWarmupJob(source contracts.ChartSource, ahead int, clock clockwork.Clock, log *logger.Logger) *ChartWarmupJob {
	if ahead < 1 {
		ahead = 2
	}
	return &ChartWarmupJob{
		source: source,
		ahead:  ahead,
		clock:  clock,
		logger: log,
	}
}

// Name returns the job name.
func (j *ChartWarmupJob) Name() string {
	return "chart_warmup"
}

// Schedule returns the cron schedule (00:05 UTC daily, just after the date
// rolls over).
func (j *ChartWarmupJob) Schedule() string {
	return "0 5 0 * * *"
}

// Run fetches transit charts from yesterday through today+ahead. Yesterday
// is included because trend classification re-scores the prior day and its
// cache entry expires after 24 hours.
func (j *ChartWarmupJob) Run(ctx context.Context) error {
	today := j.clock.Now().UTC().Truncate(24 * time.Hour)

	fetched := 0
	for offset := -1; offset <= j.ahead; offset++ {
		date := today.AddDate(0, 0, offset)
		if _, err := j.source.Transits(ctx, date); err != nil {
			return fmt.Errorf("warm transit chart for %s: %w", date.Format("2006-01-02"), err)
		}
		fetched++
	}

	j.logger.WithField("charts", fetched).Info("Transit charts warmed")
	return nil
}
