// Package jobs runs the API's housekeeping on a cron schedule.
package jobs

import (
	"context"
	"database/sql"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/jordanlanch/crmleads/pkg/logger"
	"github.com/jordanlanch/crmleads/pkg/models"
	"github.com/robfig/cron/v3"
)

// Schedules, evaluated in the assignment timezone.
const (
	PurgeSchedule        = "@every 5m"
	PoolStatsSchedule    = "@every 30s"
	DailySummarySchedule = "5 0 * * *"
)

// Purger drops expired cache entries and reports how many it removed.
type Purger interface {
	Purge() int
}

// PoolStatter exposes database pool statistics.
type PoolStatter interface {
	Stats() sql.DBStats
}

// HistoryReader aggregates assignment records.
type HistoryReader interface {
	History(ctx context.Context, filter models.HistoryFilter) (*models.AssignmentHistoryResponse, error)
}

// Recorder receives job measurements.
type Recorder interface {
	RecordCachePurge(n int)
	UpdateDBConnections(open, inUse, idle int)
}

// Deps wires the jobs. Nil members disable their job.
type Deps struct {
	Purger   Purger
	Pool     PoolStatter
	History  HistoryReader
	Recorder Recorder
	Clock    clockwork.Clock
	Location *time.Location
	Logger   logger.Logger
}

// CronManager manages scheduled jobs
type CronManager struct {
	cron *cron.Cron
	deps Deps
	log  logger.Logger
}

// NewCronManager creates a new cron manager
func NewCronManager(deps Deps) *CronManager {
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &CronManager{
		cron: cron.New(cron.WithLocation(deps.Location)),
		deps: deps,
		log:  deps.Logger.With("component", "cron"),
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	if cm.deps.Purger != nil {
		if _, err := cm.cron.AddFunc(PurgeSchedule, func() { cm.RunPurge() }); err != nil {
			return err
		}
	}
	if cm.deps.Pool != nil && cm.deps.Recorder != nil {
		if _, err := cm.cron.AddFunc(PoolStatsSchedule, func() { cm.RunPoolStats() }); err != nil {
			return err
		}
	}
	if cm.deps.History != nil {
		_, err := cm.cron.AddFunc(DailySummarySchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if _, err := cm.RunDailySummary(ctx); err != nil {
				cm.log.Error("daily assignment summary failed", "error", err)
			}
		})
		if err != nil {
			return err
		}
	}

	cm.log.Info("cron jobs configured", "jobs", len(cm.cron.Entries()))
	return nil
}

// RunPurge removes expired in-memory cache entries.
func (cm *CronManager) RunPurge() int {
	n := cm.deps.Purger.Purge()
	if cm.deps.Recorder != nil {
		cm.deps.Recorder.RecordCachePurge(n)
	}
	if n > 0 {
		cm.log.Debug("purged expired cache entries", "count", n)
	}
	return n
}

// RunPoolStats publishes the database pool gauges.
func (cm *CronManager) RunPoolStats() {
	s := cm.deps.Pool.Stats()
	cm.deps.Recorder.UpdateDBConnections(s.OpenConnections, s.InUse, s.Idle)
}

// RunDailySummary logs the assignment totals of the previous local day.
func (cm *CronManager) RunDailySummary(ctx context.Context) (*models.AssignmentStats, error) {
	now := cm.deps.Clock.Now().In(cm.deps.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, cm.deps.Location)
	from := today.AddDate(0, 0, -1)
	to := today.Add(-time.Nanosecond)

	page, err := cm.deps.History.History(ctx, models.HistoryFilter{From: &from, To: &to, Limit: 1})
	if err != nil {
		return nil, err
	}
	cm.log.Info("daily assignment summary",
		"day", from.Format(time.DateOnly),
		"total", page.Stats.Total,
		"by_status", page.Stats.ByStatus,
		"by_type", page.Stats.ByType,
	)
	return page.Stats, nil
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.log.Info("starting cron scheduler")
	cm.cron.Start()
}

// Stop stops the scheduler and waits for running jobs.
func (cm *CronManager) Stop() {
	cm.log.Info("stopping cron scheduler")
	<-cm.cron.Stop().Done()
}
