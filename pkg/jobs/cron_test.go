package jobs

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/jordanlanch/crmleads/pkg/cache"
	"github.com/jordanlanch/crmleads/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorderSpy struct {
	purged            int
	open, inUse, idle int
}

func (r *recorderSpy) RecordCachePurge(n int) { r.purged += n }

func (r *recorderSpy) UpdateDBConnections(open, inUse, idle int) {
	r.open, r.inUse, r.idle = open, inUse, idle
}

type poolStub sql.DBStats

func (p poolStub) Stats() sql.DBStats { return sql.DBStats(p) }

type historyStub struct {
	filter models.HistoryFilter
	err    error
}

func (h *historyStub) History(_ context.Context, f models.HistoryFilter) (*models.AssignmentHistoryResponse, error) {
	h.filter = f
	if h.err != nil {
		return nil, h.err
	}
	return &models.AssignmentHistoryResponse{Stats: &models.AssignmentStats{
		Total:    3,
		ByStatus: map[models.AssignmentStatus]int{models.AssignmentActive: 3},
	}}, nil
}

func TestSetupJobs(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Now())
	cm := NewCronManager(Deps{
		Purger:   cache.NewMemoryStore(clk),
		Pool:     poolStub{},
		History:  &historyStub{},
		Recorder: &recorderSpy{},
	})
	require.NoError(t, cm.SetupJobs())
	assert.Len(t, cm.cron.Entries(), 3)

	cm.Start()
	cm.Stop()
}

func TestSetupJobs_SkipsMissingDeps(t *testing.T) {
	cm := NewCronManager(Deps{Pool: poolStub{}})
	require.NoError(t, cm.SetupJobs())
	assert.Empty(t, cm.cron.Entries(), "pool stats need a recorder")
}

func TestRunPurge(t *testing.T) {
	ctx := context.Background()
	clk := clockwork.NewFakeClockAt(time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC))
	store := cache.NewMemoryStore(clk)
	require.NoError(t, store.Put(ctx, "a", "1", time.Minute))
	require.NoError(t, store.Put(ctx, "b", "2", time.Hour))

	spy := &recorderSpy{}
	cm := NewCronManager(Deps{Purger: store, Recorder: spy})

	clk.Advance(2 * time.Minute)
	assert.Equal(t, 1, cm.RunPurge())
	assert.Equal(t, 1, spy.purged)
	assert.Equal(t, 1, store.Len())
}

func TestRunPoolStats(t *testing.T) {
	spy := &recorderSpy{}
	cm := NewCronManager(Deps{
		Pool:     poolStub{OpenConnections: 7, InUse: 4, Idle: 3},
		Recorder: spy,
	})
	cm.RunPoolStats()
	assert.Equal(t, [3]int{7, 4, 3}, [3]int{spy.open, spy.inUse, spy.idle})
}

func TestRunDailySummary_PreviousLocalDay(t *testing.T) {
	loc := time.FixedZone("EST", -5*60*60)

	// 03:00 UTC on the 13th is still the 12th at UTC-5.
	clk := clockwork.NewFakeClockAt(time.Date(2025, 3, 13, 3, 0, 0, 0, time.UTC))
	hist := &historyStub{}
	cm := NewCronManager(Deps{History: hist, Clock: clk, Location: loc})

	stats, err := cm.RunDailySummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)

	require.NotNil(t, hist.filter.From)
	require.NotNil(t, hist.filter.To)
	assert.True(t, hist.filter.From.Equal(time.Date(2025, 3, 11, 0, 0, 0, 0, loc)))
	assert.True(t, hist.filter.To.Before(time.Date(2025, 3, 12, 0, 0, 0, 0, loc)))
	assert.True(t, hist.filter.To.After(time.Date(2025, 3, 11, 23, 59, 59, 0, loc)))
}

func TestRunDailySummary_Error(t *testing.T) {
	cm := NewCronManager(Deps{History: &historyStub{err: errors.New("db down")}})
	_, err := cm.RunDailySummary(context.Background())
	assert.Error(t, err)
}
