package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pollhub/pkg/config"
	"pollhub/pkg/data"
	"pollhub/pkg/event"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *capturePublisher) Publish(_ context.Context, ev event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *capturePublisher) captured() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Event(nil), c.events...)
}

var sweepNow = time.Unix(1_700_000_000, 0)

func newSweepFixture(t *testing.T, afterDays int) (*Scheduler, *data.MemoryRepository, *capturePublisher) {
	t.Helper()
	repo := data.NewMemoryRepository()
	events := &capturePublisher{}
	cfg := &config.MaintConfig{
		AutoArchiveAfterDays: afterDays,
		SweepSchedule:        "0 0 3 * * *",
	}
	sched := NewScheduler(repo, events, cfg, zaptest.NewLogger(t), func() time.Time { return sweepNow })
	return sched, repo, events
}

func seedPoll(t *testing.T, repo *data.MemoryRepository, id string, expire, deleted int64) {
	t.Helper()
	poll, err := data.NewPoll(data.PollTypeDate, "Poll "+id, "alice", sweepNow)
	require.NoError(t, err)
	poll.ID = id
	poll.Expire = expire
	poll.Deleted = deleted
	require.NoError(t, repo.InsertPoll(context.Background(), poll))
}

func TestArchiveSweep(t *testing.T) {
	ctx := context.Background()
	day := int64(24 * 60 * 60)

	t.Run("ArchivesPollsPastRetention", func(t *testing.T) {
		sched, repo, events := newSweepFixture(t, 30)

		seedPoll(t, repo, "stale", sweepNow.Unix()-31*day, 0)
		seedPoll(t, repo, "recent", sweepNow.Unix()-10*day, 0)
		seedPoll(t, repo, "open-ended", 0, 0)

		require.NoError(t, sched.ArchiveSweep(ctx))

		stale, err := repo.FindPoll(ctx, "stale")
		require.NoError(t, err)
		assert.Equal(t, sweepNow.Unix(), stale.Deleted)

		recent, err := repo.FindPoll(ctx, "recent")
		require.NoError(t, err)
		assert.Zero(t, recent.Deleted)

		open, err := repo.FindPoll(ctx, "open-ended")
		require.NoError(t, err)
		assert.Zero(t, open.Deleted)

		captured := events.captured()
		require.Len(t, captured, 1)
		assert.Equal(t, event.PollArchived, captured[0].Type)
		assert.Equal(t, "stale", captured[0].Poll.ID)
	})

	t.Run("CutoffIsExact", func(t *testing.T) {
		sched, repo, _ := newSweepFixture(t, 30)
		cutoff := sweepNow.Unix() - 30*day

		seedPoll(t, repo, "at-cutoff", cutoff, 0)
		seedPoll(t, repo, "just-inside", cutoff+1, 0)

		require.NoError(t, sched.ArchiveSweep(ctx))

		atCutoff, err := repo.FindPoll(ctx, "at-cutoff")
		require.NoError(t, err)
		assert.NotZero(t, atCutoff.Deleted)

		inside, err := repo.FindPoll(ctx, "just-inside")
		require.NoError(t, err)
		assert.Zero(t, inside.Deleted)
	})

	t.Run("SkipsAlreadyArchived", func(t *testing.T) {
		sched, repo, events := newSweepFixture(t, 30)
		archivedAt := sweepNow.Unix() - day

		seedPoll(t, repo, "done", sweepNow.Unix()-60*day, archivedAt)

		require.NoError(t, sched.ArchiveSweep(ctx))

		done, err := repo.FindPoll(ctx, "done")
		require.NoError(t, err)
		assert.Equal(t, archivedAt, done.Deleted, "archive time must not be overwritten")
		assert.Empty(t, events.captured())
	})

	t.Run("RecordsMetrics", func(t *testing.T) {
		sched, repo, _ := newSweepFixture(t, 30)
		seedPoll(t, repo, "old-1", sweepNow.Unix()-40*day, 0)
		seedPoll(t, repo, "old-2", sweepNow.Unix()-50*day, 0)

		require.NoError(t, sched.ArchiveSweep(ctx))
		require.NoError(t, sched.ArchiveSweep(ctx))

		metrics := sched.GetMetrics()
		assert.Equal(t, int64(2), metrics.SweepsRun)
		assert.Equal(t, int64(2), metrics.PollsArchived)
		assert.Zero(t, metrics.SweepFailures)
		assert.Equal(t, sweepNow, metrics.LastSweep)
	})
}

func TestSchedulerLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("StartTwiceFails", func(t *testing.T) {
		sched, _, _ := newSweepFixture(t, 30)
		require.NoError(t, sched.Start(ctx))
		defer sched.Stop()

		assert.Error(t, sched.Start(ctx))
	})

	t.Run("StopIsIdempotent", func(t *testing.T) {
		sched, _, _ := newSweepFixture(t, 0)
		require.NoError(t, sched.Start(ctx))
		sched.Stop()
		sched.Stop()
	})

	t.Run("InvalidScheduleRejected", func(t *testing.T) {
		sched, _, _ := newSweepFixture(t, 30)
		sched.config.SweepSchedule = "not a schedule"
		assert.Error(t, sched.Start(ctx))
	})
}
