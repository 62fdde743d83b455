// Package scheduler runs periodic maintenance over the poll store.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"pollhub/pkg/config"
	"pollhub/pkg/data"
	"pollhub/pkg/event"
)

// Scheduler owns the cron runner and its jobs.
type Scheduler struct {
	cron    *cron.Cron
	repo    data.Repository
	events  event.Publisher
	config  *config.MaintConfig
	logger  *zap.Logger
	now     func() time.Time
	metrics *Metrics
	mu      sync.RWMutex
	running bool
}

// Metrics tracks sweep outcomes
type Metrics struct {
	SweepsRun     int64
	PollsArchived int64
	SweepFailures int64
	LastSweep     time.Time
	mu            sync.RWMutex
}

// NewScheduler creates a scheduler instance
func NewScheduler(repo data.Repository, events event.Publisher, cfg *config.MaintConfig,
	logger *zap.Logger, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		repo:    repo,
		events:  events,
		config:  cfg,
		logger:  logger,
		now:     now,
		metrics: &Metrics{},
	}
}

// Start registers the configured jobs and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if s.config.AutoArchiveAfterDays > 0 {
		_, err := s.cron.AddFunc(s.config.SweepSchedule, func() {
			if err := s.ArchiveSweep(ctx); err != nil {
				s.logger.Error("auto-archive sweep failed", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("scheduling archive sweep: %w", err)
		}
		s.logger.Info("auto-archive sweep scheduled",
			zap.String("schedule", s.config.SweepSchedule),
			zap.Int("afterDays", s.config.AutoArchiveAfterDays))
	}

	s.cron.Start()
	s.running = true
	return nil
}

// Stop halts the cron runner and waits for running jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
}

// ArchiveSweep archives every active poll whose close time lies further in
// the past than the configured retention window.
func (s *Scheduler) ArchiveSweep(ctx context.Context) error {
	now := s.now()
	cutoff := now.Add(-time.Duration(s.config.AutoArchiveAfterDays) * 24 * time.Hour).Unix()

	polls, err := s.repo.ListAllPolls(ctx)
	if err != nil {
		s.recordSweep(0, err)
		return fmt.Errorf("listing polls: %w", err)
	}

	archived := int64(0)
	for _, poll := range polls {
		if poll.Deleted != 0 || poll.Expire == 0 || poll.Expire > cutoff {
			continue
		}

		poll.Deleted = now.Unix()
		if err := s.repo.UpdatePoll(ctx, poll); err != nil {
			s.logger.Warn("archiving expired poll failed",
				zap.String("pollId", poll.ID),
				zap.Error(err))
			continue
		}
		archived++

		ev := event.Event{
			Type:      event.PollArchived,
			Poll:      poll,
			Timestamp: now,
		}
		if err := s.events.Publish(ctx, ev); err != nil {
			s.logger.Warn("publishing archive event failed",
				zap.String("pollId", poll.ID),
				zap.Error(err))
		}
	}

	s.recordSweep(archived, nil)
	if archived > 0 {
		s.logger.Info("auto-archive sweep complete", zap.Int64("archived", archived))
	}
	return nil
}

func (s *Scheduler) recordSweep(archived int64, err error) {
	s.metrics.mu.Lock()
	defer s.metrics.mu.Unlock()

	s.metrics.SweepsRun++
	s.metrics.PollsArchived += archived
	if err != nil {
		s.metrics.SweepFailures++
	}
	s.metrics.LastSweep = s.now()
}

// GetMetrics returns a snapshot of the sweep metrics.
func (s *Scheduler) GetMetrics() Metrics {
	s.metrics.mu.RLock()
	defer s.metrics.mu.RUnlock()

	return Metrics{
		SweepsRun:     s.metrics.SweepsRun,
		PollsArchived: s.metrics.PollsArchived,
		SweepFailures: s.metrics.SweepFailures,
		LastSweep:     s.metrics.LastSweep,
	}
}
