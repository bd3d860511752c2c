// Package scheduler runs periodic de-margining of stored odds.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Demarginer de-margins races with odds newer than a cutoff
type Demarginer interface {
	DemarginRecent(ctx context.Context, since time.Time) (int, error)
}

// Scheduler manages scheduled de-margining jobs
type Scheduler struct {
	cron            *cron.Cron
	demarginer      Demarginer
	logger          *logrus.Entry
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          []cron.EntryID
	gracefulTimeout time.Duration
	now             func() time.Time
}

// NewScheduler creates a new scheduler. Jobs run in UTC and an invocation is
// skipped while the previous one is still running.
func NewScheduler(demarginer Demarginer, log *logrus.Logger) *Scheduler {
	entry := log.WithField("component", "scheduler")
	cronLogger := cron.PrintfLogger(entry)

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		demarginer:      demarginer,
		logger:          entry,
		jobIDs:          make([]cron.EntryID, 0),
		gracefulTimeout: 30 * time.Second,
		now:             time.Now,
	}
}

// ScheduleDemargin schedules de-margining of races with odds inside the lookback window
func (s *Scheduler) ScheduleDemargin(cronExpression string, lookback time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}
	if lookback <= 0 {
		return fmt.Errorf("lookback must be positive, got %s", lookback)
	}

	jobFunc := func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.gracefulTimeout)
		defer cancel()

		if _, err := s.RunOnce(ctx, lookback); err != nil {
			s.logger.WithError(err).Error("Scheduled de-margining failed")
		}
	}

	entryID, err := s.cron.AddFunc(cronExpression, jobFunc)
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithFields(logrus.Fields{
		"schedule": cronExpression,
		"lookback": lookback.String(),
	}).Info("Scheduled de-margining job")

	return nil
}

// RunOnce de-margins races with odds inside the lookback window
func (s *Scheduler) RunOnce(ctx context.Context, lookback time.Duration) (int, error) {
	since := s.now().UTC().Add(-lookback)
	start := time.Now()

	count, err := s.demarginer.DemarginRecent(ctx, since)
	if err != nil {
		return count, err
	}

	s.logger.WithFields(logrus.Fields{
		"since":       since.Format(time.RFC3339),
		"races":       count,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("De-margining run completed")

	return count, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop stops the scheduler and waits for running jobs up to the graceful timeout
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.isRunning = false
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-time.After(s.gracefulTimeout):
		return fmt.Errorf("scheduler did not stop within %s", s.gracefulTimeout)
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			if nextRun.IsZero() || entry.Next.Before(nextRun) {
				nextRun = entry.Next
			}
		}
	}

	return nextRun
}

// Entries returns information about scheduled entries
func (s *Scheduler) Entries() []cron.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]cron.Entry, 0, len(s.jobIDs))
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			entries = append(entries, entry)
		}
	}

	return entries
}
