// Package scheduler runs named jobs on cron schedules for daemon mode.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// Job is one schedulable unit of work.
type Job func(ctx context.Context) error

// Scheduler manages periodic jobs.
type Scheduler struct {
	cron       *cron.Cron
	jobs       map[string]cron.EntryID
	jobTimeout time.Duration
}

// New creates a scheduler. A job is canceled if it outlives jobTimeout;
// zero means the 30 minute default.
func New(jobTimeout time.Duration) *Scheduler {
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Minute
	}
	return &Scheduler{
		cron:       cron.New(),
		jobs:       map[string]cron.EntryID{},
		jobTimeout: jobTimeout,
	}
}

// AddJob schedules job under name. The schedule accepts five-field cron
// expressions ("0 3 * * *") and descriptors ("@hourly", "@every 10m").
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()

		start := time.Now()
		slog.Info("scheduler job started", "job", name)
		if err := job(ctx); err != nil {
			slog.Error("scheduler job failed", "job", name, "error", err)
			return
		}
		slog.Info("scheduler job completed", "job", name, "duration", time.Since(start).String())
	})
	if err != nil {
		return errors.Wrapf(err, "failed to schedule job %q with %q", name, schedule)
	}
	s.jobs[name] = entryID
	slog.Info("scheduler job added", "job", name, "schedule", schedule)
	return nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling. The returned context is done once jobs already
// running have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Entries returns the next run time of each scheduled job.
func (s *Scheduler) Entries() map[string]time.Time {
	next := map[string]time.Time{}
	entries := s.cron.Entries()
	for name, id := range s.jobs {
		for _, entry := range entries {
			if entry.ID == id {
				next[name] = entry.Next
				break
			}
		}
	}
	return next
}
