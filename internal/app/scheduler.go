/**
 * @description
 * Cron scheduler setup for scheduled jobs.
 */
package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/temi-crm/commission-service/internal/logging"
)

// Schedules are cron expressions for each job. An empty expression disables the job.
type Schedules struct {
	OverdueInvoices string
	TierSnapshots   string
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron      *cron.Cron
	jobs      *Jobs
	logger    zerolog.Logger
	schedules Schedules
	loc       *time.Location
}

// NewScheduler creates a scheduler running in the business timezone.
func NewScheduler(jobs *Jobs, schedules Schedules, loc *time.Location, logger zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cronLogger := cron.PrintfLogger(logging.PrintfAdapter{Logger: logger})
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		cron:      c,
		jobs:      jobs,
		logger:    logger,
		schedules: schedules,
		loc:       loc,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	s.register("overdue invoice", s.schedules.OverdueInvoices, s.jobs.ProcessOverdueInvoices)
	s.register("tier snapshot", s.schedules.TierSnapshots, s.jobs.RecordTierSnapshots)
	s.cron.Start()
}

func (s *Scheduler) register(name, spec string, job func()) {
	if spec == "" {
		s.logger.Info().Str("job", name).Msg("job disabled")
		return
	}
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		s.logger.Error().Err(err).Str("job", name).Str("schedule", spec).Msg("failed to schedule job")
		return
	}
	s.logger.Info().Str("job", name).Str("schedule", spec).Str("timezone", s.loc.String()).Msg("scheduled job")
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
