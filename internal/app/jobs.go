/**
 * @description
 * Scheduled job implementations: the overdue invoice sweep and the monthly
 * tier snapshot.
 */
package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// JobRunner is the part of Service the scheduled jobs drive.
type JobRunner interface {
	NotifyOverdueInvoices(ctx context.Context) (*OverdueResult, error)
	SnapshotTiers(ctx context.Context) (*SnapshotResult, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	runner  JobRunner
	logger  zerolog.Logger
	timeout time.Duration
}

// NewJobs creates a new Jobs runner.
func NewJobs(runner JobRunner, logger zerolog.Logger) *Jobs {
	return &Jobs{runner: runner, logger: logger, timeout: 5 * time.Minute}
}

// ProcessOverdueInvoices publishes invoice.overdue for newly overdue invoices.
func (j *Jobs) ProcessOverdueInvoices() {
	j.logger.Info().Msg("starting overdue invoice job")
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	result, err := j.runner.NotifyOverdueInvoices(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("failed to process overdue invoices")
		return
	}

	j.logger.Info().Int("notified", result.Notified).Msg("overdue invoice job finished")
}

// RecordTierSnapshots stores this month's tier for every active mandatary.
func (j *Jobs) RecordTierSnapshots() {
	j.logger.Info().Msg("starting tier snapshot job")
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	result, err := j.runner.SnapshotTiers(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("failed to record tier snapshots")
		return
	}

	event := j.logger.Info()
	if result.Failed > 0 {
		event = j.logger.Warn()
	}
	event.
		Int("year", result.Year).
		Int("month", result.Month).
		Int("written", result.Written).
		Int("failed", result.Failed).
		Msg("tier snapshot job finished")
}
