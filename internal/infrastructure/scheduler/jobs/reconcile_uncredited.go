// Package jobs contains implementations of scheduled jobs for the learning hub.
package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/oqu-hub/oqu-learning-hub/internal/application/command"
	"github.com/oqu-hub/oqu-learning-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE UNCREDITED JOB
// Фоновая сверка: завершения с credited_xp=false - это следы частичных
// сбоев (запись о завершении долговременна, downstream-начисления нет).
// Каждый шаг начисления идемпотентен, поэтому джоба просто прогоняет их
// заново до успеха.
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileUncreditedJob credits completions that were left half-applied.
type ReconcileUncreditedJob struct {
	handler *command.ReconcileCompletionsHandler
	logger  *slog.Logger
	retrier *retry.Retrier

	// Configuration
	gracePeriod time.Duration
	batchSize   int
	timeout     time.Duration

	// State
	lastResult atomic.Value // *command.ReconcileCompletionsResult
}

// ReconcileUncreditedConfig contains configuration for the job.
type ReconcileUncreditedConfig struct {
	// GracePeriod is the minimum record age before reconciliation picks it up.
	GracePeriod time.Duration

	// BatchSize is the maximum number of records per run.
	BatchSize int

	// Timeout bounds a single run.
	Timeout time.Duration
}

// DefaultReconcileUncreditedConfig returns sensible defaults.
func DefaultReconcileUncreditedConfig() ReconcileUncreditedConfig {
	return ReconcileUncreditedConfig{
		GracePeriod: 5 * time.Minute,
		BatchSize:   100,
		Timeout:     2 * time.Minute,
	}
}

// NewReconcileUncreditedJob creates the job.
func NewReconcileUncreditedJob(handler *command.ReconcileCompletionsHandler, logger *slog.Logger, config ReconcileUncreditedConfig) *ReconcileUncreditedJob {
	if config.GracePeriod <= 0 {
		config = DefaultReconcileUncreditedConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileUncreditedJob{
		handler:     handler,
		logger:      logger,
		retrier:     retry.CreditRetrier(),
		gracePeriod: config.GracePeriod,
		batchSize:   config.BatchSize,
		timeout:     config.Timeout,
	}
}

// Name implements scheduler.Job.
func (j *ReconcileUncreditedJob) Name() string {
	return "reconcile_uncredited"
}

// Description implements scheduler.Job.
func (j *ReconcileUncreditedJob) Description() string {
	return "Credits XP, streaks and badges for completions left partially applied"
}

// Run implements scheduler.Job.
func (j *ReconcileUncreditedJob) Run(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	var result *command.ReconcileCompletionsResult
	err := j.retrier.Do(runCtx, func(ctx context.Context) error {
		var runErr error
		result, runErr = j.handler.Handle(ctx, command.ReconcileCompletionsCommand{
			GracePeriod: j.gracePeriod,
			BatchSize:   j.batchSize,
		})
		return runErr
	})
	if err != nil {
		return err
	}

	j.lastResult.Store(result)
	if result.Scanned > 0 {
		j.logger.Info("reconciliation pass finished",
			"scanned", result.Scanned,
			"credited", result.Credited,
			"failed", result.Failed,
		)
	}
	return nil
}

// LastResult returns the result of the most recent run, or nil.
func (j *ReconcileUncreditedJob) LastResult() *command.ReconcileCompletionsResult {
	result, _ := j.lastResult.Load().(*command.ReconcileCompletionsResult)
	return result
}
