package task

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	logEventViewStateSweepFailed = "view_state_sweep_failed"
	logEventViewStateSweepDone   = "view_state_sweep_completed"
)

// ErrInvalidIdleTTL reports a non-positive idle lifetime.
var ErrInvalidIdleTTL = errors.New("task: view state idle ttl must be positive")

// IdleViewStateDeleter removes view states idle since before a cutoff.
type IdleViewStateDeleter interface {
	DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ViewStateSweepJob discards panel view states nobody touched within the idle TTL.
type ViewStateSweepJob struct {
	deleter IdleViewStateDeleter
	logger  *zap.Logger
	idleTTL time.Duration
	now     func() time.Time
}

// NewViewStateSweepJob builds a ViewStateSweepJob.
func NewViewStateSweepJob(deleter IdleViewStateDeleter, logger *zap.Logger, idleTTL time.Duration) (*ViewStateSweepJob, error) {
	if idleTTL <= 0 {
		return nil, ErrInvalidIdleTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewStateSweepJob{
		deleter: deleter,
		logger:  logger,
		idleTTL: idleTTL,
		now:     time.Now,
	}, nil
}

// Run deletes idle view states and returns how many were removed.
func (job *ViewStateSweepJob) Run(ctx context.Context) (int64, error) {
	cutoff := job.now().UTC().Add(-job.idleTTL)
	return job.deleter.DeleteIdleBefore(ctx, cutoff)
}

// Runner adapts the job for a Scheduler, logging the outcome of each sweep.
func (job *ViewStateSweepJob) Runner() RunnerFunc {
	return func(ctx context.Context) {
		removed, sweepErr := job.Run(ctx)
		if sweepErr != nil {
			if errors.Is(sweepErr, context.Canceled) {
				return
			}
			job.logger.Warn(logEventViewStateSweepFailed, zap.Error(sweepErr))
			return
		}
		if removed > 0 {
			job.logger.Info(logEventViewStateSweepDone, zap.Int64("removed", removed))
		}
	}
}
