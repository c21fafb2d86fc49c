package task

import (
	"context"
	"sync"
	"time"
)

const defaultSchedulerInterval = time.Minute

// RunnerFunc is one unit of periodic work.
type RunnerFunc func(context.Context)

// Scheduler runs a RunnerFunc every interval and whenever Trigger is called.
// Runs never overlap.
type Scheduler struct {
	interval time.Duration
	runner   RunnerFunc
	trigger  chan struct{}

	mutex   sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewScheduler builds a Scheduler. Non-positive intervals fall back to one minute.
func NewScheduler(interval time.Duration, runner RunnerFunc) *Scheduler {
	if interval <= 0 {
		interval = defaultSchedulerInterval
	}
	return &Scheduler{
		interval: interval,
		runner:   runner,
		trigger:  make(chan struct{}, 1),
	}
}

// Start launches the loop. Calling Start on a running scheduler is a no-op.
func (scheduler *Scheduler) Start(ctx context.Context) {
	if scheduler == nil || scheduler.runner == nil {
		return
	}
	scheduler.mutex.Lock()
	defer scheduler.mutex.Unlock()
	if scheduler.cancel != nil {
		return
	}
	loopContext, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	scheduler.cancel = cancel
	scheduler.stopped = stopped
	go scheduler.loop(loopContext, stopped)
}

// Trigger requests an immediate run. Requests made while one is pending are coalesced.
func (scheduler *Scheduler) Trigger() {
	if scheduler == nil {
		return
	}
	select {
	case scheduler.trigger <- struct{}{}:
	default:
	}
}

// Stop cancels the loop and waits for an in-flight run to return.
func (scheduler *Scheduler) Stop() {
	if scheduler == nil {
		return
	}
	scheduler.mutex.Lock()
	cancel, stopped := scheduler.cancel, scheduler.stopped
	scheduler.cancel, scheduler.stopped = nil, nil
	scheduler.mutex.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

// Running reports whether the loop is active.
func (scheduler *Scheduler) Running() bool {
	if scheduler == nil {
		return false
	}
	scheduler.mutex.Lock()
	defer scheduler.mutex.Unlock()
	return scheduler.cancel != nil
}

func (scheduler *Scheduler) loop(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(scheduler.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-scheduler.trigger:
			scheduler.runner(ctx)
			ticker.Reset(scheduler.interval)
		case <-ticker.C:
			scheduler.runner(ctx)
		}
	}
}
