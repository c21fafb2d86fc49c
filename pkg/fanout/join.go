// Package fanout runs independent tasks in parallel and joins them with
// partial-failure tolerance: one failing task never cancels its siblings.
package fanout

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task is one independent unit of work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Result reports the failed tasks of a join by name.
type Result struct {
	Errors map[string]error
}

// Failed reports whether the named task returned an error or panicked.
func (result Result) Failed(name string) bool {
	_, failed := result.Errors[name]
	return failed
}

// Join runs every task concurrently and waits for all of them.
func Join(ctx context.Context, tasks ...Task) Result {
	var group errgroup.Group
	var errorsMutex sync.Mutex
	taskErrors := make(map[string]error)

	for _, task := range tasks {
		task := task
		group.Go(func() error {
			if runErr := runGuarded(ctx, task); runErr != nil {
				errorsMutex.Lock()
				taskErrors[task.Name] = runErr
				errorsMutex.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()

	return Result{Errors: taskErrors}
}

func runGuarded(ctx context.Context, task Task) (runErr error) {
	if task.Run == nil {
		return nil
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			runErr = fmt.Errorf("fanout: task %s panicked: %v", task.Name, recovered)
		}
	}()
	return task.Run(ctx)
}
