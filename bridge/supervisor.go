// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Task is a long-running unit of work under Supervise. Run should block
// until ctx is cancelled.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// TaskExitError identifies the task that ended supervision. Err is nil
// when the task returned without an error, which is still fatal: a
// supervised task is expected to run until cancelled.
type TaskExitError struct {
	Task string
	Err  error
}

func (e *TaskExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("task %q exited unexpectedly", e.Task)
	}
	return fmt.Sprintf("task %q failed: %v", e.Task, e.Err)
}

func (e *TaskExitError) Unwrap() error { return e.Err }

// Supervise runs every task concurrently. The first task to return, for
// any reason, cancels the rest; Supervise waits for all of them and
// returns a *TaskExitError naming that first task. If ctx is cancelled
// first, the resulting task exits are a normal shutdown and Supervise
// returns nil.
func Supervise(ctx context.Context, logger *slog.Logger, tasks ...Task) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		group.Go(func() error {
			err := task.Run(groupCtx)
			if ctx.Err() != nil {
				logger.Debug("task stopped", "task", task.Name, "error", err)
			} else {
				logger.Info("task exited", "task", task.Name, "error", err)
			}
			return &TaskExitError{Task: task.Name, Err: err}
		})
	}

	err := group.Wait()
	if ctx.Err() != nil {
		var exit *TaskExitError
		if errors.As(err, &exit) && exit.Err != nil && !errors.Is(exit.Err, context.Canceled) {
			logger.Warn("task failed during shutdown", "task", exit.Task, "error", exit.Err)
		}
		return nil
	}
	return err
}
