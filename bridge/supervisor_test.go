// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/sms-bridge/lib/testutil"
)

// blockingTask runs until cancelled and reports its cancellation on
// stopped.
func blockingTask(name string, stopped chan<- string) Task {
	return Task{Name: name, Run: func(ctx context.Context) error {
		<-ctx.Done()
		stopped <- name
		return ctx.Err()
	}}
}

func TestSuperviseTaskFailureCancelsOthers(t *testing.T) {
	failure := errors.New("listener died")
	stopped := make(chan string, 1)

	err := Supervise(context.Background(), testutil.Logger(t),
		blockingTask("session", stopped),
		Task{Name: "http", Run: func(context.Context) error { return failure }},
	)

	var exit *TaskExitError
	if !errors.As(err, &exit) {
		t.Fatalf("Supervise = %v, want *TaskExitError", err)
	}
	if exit.Task != "http" {
		t.Errorf("Task = %q, want http", exit.Task)
	}
	if !errors.Is(err, failure) {
		t.Errorf("Supervise = %v, want to wrap %v", err, failure)
	}
	if name := testutil.RequireReceive(t, stopped, time.Second, "session task cancellation"); name != "session" {
		t.Errorf("stopped task = %q", name)
	}
}

func TestSuperviseCleanExitIsFatal(t *testing.T) {
	stopped := make(chan string, 1)

	err := Supervise(context.Background(), testutil.Logger(t),
		Task{Name: "session", Run: func(context.Context) error { return nil }},
		blockingTask("http", stopped),
	)

	var exit *TaskExitError
	if !errors.As(err, &exit) {
		t.Fatalf("Supervise = %v, want *TaskExitError", err)
	}
	if exit.Task != "session" || exit.Err != nil {
		t.Errorf("exit = %+v, want session with nil Err", exit)
	}
	if exit.Error() != `task "session" exited unexpectedly` {
		t.Errorf("Error() = %q", exit.Error())
	}
	testutil.RequireReceive(t, stopped, time.Second, "http task cancellation")
}

func TestSuperviseParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan string, 2)

	done := make(chan error, 1)
	go func() {
		done <- Supervise(ctx, testutil.Logger(t),
			blockingTask("session", stopped),
			blockingTask("http", stopped),
		)
	}()

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "Supervise to return"); err != nil {
		t.Errorf("Supervise after cancel = %v, want nil", err)
	}
	if len(stopped) != 2 {
		t.Errorf("%d tasks stopped, want 2", len(stopped))
	}
}
