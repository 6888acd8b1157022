package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"go.uber.org/multierr"

	"github.com/ovrpay/ovrpay-backend/pkg/logger"
)

type fakeLock struct {
	acquired bool
	held     bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func testCronLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	service, err := NewService(ServiceParams{
		Logger:   testCronLogger(),
		Registry: NewRegistry(success, failure),
		Lock:     &fakeLock{},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	cycleErr := service.runCycle(context.Background())
	if cycleErr == nil {
		t.Fatal("expected the failing job to surface in the cycle error")
	}
	if len(multierr.Errors(cycleErr)) != 1 {
		t.Fatalf("expected exactly one job error, got %v", cycleErr)
	}
	if success.runs != 1 || failure.runs != 1 {
		t.Fatalf("both jobs should run once, got %d and %d", success.runs, failure.runs)
	}
}

func TestServiceSkipsCycleWhenLockHeld(t *testing.T) {
	job := &testJob{name: "noop"}
	service, err := NewService(ServiceParams{
		Logger:   testCronLogger(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{held: true},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("a held lock should skip quietly, got %v", err)
	}
	if job.runs != 0 {
		t.Fatal("jobs must not run without the lock")
	}
}
