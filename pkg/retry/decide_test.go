package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/muaviaUsmani/tempo/pkg/execution"
)

func TestDecide_FailureFlow(t *testing.T) {
	now := time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)
	p := DefaultPolicy()

	var s execution.State
	expectedDelays := []time.Duration{5 * time.Second, 10 * time.Second}

	for i, expected := range expectedDelays {
		var err error
		s, err = execution.RecordExecution(s, execution.Outcome{Status: execution.StatusFailed}, now, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		d, err := Decide("task-1", p, s, now)
		if err != nil {
			t.Fatalf("failure %d: unexpected error: %v", i+1, err)
		}
		if !d.Retry {
			t.Fatalf("failure %d: expected a retry", i+1)
		}
		if d.Attempt != i+1 {
			t.Errorf("expected attempt %d, got %d", i+1, d.Attempt)
		}
		if d.Delay != expected {
			t.Errorf("expected delay %v, got %v", expected, d.Delay)
		}
		if !d.At.Equal(now.Add(expected)) {
			t.Errorf("expected retry at %v, got %v", now.Add(expected), d.At)
		}
	}

	// the failure count has reached MaxRetries
	s, _ = execution.RecordExecution(s, execution.Outcome{Status: execution.StatusTimeout}, now, nil)
	_, err := Decide("task-1", p, s, now)

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.TaskID != "task-1" || exhausted.ConsecutiveFailures != 3 {
		t.Errorf("unexpected exhausted error %+v", exhausted)
	}
}

func TestDecide_DisabledPolicy(t *testing.T) {
	_, err := Decide("task-2", Policy{}, execution.State{ConsecutiveFailures: 1}, time.Now())

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Errorf("expected ExhaustedError for a disabled policy, got %v", err)
	}
}
