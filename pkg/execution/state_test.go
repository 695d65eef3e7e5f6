package execution

import (
	"errors"
	"testing"
	"time"
)

var now = time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)

func TestRecordExecution_Success(t *testing.T) {
	next := now.Add(24 * time.Hour)
	prev := State{ExecutionCount: 4, ConsecutiveFailures: 2}

	s, err := RecordExecution(prev, Outcome{ID: "o-1", Status: StatusSuccess, Duration: 3 * time.Second}, now, &next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.ExecutionCount != 5 {
		t.Errorf("expected execution count 5, got %d", s.ExecutionCount)
	}
	if s.ConsecutiveFailures != 0 {
		t.Errorf("expected consecutive failures reset to 0, got %d", s.ConsecutiveFailures)
	}
	if s.LastRunAt == nil || !s.LastRunAt.Equal(now) {
		t.Errorf("expected last run at %v, got %v", now, s.LastRunAt)
	}
	if s.NextRunAt == nil || !s.NextRunAt.Equal(next) {
		t.Errorf("expected next run at %v, got %v", next, s.NextRunAt)
	}
	if s.LastExecutionStatus != StatusSuccess {
		t.Errorf("expected status success, got %s", s.LastExecutionStatus)
	}
	if s.LastExecutionDuration != 3*time.Second {
		t.Errorf("expected duration 3s, got %s", s.LastExecutionDuration)
	}

	// the input snapshot is untouched
	if prev.ExecutionCount != 4 || prev.LastRunAt != nil {
		t.Error("expected previous state to be unchanged")
	}
}

func TestRecordExecution_ConsecutiveFailures(t *testing.T) {
	tests := []struct {
		status   Status
		expected int
	}{
		{StatusFailed, 3},
		{StatusTimeout, 3},
		{StatusSkipped, 2},
		{StatusSuccess, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			s, err := RecordExecution(State{ConsecutiveFailures: 2}, Outcome{Status: tt.status}, now, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.ConsecutiveFailures != tt.expected {
				t.Errorf("expected %d consecutive failures, got %d", tt.expected, s.ConsecutiveFailures)
			}
		})
	}
}

func TestRecordExecution_TerminalClearsNextRun(t *testing.T) {
	armed := now.Add(time.Hour)
	s, err := RecordExecution(State{NextRunAt: &armed}, Outcome{Status: StatusSuccess}, now, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.NextRunAt != nil {
		t.Errorf("expected next run cleared, got %v", s.NextRunAt)
	}
}

func TestRecordExecution_InvalidOutcome(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
	}{
		{"unknown status", Outcome{Status: "crashed"}},
		{"empty status", Outcome{}},
		{"negative duration", Outcome{Status: StatusSuccess, Duration: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := State{ExecutionCount: 1}
			s, err := RecordExecution(prev, tt.outcome, now, nil)
			if !errors.Is(err, ErrInvalidOutcome) {
				t.Errorf("expected ErrInvalidOutcome, got %v", err)
			}
			if s.ExecutionCount != 1 {
				t.Errorf("expected state unchanged, got execution count %d", s.ExecutionCount)
			}
		})
	}
}

func TestRecordExecution_NotIdempotent(t *testing.T) {
	o := Outcome{ID: "delivery-1", Status: StatusFailed}

	s, _ := RecordExecution(State{}, o, now, nil)
	s, _ = RecordExecution(s, o, now, nil)

	// applying the same outcome twice counts it twice
	if s.ExecutionCount != 2 {
		t.Errorf("expected execution count 2, got %d", s.ExecutionCount)
	}
	if s.ConsecutiveFailures != 2 {
		t.Errorf("expected 2 consecutive failures, got %d", s.ConsecutiveFailures)
	}
}

func TestRecordExecution_DedupedByCaller(t *testing.T) {
	seen := make(map[string]bool)
	deliveries := []Outcome{
		{ID: "a", Status: StatusSuccess},
		{ID: "a", Status: StatusSuccess},
		{ID: "b", Status: StatusFailed},
		{ID: "a", Status: StatusSuccess},
	}

	var s State
	for _, o := range deliveries {
		if seen[o.ID] {
			continue
		}
		seen[o.ID] = true
		var err error
		if s, err = RecordExecution(s, o, now, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if s.ExecutionCount != 2 {
		t.Errorf("expected execution count 2, got %d", s.ExecutionCount)
	}
}
