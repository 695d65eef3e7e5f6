// Package execution tracks the execution state of schedulable tasks and
// derives a health score from their execution history.
package execution

import (
	"errors"
	"fmt"
	"time"
)

// Status is the outcome of a single execution attempt
type Status string

const (
	// StatusSuccess indicates the run completed successfully
	StatusSuccess Status = "success"
	// StatusFailed indicates the run returned an error
	StatusFailed Status = "failed"
	// StatusTimeout indicates the run exceeded its deadline
	StatusTimeout Status = "timeout"
	// StatusSkipped indicates the run was not attempted
	StatusSkipped Status = "skipped"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusTimeout, StatusSkipped:
		return true
	}
	return false
}

// IsFailure reports whether s counts towards consecutive failures
func (s Status) IsFailure() bool {
	return s == StatusFailed || s == StatusTimeout
}

// ErrInvalidOutcome is returned when an outcome cannot be recorded
var ErrInvalidOutcome = errors.New("invalid execution outcome")

// State is the execution state of a single task
type State struct {
	// NextRunAt is when the task is next armed to run (nil when not armed)
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
	// LastRunAt is when the last recorded execution happened
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	// ExecutionCount is the number of recorded executions
	ExecutionCount int `json:"execution_count"`
	// LastExecutionStatus is empty until the first execution is recorded
	LastExecutionStatus Status `json:"last_execution_status,omitempty"`
	// LastExecutionDuration is the duration of the last execution
	LastExecutionDuration time.Duration `json:"last_execution_duration"`
	// ConsecutiveFailures counts failed or timed out runs since the last success
	ConsecutiveFailures int `json:"consecutive_failures"`
}

// Outcome is a single reported execution result
type Outcome struct {
	// ID identifies the delivery; callers de-duplicate on it
	ID       string        `json:"id"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`
}

// Validate checks the outcome status and duration
func (o Outcome) Validate() error {
	if !o.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidOutcome, o.Status)
	}
	if o.Duration < 0 {
		return fmt.Errorf("%w: negative duration %s", ErrInvalidOutcome, o.Duration)
	}
	return nil
}

// RecordExecution returns the state that results from applying outcome o at
// now. next is the next trigger instant, or nil for a one-shot or terminally
// failed task.
//
// RecordExecution is not idempotent: applying the same outcome twice counts
// it twice. Callers that receive outcomes at-least-once must de-duplicate by
// Outcome.ID before calling it.
func RecordExecution(s State, o Outcome, now time.Time, next *time.Time) (State, error) {
	if err := o.Validate(); err != nil {
		return s, err
	}

	ranAt := now
	s.LastRunAt = &ranAt
	s.ExecutionCount++
	s.LastExecutionStatus = o.Status
	s.LastExecutionDuration = o.Duration

	if next != nil {
		n := *next
		s.NextRunAt = &n
	} else {
		s.NextRunAt = nil
	}

	switch {
	case o.Status == StatusSuccess:
		s.ConsecutiveFailures = 0
	case o.Status.IsFailure():
		s.ConsecutiveFailures++
	}

	return s, nil
}
