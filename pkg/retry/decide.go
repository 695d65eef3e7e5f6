package retry

import (
	"fmt"
	"time"

	"github.com/muaviaUsmani/tempo/pkg/execution"
)

// ExhaustedError signals that a task has used up its retries and must be
// treated as terminally failed
type ExhaustedError struct {
	TaskID              string
	ConsecutiveFailures int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry policy exhausted for task %s after %d consecutive failures", e.TaskID, e.ConsecutiveFailures)
}

// Decision tells the caller when to re-arm a failed task
type Decision struct {
	Retry bool
	// Attempt is the 1-based retry attempt being armed
	Attempt int
	Delay   time.Duration
	// At is now + Delay
	At time.Time
}

// Decide is called after a failure has been recorded into s. It returns the
// retry to arm, or an *ExhaustedError when the policy does not allow another
// attempt.
func Decide(taskID string, p Policy, s execution.State, now time.Time) (Decision, error) {
	if !ShouldRetry(p, s) {
		return Decision{}, &ExhaustedError{TaskID: taskID, ConsecutiveFailures: s.ConsecutiveFailures}
	}

	attempt := s.ConsecutiveFailures
	if attempt < 1 {
		attempt = 1
	}
	delay := ComputeDelay(p, attempt)

	return Decision{
		Retry:   true,
		Attempt: attempt,
		Delay:   delay,
		At:      now.Add(delay),
	}, nil
}
