// Package retry decides whether a failed task should be retried and after
// how long. It never sleeps or arms anything; callers act on the Decision.
package retry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/muaviaUsmani/tempo/pkg/execution"
)

// ErrInvalidPolicy is returned by Policy.Validate
var ErrInvalidPolicy = errors.New("invalid retry policy")

// Policy is an immutable retry policy attached to a task
type Policy struct {
	Enabled           bool
	MaxRetries        int
	RetryDelay        time.Duration
	BackoffMultiplier float64
	MaxRetryDelay     time.Duration
}

// DefaultPolicy returns the policy used when a task does not carry one
func DefaultPolicy() Policy {
	return Policy{
		Enabled:           true,
		MaxRetries:        3,
		RetryDelay:        5 * time.Second,
		BackoffMultiplier: 2.0,
		MaxRetryDelay:     60 * time.Second,
	}
}

// Validate checks the policy invariants
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("%w: maxRetries must be >= 0, got %d", ErrInvalidPolicy, p.MaxRetries)
	}
	if p.RetryDelay < 0 {
		return fmt.Errorf("%w: retryDelay must be >= 0, got %s", ErrInvalidPolicy, p.RetryDelay)
	}
	if math.IsNaN(p.BackoffMultiplier) || p.BackoffMultiplier < 1.0 {
		return fmt.Errorf("%w: backoffMultiplier must be >= 1.0, got %v", ErrInvalidPolicy, p.BackoffMultiplier)
	}
	if p.MaxRetryDelay < p.RetryDelay {
		return fmt.Errorf("%w: maxRetryDelay %s is less than retryDelay %s", ErrInvalidPolicy, p.MaxRetryDelay, p.RetryDelay)
	}
	return nil
}

// policyJSON is the wire form; delays are in milliseconds
type policyJSON struct {
	Enabled           bool    `json:"enabled"`
	MaxRetries        int     `json:"maxRetries"`
	RetryDelay        int64   `json:"retryDelay"`
	BackoffMultiplier float64 `json:"backoffMultiplier"`
	MaxRetryDelay     int64   `json:"maxRetryDelay"`
}

// MarshalJSON encodes delays as milliseconds
func (p Policy) MarshalJSON() ([]byte, error) {
	return json.Marshal(policyJSON{
		Enabled:           p.Enabled,
		MaxRetries:        p.MaxRetries,
		RetryDelay:        p.RetryDelay.Milliseconds(),
		BackoffMultiplier: p.BackoffMultiplier,
		MaxRetryDelay:     p.MaxRetryDelay.Milliseconds(),
	})
}

// UnmarshalJSON decodes delays from milliseconds
func (p *Policy) UnmarshalJSON(data []byte) error {
	var w policyJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = Policy{
		Enabled:           w.Enabled,
		MaxRetries:        w.MaxRetries,
		RetryDelay:        time.Duration(w.RetryDelay) * time.Millisecond,
		BackoffMultiplier: w.BackoffMultiplier,
		MaxRetryDelay:     time.Duration(w.MaxRetryDelay) * time.Millisecond,
	}
	return nil
}

// ComputeDelay returns min(RetryDelay * BackoffMultiplier^(attempt-1), MaxRetryDelay).
// Attempts below 1 are treated as 1.
func ComputeDelay(p Policy, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(p.RetryDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if math.IsNaN(delay) || math.IsInf(delay, 0) || delay >= float64(p.MaxRetryDelay) {
		return p.MaxRetryDelay
	}
	return time.Duration(delay)
}

// ShouldRetry reports whether a task in state s may be retried under p
func ShouldRetry(p Policy, s execution.State) bool {
	return p.Enabled && s.ConsecutiveFailures < p.MaxRetries
}
