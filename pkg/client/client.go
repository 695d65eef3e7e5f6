// Package client is the programmatic entry point to tempo for services that
// own tasks: it registers them, reports execution outcomes and manages
// schedule windows and dependencies.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/tempo/internal/config"
	"github.com/muaviaUsmani/tempo/internal/metrics"
	"github.com/muaviaUsmani/tempo/internal/scheduler"
	"github.com/muaviaUsmani/tempo/internal/store"
	"github.com/muaviaUsmani/tempo/pkg/dependency"
	"github.com/muaviaUsmani/tempo/pkg/execution"
	"github.com/muaviaUsmani/tempo/pkg/overlap"
	"github.com/muaviaUsmani/tempo/pkg/retry"
	"github.com/muaviaUsmani/tempo/pkg/trigger"
)

// Client wraps a planner connected to Redis
type Client struct {
	redis   *redis.Client
	planner *scheduler.Planner
	ctx     context.Context
	now     func() time.Time
}

// NewClient connects to Redis with the default options
func NewClient(redisURL string) (*Client, error) {
	return NewClientWithOptions(redisURL, scheduler.DefaultOptions())
}

// NewClientFromConfig connects using loaded configuration
func NewClientFromConfig(cfg *config.Config) (*Client, error) {
	return NewClientWithOptions(cfg.RedisURL, scheduler.OptionsFromConfig(cfg))
}

// NewClientWithOptions connects to Redis and builds a planner with opts
func NewClientWithOptions(redisURL string, opts scheduler.Options) (*Client, error) {
	ctx := context.Background()
	rc, err := store.Connect(ctx, redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{
		redis:   rc,
		planner: scheduler.NewPlanner(rc, opts),
		ctx:     ctx,
		now:     time.Now,
	}, nil
}

// Planner exposes the underlying planner for callers that need context
// control or more than the client offers
func (c *Client) Planner() *scheduler.Planner {
	return c.planner
}

// Schedule registers a recurring task and arms its first run. A nil policy
// uses the configured default.
func (c *Client) Schedule(taskID string, r trigger.Recurrence, policy *retry.Policy) (*time.Time, error) {
	task := &scheduler.Task{
		ID:         taskID,
		Recurrence: r,
		Enabled:    true,
	}
	if policy != nil {
		task.Retry = *policy
	}
	return c.RegisterTask(task)
}

// ScheduleOnce registers a task that fires once at `at` (rounded up to the
// minute) and arms it
func (c *Client) ScheduleOnce(taskID string, at time.Time) (*time.Time, error) {
	return c.RegisterTask(&scheduler.Task{
		ID:        taskID,
		OneShotAt: &at,
		Enabled:   true,
	})
}

// RegisterTask stores a task definition and, when enabled, arms its next
// fire. It returns the armed instant, or nil if nothing was armed.
func (c *Client) RegisterTask(task *scheduler.Task) (*time.Time, error) {
	if err := c.planner.Register(c.ctx, task); err != nil {
		return nil, fmt.Errorf("failed to register task: %w", err)
	}

	a, err := c.planner.Arm(c.ctx, task.ID, c.now())
	if err != nil {
		return nil, fmt.Errorf("failed to arm task: %w", err)
	}
	if a == nil {
		return nil, nil
	}
	at := a.At
	return &at, nil
}

// Disable stops a task from being armed
func (c *Client) Disable(taskID string) error {
	return c.planner.Disable(c.ctx, taskID)
}

// RemoveTask deletes a task and every dependency edge naming it
func (c *Client) RemoveTask(taskID string) (int, error) {
	return c.planner.RemoveTask(c.ctx, taskID)
}

// ReportOutcome records an execution outcome delivered by the timer runtime
func (c *Client) ReportOutcome(taskID string, o execution.Outcome) (scheduler.Report, error) {
	return c.planner.ReportOutcome(c.ctx, taskID, o, c.now())
}

// State returns the execution state of a task
func (c *Client) State(taskID string) (execution.State, error) {
	return c.planner.State(c.ctx, taskID)
}

// Health returns the health of a task from its persisted outcome tally
func (c *Client) Health(taskID string) (metrics.TaskHealth, error) {
	return c.planner.Health(c.ctx, taskID)
}

// ReserveWindow reserves w for owner. Conflicts are flagged, or rejected
// with scheduler.ErrConflict when RejectConflicts is configured.
func (c *Client) ReserveWindow(owner string, w overlap.Window) (overlap.Result, error) {
	return c.planner.ReserveWindow(c.ctx, owner, w, c.planner.Options().RejectConflicts)
}

// ReleaseWindow removes a reserved window
func (c *Client) ReleaseWindow(owner, windowID string) error {
	return c.planner.ReleaseWindow(c.ctx, owner, windowID)
}

// AddDependency adds an edge; cycles are rejected when StrictDependencies is
// configured
func (c *Client) AddDependency(predecessorID, successorID string, t dependency.Type, lagDays int) (dependency.Edge, error) {
	return c.planner.AddDependency(c.ctx, predecessorID, successorID, t, lagDays, c.planner.Options().StrictDependencies)
}

// Ancestors returns the tasks taskID transitively depends on
func (c *Client) Ancestors(taskID string) ([]string, error) {
	return c.planner.Ancestors(c.ctx, taskID)
}

// Descendants returns the tasks that transitively depend on taskID
func (c *Client) Descendants(taskID string) ([]string, error) {
	return c.planner.Descendants(c.ctx, taskID)
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.redis.Close()
}
