// Package scheduler is the reference orchestrator around tempo's pure
// engine packages: it keeps tasks, windows, edges and execution state in
// Redis and arms trigger instants for the timer runtime.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/tempo/internal/logger"
	"github.com/muaviaUsmani/tempo/internal/metrics"
	"github.com/muaviaUsmani/tempo/internal/queue"
	"github.com/muaviaUsmani/tempo/internal/serialization"
	"github.com/muaviaUsmani/tempo/internal/store"
	"github.com/muaviaUsmani/tempo/pkg/dependency"
	"github.com/muaviaUsmani/tempo/pkg/execution"
	"github.com/muaviaUsmani/tempo/pkg/overlap"
	"github.com/muaviaUsmani/tempo/pkg/retry"
)

// ErrConflict is returned by ReserveWindow when the window overlaps an
// existing one and conflicts are rejected
var ErrConflict = errors.New("schedule window conflicts with existing windows")

// Planner applies engine decisions to persisted state
type Planner struct {
	client   *redis.Client
	store    *store.RedisStore
	queue    *queue.ArmQueue
	registry *Registry
	metrics  *metrics.Collector
	opts     Options
	log      logger.Logger
	now      func() time.Time
}

// NewPlanner creates a planner on client
func NewPlanner(client *redis.Client, opts Options) *Planner {
	opts = opts.withDefaults()
	return &Planner{
		client:   client,
		store:    store.New(client, opts.KeyPrefix, serialization.NewStateCodec(opts.StateFormat)),
		queue:    queue.NewArmQueue(client, opts.KeyPrefix),
		registry: NewRegistry(),
		metrics:  opts.Metrics,
		opts:     opts,
		log:      logger.Default().WithComponent(logger.ComponentPlanner),
		now:      time.Now,
	}
}

// SetLogger replaces the planner's logger
func (p *Planner) SetLogger(l logger.Logger) {
	p.log = l.WithComponent(logger.ComponentPlanner)
	p.queue.SetLogger(l)
}

// Options returns the effective options
func (p *Planner) Options() Options { return p.opts }

// Registry returns the planner's task cache
func (p *Planner) Registry() *Registry { return p.registry }

// Store returns the underlying store
func (p *Planner) Store() *store.RedisStore { return p.store }

// Queue returns the arm queue
func (p *Planner) Queue() *queue.ArmQueue { return p.queue }

// Metrics returns the collector outcomes are tallied in
func (p *Planner) Metrics() *metrics.Collector { return p.metrics }

func (p *Planner) ownerLockKey(owner string) string {
	return p.store.Prefix() + "lock:owner:" + owner
}

func (p *Planner) taskLockKey(taskID string) string {
	return p.store.Prefix() + "lock:task:" + taskID
}

// withLock runs fn while holding the Redis lock at key, extending it for as
// long as fn runs
func (p *Planner) withLock(ctx context.Context, key string, fn func() error) error {
	lock, err := AcquireLockWait(ctx, p.client, key, p.opts.LockTTL, p.opts.LockWait)
	if err != nil {
		return err
	}
	stop := lock.KeepAlive(ctx, func(err error) {
		p.log.Error("Failed to extend lock", "key", lock.Key(), "error", err)
	})
	defer func() {
		stop()
		if err := lock.Release(ctx); err != nil {
			p.log.Error("Failed to release lock", "key", lock.Key(), "error", err)
		}
	}()
	return fn()
}

// Register validates and persists a task, replacing an existing definition
// with the same ID. A task that already had a pending arm is re-armed from
// its new trigger.
func (p *Planner) Register(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("invalid task: task cannot be nil")
	}
	t := *task
	if t.Retry == (retry.Policy{}) {
		t.Retry = p.opts.DefaultRetry
	}
	if t.Timezone == "" {
		t.Timezone = p.opts.DefaultTimezone
	}

	if err := p.registry.Put(&t); err != nil {
		return err
	}
	rec, err := t.record()
	if err != nil {
		return err
	}
	if err := p.store.SaveTask(ctx, rec); err != nil {
		return err
	}

	p.log.Info("Task registered", "task_id", t.ID, "recurrence", kindOf(&t), "enabled", t.Enabled)

	pending, err := p.queue.Pending(ctx, t.ID)
	if err != nil {
		return err
	}
	if pending != nil {
		if _, err := p.Arm(ctx, t.ID, p.now()); err != nil {
			return err
		}
	}
	return nil
}

func kindOf(t *Task) string {
	if t.IsOneShot() {
		return "one_shot"
	}
	if isNone(t.Recurrence) {
		return "none"
	}
	return string(t.Recurrence.Kind())
}

// Task returns the current definition of taskID, read through to the store
func (p *Planner) Task(ctx context.Context, taskID string) (*Task, error) {
	rec, err := p.store.GetTask(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		p.registry.Remove(taskID)
		return nil, fmt.Errorf("%s: %w", taskID, ErrTaskNotFound)
	}
	if err != nil {
		return nil, err
	}

	t, err := taskFromRecord(rec)
	if err != nil {
		return nil, err
	}
	if err := p.registry.Put(t); err != nil {
		return nil, err
	}
	compiled, _ := p.registry.Get(taskID)
	return compiled, nil
}

// LoadTasks refreshes the registry from the store and returns the number of
// tasks loaded
func (p *Planner) LoadTasks(ctx context.Context) (int, error) {
	records, err := p.store.ListTasks(ctx)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, rec := range records {
		t, err := taskFromRecord(rec)
		if err == nil {
			err = p.registry.Put(t)
		}
		if err != nil {
			p.log.Warn("Skipping invalid task", "task_id", rec.ID, "error", err)
			continue
		}
		loaded++
	}
	return loaded, nil
}

// Arm arms the next fire of taskID strictly after now, replacing any pending
// arm. It returns nil when the task is disabled or will never fire again.
func (p *Planner) Arm(ctx context.Context, taskID string, now time.Time) (*queue.Arm, error) {
	var armed *queue.Arm
	err := p.withLock(ctx, p.taskLockKey(taskID), func() error {
		t, err := p.Task(ctx, taskID)
		if err != nil {
			return err
		}

		st, err := p.store.LoadState(ctx, taskID)
		if err != nil {
			return err
		}

		a, err := p.armNext(ctx, t, now)
		if err != nil {
			return err
		}
		if a != nil {
			at := a.At
			st.NextRunAt = &at
		} else {
			st.NextRunAt = nil
		}
		if err := p.store.SaveState(ctx, taskID, st); err != nil {
			return err
		}
		armed = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return armed, nil
}

func (p *Planner) armNext(ctx context.Context, t *Task, now time.Time) (*queue.Arm, error) {
	if !t.Enabled {
		if _, err := p.queue.Disarm(ctx, t.ID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	next, ok, err := p.registry.NextRun(t, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := p.queue.Disarm(ctx, t.ID); err != nil {
			return nil, err
		}
		p.log.Debug("Task has no further trigger", "task_id", t.ID)
		return nil, nil
	}

	a, err := p.queue.Arm(ctx, queue.Arm{TaskID: t.ID, Kind: queue.KindRun, At: next, ArmedAt: now})
	if err != nil {
		return nil, err
	}
	p.log.Debug("Task armed", "task_id", t.ID, "at", next.Format(time.RFC3339))
	return &a, nil
}

// ReserveWindow checks w against the owner's existing windows and persists
// it together with the conflict flags. The owner's lock is held across the
// check and the write, so two concurrent reservations cannot both miss each
// other. With rejectOnConflict an overlapping window is not persisted and
// ErrConflict is returned alongside the result.
func (p *Planner) ReserveWindow(ctx context.Context, owner string, w overlap.Window, rejectOnConflict bool) (overlap.Result, error) {
	w.Owner = owner
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if err := w.Validate(); err != nil {
		return overlap.Result{}, err
	}

	var res overlap.Result
	err := p.withLock(ctx, p.ownerLockKey(owner), func() error {
		records, err := p.store.ListWindows(ctx, owner)
		if err != nil {
			return err
		}

		res, err = overlap.FindOverlaps(owner, w, store.Windows(records), w.ID)
		if err != nil {
			return err
		}

		if res.HasConflict() {
			p.metrics.RecordConflict()
			if rejectOnConflict {
				return fmt.Errorf("%w: window %s overlaps %s", ErrConflict, w.ID, strings.Join(res.ConflictIDs(), ", "))
			}
			p.log.Warn("Window reserved with conflicts", "owner", owner, "window_id", w.ID, "conflicts", res.ConflictIDs())
		}

		return p.store.SaveWindow(ctx, store.WindowRecord{
			Window:               w,
			HasConflict:          res.HasConflict(),
			ConflictingSchedules: res.ConflictIDs(),
		})
	})
	if errors.Is(err, ErrConflict) {
		return res, err
	}
	if err != nil {
		return overlap.Result{}, err
	}
	return res, nil
}

// ReleaseWindow removes a reserved window
func (p *Planner) ReleaseWindow(ctx context.Context, owner, windowID string) error {
	return p.store.DeleteWindow(ctx, owner, windowID)
}

// Windows lists the owner's reserved windows
func (p *Planner) Windows(ctx context.Context, owner string) ([]store.WindowRecord, error) {
	return p.store.ListWindows(ctx, owner)
}

// Report describes what ReportOutcome did with an outcome
type Report struct {
	TaskID    string
	OutcomeID string
	// Duplicate is set when the outcome ID was already applied; nothing changed
	Duplicate bool
	State     execution.State
	// Retry is the armed retry after a failure
	Retry *retry.Decision
	// Next is the arm now pending for the task, if any
	Next *queue.Arm
	// Exhausted is set when the failure used up the retry policy. The task
	// has been disabled.
	Exhausted *retry.ExhaustedError
}

// ReportOutcome applies one execution outcome of taskID. Outcomes are
// de-duplicated by ID, so redelivering the same outcome is harmless; an
// outcome without an ID is always applied. Outcomes of one task are applied
// one at a time under the task's lock.
func (p *Planner) ReportOutcome(ctx context.Context, taskID string, o execution.Outcome, now time.Time) (Report, error) {
	if err := o.Validate(); err != nil {
		return Report{}, err
	}
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	ctx = logger.WithTaskID(ctx, taskID)

	var report Report
	err := p.withLock(ctx, p.taskLockKey(taskID), func() error {
		var err error
		report, err = p.reportLocked(ctx, taskID, o, now)
		return err
	})
	if err != nil {
		return Report{}, err
	}
	if !report.Duplicate {
		p.metrics.RecordOutcome(taskID, o)
	}
	return report, nil
}

// reportLocked de-duplicates and applies o. The caller holds the task lock,
// so the state read here is not overwritten before it is saved.
func (p *Planner) reportLocked(ctx context.Context, taskID string, o execution.Outcome, now time.Time) (Report, error) {
	t, err := p.Task(ctx, taskID)
	if err != nil {
		return Report{}, err
	}

	first, err := p.store.MarkOutcome(ctx, taskID, o.ID, p.opts.OutcomeDedupeTTL)
	if err != nil {
		return Report{}, err
	}
	if !first {
		p.metrics.RecordDuplicate()
		p.log.InfoContext(ctx, "Duplicate outcome ignored", "outcome_id", o.ID)
		st, err := p.store.LoadState(ctx, taskID)
		if err != nil {
			return Report{}, err
		}
		return Report{TaskID: taskID, OutcomeID: o.ID, Duplicate: true, State: st}, nil
	}

	report, err := p.applyOutcome(ctx, t, o, now)
	if err != nil {
		// Let a redelivery try again
		if unmarkErr := p.store.UnmarkOutcome(ctx, taskID, o.ID); unmarkErr != nil {
			p.log.ErrorContext(ctx, "Failed to unmark outcome", "outcome_id", o.ID, "error", unmarkErr)
		}
		return Report{}, err
	}
	return report, nil
}

func (p *Planner) applyOutcome(ctx context.Context, t *Task, o execution.Outcome, now time.Time) (Report, error) {
	report := Report{TaskID: t.ID, OutcomeID: o.ID}

	prev, err := p.store.LoadState(ctx, t.ID)
	if err != nil {
		return report, err
	}

	var st execution.State
	if o.Status.IsFailure() && t.Enabled {
		if st, err = execution.RecordExecution(prev, o, now, nil); err != nil {
			return report, err
		}

		decision, err := retry.Decide(t.ID, t.Retry, st, now)
		var exhausted *retry.ExhaustedError
		switch {
		case errors.As(err, &exhausted):
			if err := p.disable(ctx, t); err != nil {
				return report, err
			}
			p.metrics.RecordRetryExhausted()
			report.Exhausted = exhausted
			p.log.WarnContext(ctx, "Retry policy exhausted, task disabled",
				"consecutive_failures", st.ConsecutiveFailures,
				"status", o.Status)

		case err != nil:
			return report, err

		default:
			a, err := p.queue.Arm(ctx, queue.Arm{
				TaskID:  t.ID,
				Kind:    queue.KindRetry,
				Attempt: decision.Attempt,
				At:      decision.At,
				ArmedAt: now,
			})
			if err != nil {
				return report, err
			}
			at := decision.At
			st.NextRunAt = &at
			p.metrics.RecordRetryArmed()
			report.Retry = &decision
			report.Next = &a
			p.log.InfoContext(ctx, "Retry armed",
				"attempt", decision.Attempt,
				"delay", decision.Delay,
				"at", decision.At.Format(time.RFC3339))
		}
	} else {
		a, err := p.armNext(ctx, t, now)
		if err != nil {
			return report, err
		}
		var next *time.Time
		if a != nil {
			at := a.At
			next = &at
		}
		if st, err = execution.RecordExecution(prev, o, now, next); err != nil {
			return report, err
		}
		report.Next = a
	}

	if err := p.store.SaveOutcome(ctx, t.ID, st, o); err != nil {
		return report, err
	}
	report.State = st
	return report, nil
}

// disable turns a task off everywhere and drops its pending arm
func (p *Planner) disable(ctx context.Context, t *Task) error {
	t.Enabled = false
	rec, err := t.record()
	if err != nil {
		return err
	}
	if err := p.store.SaveTask(ctx, rec); err != nil {
		return err
	}
	if err := p.registry.Disable(t.ID); err != nil && !errors.Is(err, ErrTaskNotFound) {
		return err
	}
	_, err = p.queue.Disarm(ctx, t.ID)
	return err
}

// Disable stops taskID from being armed until it is registered again as
// enabled
func (p *Planner) Disable(ctx context.Context, taskID string) error {
	t, err := p.Task(ctx, taskID)
	if err != nil {
		return err
	}
	return p.disable(ctx, t)
}

// State returns the persisted execution state of taskID
func (p *Planner) State(ctx context.Context, taskID string) (execution.State, error) {
	return p.store.LoadState(ctx, taskID)
}

// Health returns the health of taskID from its persisted outcome tally, so
// every planner on the same Redis reports the same score
func (p *Planner) Health(ctx context.Context, taskID string) (metrics.TaskHealth, error) {
	tally, err := p.store.LoadTally(ctx, taskID)
	if err != nil {
		return metrics.TaskHealth{}, err
	}
	return metrics.NewTaskHealth(taskID, tally.Counts, tally.TotalDuration), nil
}

// AddDependency validates and stores an edge from predecessor to successor.
// With strict set, an edge that would close a cycle is rejected with
// dependency.ErrCycle.
func (p *Planner) AddDependency(ctx context.Context, predecessorID, successorID string, t dependency.Type, lagDays int, strict bool) (dependency.Edge, error) {
	e, err := dependency.AddEdge(predecessorID, successorID, t, lagDays)
	if err != nil {
		return dependency.Edge{}, err
	}

	if strict {
		edges, err := p.store.ListEdges(ctx)
		if err != nil {
			return dependency.Edge{}, err
		}
		if dependency.WouldCreateCycle(edges, e) {
			return dependency.Edge{}, fmt.Errorf("%w: %s -> %s", dependency.ErrCycle, predecessorID, successorID)
		}
	}

	if err := p.store.SaveEdge(ctx, e); err != nil {
		return dependency.Edge{}, err
	}
	p.log.Info("Dependency added", "predecessor", predecessorID, "successor", successorID, "type", t, "lag_days", lagDays)
	return e, nil
}

// RemoveDependency deletes the edge from predecessor to successor
func (p *Planner) RemoveDependency(ctx context.Context, predecessorID, successorID string) error {
	return p.store.DeleteEdge(ctx, predecessorID, successorID)
}

// Dependencies returns a snapshot of every edge
func (p *Planner) Dependencies(ctx context.Context) ([]dependency.Edge, error) {
	return p.store.ListEdges(ctx)
}

// RemoveTask deletes a task with its state, pending arm and every edge that
// names it. The edges are removed even when the task itself is unknown. It
// returns the number of edges removed.
func (p *Planner) RemoveTask(ctx context.Context, taskID string) (int, error) {
	p.registry.Remove(taskID)
	if _, err := p.queue.Disarm(ctx, taskID); err != nil {
		return 0, err
	}

	removed, err := p.store.DeleteEdgesInvolving(ctx, taskID)
	if err != nil {
		return 0, err
	}
	p.metrics.Forget(taskID)

	if err := p.store.DeleteTask(ctx, taskID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return removed, fmt.Errorf("%s: %w", taskID, ErrTaskNotFound)
		}
		return removed, err
	}

	p.log.Info("Task removed", "task_id", taskID, "edges_removed", removed)
	return removed, nil
}

// Ancestors returns every task taskID transitively depends on, sorted
func (p *Planner) Ancestors(ctx context.Context, taskID string) ([]string, error) {
	edges, err := p.store.ListEdges(ctx)
	if err != nil {
		return nil, err
	}
	return dependency.AllAncestors(taskID, edges).Sorted(), nil
}

// Descendants returns every task that transitively depends on taskID, sorted
func (p *Planner) Descendants(ctx context.Context, taskID string) ([]string, error) {
	edges, err := p.store.ListEdges(ctx)
	if err != nil {
		return nil, err
	}
	return dependency.AllDescendants(taskID, edges).Sorted(), nil
}

// RecoverArms arms every enabled task that has no pending arm, such as a task
// whose last dispatch never produced an outcome. It returns how many tasks
// were armed.
func (p *Planner) RecoverArms(ctx context.Context, now time.Time) (int, error) {
	if _, err := p.LoadTasks(ctx); err != nil {
		return 0, err
	}

	armed := 0
	for _, t := range p.registry.List() {
		if !t.Enabled {
			continue
		}
		pending, err := p.queue.Pending(ctx, t.ID)
		if err != nil {
			return armed, err
		}
		if pending != nil {
			continue
		}

		a, err := p.Arm(ctx, t.ID, now)
		if err != nil {
			p.log.Error("Failed to recover arm", "task_id", t.ID, "error", err)
			continue
		}
		if a != nil {
			armed++
		}
	}
	return armed, nil
}
