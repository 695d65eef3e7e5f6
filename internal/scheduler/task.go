package scheduler

import (
	"fmt"
	"time"

	"github.com/muaviaUsmani/tempo/internal/store"
	"github.com/muaviaUsmani/tempo/pkg/retry"
	"github.com/muaviaUsmani/tempo/pkg/trigger"
)

// Task is a schedulable unit of work as the planner sees it
type Task struct {
	// ID is a unique identifier (alphanumeric, underscores, hyphens)
	ID string

	// Description for logging/monitoring
	Description string

	// Recurrence describes when the task repeats. Nil or trigger.None means
	// the task only fires at OneShotAt, if set.
	Recurrence trigger.Recurrence

	// OneShotAt fires the task once at this instant when there is no recurrence
	OneShotAt *time.Time

	// Expression is compiled from Recurrence or OneShotAt on registration
	Expression trigger.Expression

	// Retry policy applied to failed and timed out executions.
	// The zero value means retry.DefaultPolicy().
	Retry retry.Policy

	// Timezone the recurrence is evaluated in (default: UTC).
	// One-shot instants are absolute and always evaluate in UTC.
	Timezone string

	// Enabled flag (allows disabling without removing)
	Enabled bool
}

// IsOneShot reports whether the task fires at a single instant
func (t *Task) IsOneShot() bool {
	return t.OneShotAt != nil && isNone(t.Recurrence)
}

func isNone(r trigger.Recurrence) bool {
	return r == nil || r.Kind() == trigger.KindNone
}

// location returns the zone the task's expression is evaluated in
func (t *Task) location() (*time.Location, error) {
	if t.IsOneShot() || t.Timezone == "" || t.Timezone == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", t.Timezone, err)
	}
	return loc, nil
}

func (t *Task) compile() (trigger.Expression, error) {
	if t.IsOneShot() {
		return trigger.CompileOneShot(*t.OneShotAt), nil
	}
	return trigger.CompileTrigger(t.Recurrence)
}

// record converts the task to its persisted form
func (t *Task) record() (store.TaskRecord, error) {
	rec := store.TaskRecord{
		ID:          t.ID,
		Description: t.Description,
		OneShotAt:   t.OneShotAt,
		Retry:       t.Retry,
		Timezone:    t.Timezone,
		Enabled:     t.Enabled,
	}
	if !isNone(t.Recurrence) {
		doc, err := trigger.MarshalRecurrence(t.Recurrence)
		if err != nil {
			return store.TaskRecord{}, fmt.Errorf("failed to encode recurrence of %s: %w", t.ID, err)
		}
		rec.Recurrence = doc
	}
	return rec, nil
}

// taskFromRecord rebuilds a task from its persisted form. The expression is
// compiled again by the registry.
func taskFromRecord(rec store.TaskRecord) (*Task, error) {
	t := &Task{
		ID:          rec.ID,
		Description: rec.Description,
		OneShotAt:   rec.OneShotAt,
		Retry:       rec.Retry,
		Timezone:    rec.Timezone,
		Enabled:     rec.Enabled,
	}
	if len(rec.Recurrence) > 0 {
		r, err := trigger.DecodeRecurrence(rec.Recurrence)
		if err != nil {
			return nil, fmt.Errorf("failed to decode recurrence of %s: %w", rec.ID, err)
		}
		t.Recurrence = r
	}
	return t, nil
}
