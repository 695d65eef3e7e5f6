package scheduler

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/muaviaUsmani/tempo/pkg/retry"
	"github.com/muaviaUsmani/tempo/pkg/trigger"
)

var (
	// taskIDPattern validates task IDs (alphanumeric, underscores, hyphens)
	taskIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// ErrTaskNotFound is returned for operations on an unknown task
	ErrTaskNotFound = errors.New("task not found")
)

// Registry holds the compiled tasks known to a planner. Tasks are copied on
// the way in and out, so callers never share state with the registry.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewRegistry creates an empty task registry
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[string]*Task),
	}
}

// Put validates and compiles a task and stores it, replacing any task with
// the same ID wholesale
func (r *Registry) Put(task *Task) error {
	compiled, err := r.prepare(task)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.tasks[compiled.ID] = compiled
	r.mu.Unlock()
	return nil
}

func (r *Registry) prepare(task *Task) (*Task, error) {
	if task == nil {
		return nil, fmt.Errorf("invalid task: task cannot be nil")
	}

	compiled := *task
	if compiled.Timezone == "" {
		compiled.Timezone = "UTC"
	}
	if compiled.Retry == (retry.Policy{}) {
		compiled.Retry = retry.DefaultPolicy()
	}
	if err := validate(&compiled); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}

	expr, err := compiled.compile()
	if err != nil {
		return nil, fmt.Errorf("invalid task %s: %w", task.ID, err)
	}
	compiled.Expression = expr
	return &compiled, nil
}

// Get retrieves a copy of a task by ID
func (r *Registry) Get(id string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.tasks[id]
	if !exists {
		return nil, false
	}
	c := *t
	return &c, true
}

// List returns copies of all registered tasks ordered by ID
func (r *Registry) List() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		c := *t
		tasks = append(tasks, &c)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks
}

// Count returns the number of registered tasks
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// Disable stops a task from being armed without removing it
func (r *Registry) Disable(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.tasks[id]
	if !exists {
		return fmt.Errorf("%s: %w", id, ErrTaskNotFound)
	}
	t.Enabled = false
	return nil
}

// Remove deletes a task. It reports whether the task existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.tasks[id]
	delete(r.tasks, id)
	return exists
}

// NextRun returns the first fire of the task strictly after `after`,
// evaluated in the task's timezone. ok is false when the task has no trigger
// or will never fire again.
func (r *Registry) NextRun(task *Task, after time.Time) (next time.Time, ok bool, err error) {
	expr := task.Expression
	if expr.IsZero() {
		if expr, err = task.compile(); err != nil {
			return time.Time{}, false, err
		}
		if expr.IsZero() {
			return time.Time{}, false, nil
		}
	}

	loc, err := task.location()
	if err != nil {
		return time.Time{}, false, err
	}
	return trigger.NextFire(expr, after, loc)
}

func validate(task *Task) error {
	if task.ID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	if !taskIDPattern.MatchString(task.ID) {
		return fmt.Errorf("task ID must contain only alphanumeric characters, underscores, and hyphens")
	}

	if task.Timezone != "" && task.Timezone != "UTC" {
		if _, err := time.LoadLocation(task.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", task.Timezone, err)
		}
	}

	if err := task.Retry.Validate(); err != nil {
		return err
	}
	return nil
}
