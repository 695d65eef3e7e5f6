package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/muaviaUsmani/tempo/pkg/execution"
)

var (
	globalCollector *Collector
	once            sync.Once
)

// Collector keeps this process's planner counters and the outcome tallies it
// has seen per task. Cross-process task health is read from the store.
type Collector struct {
	outcomesRecorded  atomic.Int64
	duplicatesDropped atomic.Int64
	retriesArmed      atomic.Int64
	retriesExhausted  atomic.Int64
	conflictsFlagged  atomic.Int64
	armsDispatched    atomic.Int64
	dispatchErrors    atomic.Int64

	mu            sync.RWMutex
	tasks         map[string]*taskStats
	totalDuration time.Duration
	startTime     time.Time
}

type taskStats struct {
	counts        execution.Counts
	totalDuration time.Duration
}

// TaskHealth is the health of one task derived from its outcome tallies
type TaskHealth struct {
	TaskID      string           `json:"task_id"`
	Counts      execution.Counts `json:"counts"`
	Score       float64          `json:"score"`
	Status      execution.Health `json:"status"`
	AvgDuration time.Duration    `json:"avg_duration"`
}

// Metrics is a point-in-time snapshot
type Metrics struct {
	OutcomesRecorded  int64                      `json:"outcomes_recorded"`
	DuplicatesDropped int64                      `json:"duplicates_dropped"`
	RetriesArmed      int64                      `json:"retries_armed"`
	RetriesExhausted  int64                      `json:"retries_exhausted"`
	ConflictsFlagged  int64                      `json:"conflicts_flagged"`
	ArmsDispatched    int64                      `json:"arms_dispatched"`
	DispatchErrors    int64                      `json:"dispatch_errors"`
	ByStatus          map[execution.Status]int64 `json:"by_status"`
	AvgDuration       time.Duration              `json:"avg_duration"`
	Tasks             []TaskHealth               `json:"tasks"`
	Uptime            time.Duration              `json:"uptime"`
}

// NewTaskHealth scores a task from its outcome counts and the summed
// duration of those outcomes
func NewTaskHealth(taskID string, counts execution.Counts, totalDuration time.Duration) TaskHealth {
	h := TaskHealth{TaskID: taskID, Counts: counts}
	if total := counts.Total(); total > 0 {
		h.AvgDuration = totalDuration / time.Duration(total)
	}
	h.Score = execution.HealthScore(counts)
	h.Status = execution.HealthStatus(h.Score)
	return h
}

// Default returns the process-wide collector
func Default() *Collector {
	once.Do(func() {
		globalCollector = NewCollector()
	})
	return globalCollector
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{
		tasks:     make(map[string]*taskStats),
		startTime: time.Now(),
	}
}

// RecordOutcome tallies one de-duplicated execution outcome for taskID
func (c *Collector) RecordOutcome(taskID string, o execution.Outcome) {
	c.outcomesRecorded.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	ts, ok := c.tasks[taskID]
	if !ok {
		ts = &taskStats{}
		c.tasks[taskID] = ts
	}
	ts.counts.Add(o.Status)
	ts.totalDuration += o.Duration
	c.totalDuration += o.Duration
}

// RecordDuplicate counts an outcome delivery dropped by de-duplication
func (c *Collector) RecordDuplicate() { c.duplicatesDropped.Add(1) }

// RecordRetryArmed counts a retry armed after a failure
func (c *Collector) RecordRetryArmed() { c.retriesArmed.Add(1) }

// RecordRetryExhausted counts a task that ran out of retries
func (c *Collector) RecordRetryExhausted() { c.retriesExhausted.Add(1) }

// RecordConflict counts a window reserved or rejected with conflicts
func (c *Collector) RecordConflict() { c.conflictsFlagged.Add(1) }

// RecordDispatched counts an arm handed to the timer runtime
func (c *Collector) RecordDispatched() { c.armsDispatched.Add(1) }

// RecordDispatchError counts a dispatcher failure or panic
func (c *Collector) RecordDispatchError() { c.dispatchErrors.Add(1) }

func (c *Collector) healthLocked(taskID string) TaskHealth {
	if ts, ok := c.tasks[taskID]; ok {
		return NewTaskHealth(taskID, ts.counts, ts.totalDuration)
	}
	return NewTaskHealth(taskID, execution.Counts{}, 0)
}

// Forget drops the tallies of a deleted task
func (c *Collector) Forget(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tasks, taskID)
}

// GetMetrics returns a snapshot; tasks are ordered by ID
func (c *Collector) GetMetrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byStatus := make(map[execution.Status]int64)
	ids := make([]string, 0, len(c.tasks))
	var total int
	for id, ts := range c.tasks {
		ids = append(ids, id)
		byStatus[execution.StatusSuccess] += int64(ts.counts.Success)
		byStatus[execution.StatusFailed] += int64(ts.counts.Failed)
		byStatus[execution.StatusTimeout] += int64(ts.counts.Timeout)
		byStatus[execution.StatusSkipped] += int64(ts.counts.Skipped)
		total += ts.counts.Total()
	}
	sort.Strings(ids)

	tasks := make([]TaskHealth, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, c.healthLocked(id))
	}

	var avg time.Duration
	if total > 0 {
		avg = c.totalDuration / time.Duration(total)
	}

	return Metrics{
		OutcomesRecorded:  c.outcomesRecorded.Load(),
		DuplicatesDropped: c.duplicatesDropped.Load(),
		RetriesArmed:      c.retriesArmed.Load(),
		RetriesExhausted:  c.retriesExhausted.Load(),
		ConflictsFlagged:  c.conflictsFlagged.Load(),
		ArmsDispatched:    c.armsDispatched.Load(),
		DispatchErrors:    c.dispatchErrors.Load(),
		ByStatus:          byStatus,
		AvgDuration:       avg,
		Tasks:             tasks,
		Uptime:            time.Since(c.startTime),
	}
}

// Reset clears all metrics (useful for testing)
func (c *Collector) Reset() {
	c.outcomesRecorded.Store(0)
	c.duplicatesDropped.Store(0)
	c.retriesArmed.Store(0)
	c.retriesExhausted.Store(0)
	c.conflictsFlagged.Store(0)
	c.armsDispatched.Store(0)
	c.dispatchErrors.Store(0)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = make(map[string]*taskStats)
	c.totalDuration = 0
	c.startTime = time.Now()
}
