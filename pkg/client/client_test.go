package client

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/muaviaUsmani/tempo/internal/logger"
	"github.com/muaviaUsmani/tempo/internal/metrics"
	"github.com/muaviaUsmani/tempo/internal/scheduler"
	"github.com/muaviaUsmani/tempo/pkg/dependency"
	"github.com/muaviaUsmani/tempo/pkg/execution"
	"github.com/muaviaUsmani/tempo/pkg/overlap"
	"github.com/muaviaUsmani/tempo/pkg/retry"
	"github.com/muaviaUsmani/tempo/pkg/trigger"
)

var now = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, configure func(*scheduler.Options)) *Client {
	mr := miniredis.RunT(t)

	opts := scheduler.DefaultOptions()
	opts.Metrics = metrics.NewCollector()
	if configure != nil {
		configure(&opts)
	}

	c, err := NewClientWithOptions("redis://"+mr.Addr(), opts)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	c.planner.SetLogger(&logger.NoOpLogger{})
	c.now = func() time.Time { return now }
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewClient("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer c.Close()

	if c.Planner() == nil {
		t.Error("expected planner to be created")
	}

	if _, err := NewClient("redis://127.0.0.1:1"); err == nil {
		t.Error("expected error for unreachable Redis")
	}
}

func TestSchedule_ArmsFirstRun(t *testing.T) {
	c := newTestClient(t, nil)

	at, err := c.Schedule("weekly_report", trigger.Weekly{DayOfWeek: 1, Hour: 10, Minute: 30}, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	// 2024-03-04 is a Monday
	expected := time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC)
	if at == nil || !at.Equal(expected) {
		t.Errorf("expected first run %v, got %v", expected, at)
	}

	st, _ := c.State("weekly_report")
	if st.NextRunAt == nil || !st.NextRunAt.Equal(expected) {
		t.Errorf("expected next run in state, got %v", st.NextRunAt)
	}
}

func TestSchedule_InvalidRecurrence(t *testing.T) {
	c := newTestClient(t, nil)

	_, err := c.Schedule("bad", trigger.EveryNMinutes{Minutes: 60}, nil)
	var rangeErr *trigger.InvalidRecurrenceError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected InvalidRecurrenceError, got %v", err)
	}
	if rangeErr.Field != "minutes" {
		t.Errorf("expected field minutes, got %s", rangeErr.Field)
	}
}

func TestScheduleOnce(t *testing.T) {
	c := newTestClient(t, nil)

	at, err := c.ScheduleOnce("launch", now.Add(90*time.Second))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	expected := now.Add(2 * time.Minute)
	if at == nil || !at.Equal(expected) {
		t.Errorf("expected one-shot rounded up to %v, got %v", expected, at)
	}
}

func TestScheduleWithoutTrigger(t *testing.T) {
	c := newTestClient(t, nil)

	at, err := c.Schedule("manual", trigger.None{}, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if at != nil {
		t.Errorf("expected nothing armed, got %v", at)
	}
}

func TestReportOutcome_RetryPolicy(t *testing.T) {
	c := newTestClient(t, nil)
	policy := retry.Policy{Enabled: true, MaxRetries: 1, RetryDelay: time.Second, BackoffMultiplier: 2, MaxRetryDelay: time.Minute}
	c.Schedule("sync", trigger.EveryNHours{Hours: 1}, &policy)

	report, err := c.ReportOutcome("sync", execution.Outcome{ID: "1", Status: execution.StatusFailed})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.Exhausted == nil {
		t.Fatal("expected a single allowed retry to be exhausted on the first failure")
	}

	if _, err := c.Schedule("sync", trigger.EveryNHours{Hours: 1}, nil); err != nil {
		t.Fatalf("expected re-registration to succeed, got %v", err)
	}
	report, _ = c.ReportOutcome("sync", execution.Outcome{ID: "2", Status: execution.StatusSuccess})
	if report.State.ConsecutiveFailures != 0 || report.Next == nil {
		t.Errorf("expected re-enabled task to be armed after success, got %+v", report)
	}

	h, err := c.Health("sync")
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if h.Counts.Total() != 2 {
		t.Errorf("expected 2 outcomes tallied, got %d", h.Counts.Total())
	}
}

func TestReserveWindow_UsesConfiguredPolicy(t *testing.T) {
	lenient := newTestClient(t, nil)
	strict := newTestClient(t, func(o *scheduler.Options) { o.RejectConflicts = true })

	w1 := overlap.Window{ID: "a", Start: now, End: now.Add(time.Hour)}
	w2 := overlap.Window{ID: "b", Start: now.Add(30 * time.Minute), End: now.Add(2 * time.Hour)}

	for _, c := range []*Client{lenient, strict} {
		if _, err := c.ReserveWindow("room-1", w1); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}

	res, err := lenient.ReserveWindow("room-1", w2)
	if err != nil || !res.HasConflict() {
		t.Errorf("expected flagged conflict without error, got %v, %v", res.ConflictIDs(), err)
	}

	if _, err := strict.ReserveWindow("room-1", w2); !errors.Is(err, scheduler.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	if err := lenient.ReleaseWindow("room-1", "b"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestAddDependency_UsesConfiguredGuard(t *testing.T) {
	strict := newTestClient(t, func(o *scheduler.Options) { o.StrictDependencies = true })

	strict.AddDependency("extract", "transform", dependency.FinishToStart, 0)
	strict.AddDependency("transform", "load", dependency.FinishToStart, 1)

	if _, err := strict.AddDependency("load", "extract", dependency.FinishToStart, 0); !errors.Is(err, dependency.ErrCycle) {
		t.Errorf("expected ErrCycle, got %v", err)
	}

	ancestors, _ := strict.Ancestors("load")
	if len(ancestors) != 2 || ancestors[0] != "extract" || ancestors[1] != "transform" {
		t.Errorf("expected [extract transform], got %v", ancestors)
	}
	descendants, _ := strict.Descendants("extract")
	if len(descendants) != 2 {
		t.Errorf("expected 2 descendants, got %v", descendants)
	}

	strict.Schedule("transform", trigger.Daily{Hour: 1}, nil)
	removed, err := strict.RemoveTask("transform")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 edges removed, got %d", removed)
	}
}

func TestDisable(t *testing.T) {
	c := newTestClient(t, nil)
	c.Schedule("nightly", trigger.Daily{Hour: 2}, nil)

	if err := c.Disable("nightly"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	pending, _ := c.Planner().Queue().Pending(c.ctx, "nightly")
	if pending != nil {
		t.Errorf("expected no pending arm after disable, got %+v", pending)
	}

	if err := c.Disable("missing"); !errors.Is(err, scheduler.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestReportOutcome_ConcurrentRedelivery(t *testing.T) {
	c := newTestClient(t, nil)
	c.Schedule("ingest", trigger.EveryNMinutes{Minutes: 5}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.ReportOutcome("ingest", execution.Outcome{ID: "same-delivery", Status: execution.StatusSuccess})
		}()
	}
	wg.Wait()

	st, _ := c.State("ingest")
	if st.ExecutionCount != 1 {
		t.Errorf("expected outcome applied once, got %d", st.ExecutionCount)
	}
}
