package scheduler

import (
	"context"
	"errors"
	"time"

	tempoerrors "github.com/muaviaUsmani/tempo/internal/errors"
	"github.com/muaviaUsmani/tempo/internal/queue"
)

// Dispatcher hands a due arm to the timer runtime
type Dispatcher interface {
	Dispatch(ctx context.Context, a queue.Arm) error
}

// DispatcherFunc adapts a function to a Dispatcher
type DispatcherFunc func(ctx context.Context, a queue.Arm) error

// Dispatch calls f(ctx, a)
func (f DispatcherFunc) Dispatch(ctx context.Context, a queue.Arm) error {
	return f(ctx, a)
}

// Run pops due arms every interval and passes them to d until ctx is done.
// An arm whose dispatch fails or panics is armed again one interval later.
func (p *Planner) Run(ctx context.Context, d Dispatcher) {
	p.log.Info("Planner started",
		"interval", p.opts.Interval,
		"batch_size", p.opts.BatchSize)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("Planner stopping")
			return
		case <-ticker.C:
			p.tick(ctx, d)
		}
	}
}

// tick dispatches one batch of due arms and returns how many succeeded
func (p *Planner) tick(ctx context.Context, d Dispatcher) int {
	now := p.now()
	arms, err := p.queue.Due(ctx, now, p.opts.BatchSize)
	if err != nil {
		p.log.Error("Failed to pop due arms", "error", err)
	}

	dispatched := 0
	for _, a := range arms {
		err := tempoerrors.SafeCall(func() error {
			return d.Dispatch(ctx, a)
		})
		if err == nil {
			dispatched++
			p.metrics.RecordDispatched()
			p.log.Debug("Arm dispatched", "task_id", a.TaskID, "arm_id", a.ID, "kind", a.Kind)
			continue
		}

		p.metrics.RecordDispatchError()
		var panicErr *tempoerrors.PanicError
		if errors.As(err, &panicErr) {
			p.log.Error("Dispatcher panicked",
				"task_id", a.TaskID,
				"arm_id", a.ID,
				"panic", tempoerrors.FormatPanicForLog(panicErr))
		} else {
			p.log.Error("Failed to dispatch arm",
				"task_id", a.TaskID,
				"arm_id", a.ID,
				"error", err)
		}
		p.requeue(ctx, a, now)
	}
	return dispatched
}

// requeue arms a again after a failed dispatch, unless the task was armed
// anew in the meantime
func (p *Planner) requeue(ctx context.Context, a queue.Arm, now time.Time) {
	err := p.withLock(ctx, p.taskLockKey(a.TaskID), func() error {
		pending, err := p.queue.Pending(ctx, a.TaskID)
		if err != nil || pending != nil {
			return err
		}

		a.At = now.Add(p.opts.Interval)
		_, err = p.queue.Arm(ctx, a)
		return err
	})
	if err != nil {
		p.log.Error("Failed to requeue arm", "task_id", a.TaskID, "arm_id", a.ID, "error", err)
	}
}
