package generator

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/MeKo-Tech/gobar/internal/barcode"
)

// State is the lifecycle position of a Task.
type State int32

const (
	StateIdle State = iota
	StateStarted
	StateSucceeded
	StateFailed
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarted:
		return "started"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Task is the handle of a submitted request.
type Task struct {
	id     string
	req    barcode.Request
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	state  atomic.Int32

	// written by the worker before done is closed
	outcome barcode.Outcome
	err     error
}

// ID returns the unique task identifier.
func (t *Task) ID() string { return t.id }

// Request returns the request the task was created for.
func (t *Task) Request() barcode.Request { return t.req }

// State returns the current lifecycle state.
func (t *Task) State() State { return State(t.state.Load()) }

// Done is closed after OnFinish has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel asks the task to stop. A task that has not started yet fails with
// context.Canceled; a running task stops at the next stage boundary.
func (t *Task) Cancel() { t.cancel() }

// Wait blocks until the task finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) (barcode.Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, t.err
	case <-ctx.Done():
		return barcode.Outcome{}, ctx.Err()
	}
}

func (t *Task) run(g *Generator, l Listener) {
	defer close(t.done)
	defer t.cancel()

	t.state.Store(int32(StateStarted))
	notify(g.logger, t.id, "start", l.OnStart)

	t.outcome, t.err = g.Generate(t.ctx, t.req)
	if t.err != nil {
		t.state.Store(int32(StateFailed))
		notify(g.logger, t.id, "failure", func() { l.OnFailure(t.err) })
	} else {
		t.state.Store(int32(StateSucceeded))
		notify(g.logger, t.id, "success", func() { l.OnSuccess(t.outcome) })
	}

	t.state.Store(int32(StateFinished))
	notify(g.logger, t.id, "finish", l.OnFinish)
}

// notify runs a listener callback so that a panicking listener cannot skip
// the remaining notifications or kill the worker.
func notify(logger *slog.Logger, id, event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Listener panicked", "task_id", id, "event", event, "panic", r)
		}
	}()
	fn()
}
