// Package task implements the acquisition queue: named jobs that move
// through Idle, Running, Completed and Failed states, executed one at a time
// by a Runner.
package task

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// State is the lifecycle position of a task.
type State int

const (
	Idle State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Func is the work a task performs. It should return promptly once ctx is
// canceled.
type Func func(ctx context.Context) error

// Task is a single queued job.
type Task struct {
	Description string
	Index       int

	run Func

	mu     sync.Mutex
	state  State
	reason string
}

// New returns an idle task.
func New(index int, description string, run Func) *Task {
	return &Task{Description: description, Index: index, run: run}
}

// State returns the current state and, for failed tasks, the failure reason.
func (t *Task) State() (State, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state, t.reason
}

// IsIdle reports whether the task has not started yet.
func (t *Task) IsIdle() bool {
	s, _ := t.State()
	return s == Idle
}

func (t *Task) setState(s State, reason string) {
	t.mu.Lock()
	t.state = s
	t.reason = reason
	t.mu.Unlock()
}

// List is an ordered task queue with a cursor at the task to run next.
type List struct {
	mu      sync.Mutex
	tasks   []*Task
	current int
}

// NewList returns an empty queue.
func NewList() *List {
	return &List{current: -1}
}

// Add appends a task built from description and run. The first task added
// becomes current.
func (l *List) Add(description string, run Func) *Task {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := New(len(l.tasks), description, run)
	l.tasks = append(l.tasks, t)
	if l.current < 0 {
		l.current = 0
	}
	return t
}

// Current returns the task at the cursor, if any.
func (l *List) Current() (*Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current < 0 || l.current >= len(l.tasks) {
		return nil, false
	}
	return l.tasks[l.current], true
}

// Advance moves the cursor to the next task, clamping at the end of the
// queue.
func (l *List) Advance() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current < 0 {
		return
	}
	if l.current < len(l.tasks)-1 {
		l.current++
	}
}

// Len returns the number of queued tasks.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// Tasks returns the queued tasks in order.
func (l *List) Tasks() []*Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Task, len(l.tasks))
	copy(out, l.tasks)
	return out
}

// interruptReason matches what the controller reports when an operator
// stops a running acquisition.
const interruptReason = "Interrupted by user."

// Runner executes queued tasks sequentially.
type Runner struct {
	list *List
	log  *logrus.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRunner returns a runner over list. log must not be nil.
func NewRunner(list *List, log *logrus.Logger) *Runner {
	return &Runner{
		list: list,
		log:  log,
		stop: make(chan struct{}),
	}
}

// Run executes tasks from the cursor forward until the queue is exhausted,
// the runner is stopped, or ctx is canceled. A stopped or canceled run marks
// the in-flight task failed with an interruption reason.
func (r *Runner) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-r.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		t, ok := r.list.Current()
		if !ok || !t.IsIdle() {
			return
		}

		select {
		case <-ctx.Done():
			t.setState(Failed, interruptReason)
			return
		default:
		}

		t.setState(Running, "")
		r.log.WithFields(logrus.Fields{
			"task":  t.Index,
			"descr": t.Description,
		}).Info("task started")

		err := t.run(ctx)
		switch {
		case err == nil:
			t.setState(Completed, "")
			r.log.WithField("task", t.Index).Info("task completed")
		case ctx.Err() != nil:
			t.setState(Failed, interruptReason)
			r.log.WithField("task", t.Index).Warn("task interrupted")
			return
		default:
			t.setState(Failed, err.Error())
			r.log.WithError(err).WithField("task", t.Index).Error("task failed")
		}

		r.list.Advance()

		// Advance clamps at the last task; if it is no longer idle the
		// loop above exits.
	}
}

// Stop interrupts the in-flight task and halts the runner.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}
