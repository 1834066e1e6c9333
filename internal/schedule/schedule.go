// Package schedule runs named maintenance tasks on fixed intervals.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrUnknownTask is returned by Tick for a name that was never added.
var ErrUnknownTask = errors.New("unknown task")

// Task is a unit of periodic work.
type Task struct {
	Name     string
	Interval time.Duration
	// RunAtStart runs the task once as soon as the scheduler starts.
	RunAtStart bool
	Run        func(ctx context.Context) error
}

type entry struct {
	Task
	running atomic.Bool
	runs    atomic.Int64
}

// Scheduler owns a set of tasks and the goroutines that tick them. A task
// never overlaps with itself: a tick that lands while the previous run is
// still going is skipped.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New returns a scheduler for tasks.
func New(tasks ...Task) *Scheduler {
	s := &Scheduler{}
	for _, t := range tasks {
		s.Add(t)
	}
	return s
}

// Add registers a task. Tasks added after Start only run through Tick.
func (s *Scheduler) Add(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &entry{Task: t})
}

// Start launches one ticker goroutine per task with a positive interval.
// It is an error to start a scheduler twice without stopping it.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("scheduler already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)

	for _, e := range s.entries {
		if e.Interval <= 0 {
			slog.Debug("schedule: task has no interval, manual only", "task", e.Name)
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, e)
	}
	slog.Debug("schedule: started", "tasks", len(s.entries))
	return nil
}

// Stop cancels running loops and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

// Tick runs the named task once on the calling goroutine. Tests use it to
// drive tasks without waiting on the clock.
func (s *Scheduler) Tick(ctx context.Context, name string) error {
	e := s.lookup(name)
	if e == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	ran, err := s.run(ctx, e)
	if !ran {
		return nil
	}
	return err
}

// Runs reports how many times the named task has completed.
func (s *Scheduler) Runs(name string) int64 {
	if e := s.lookup(name); e != nil {
		return e.runs.Load()
	}
	return 0
}

func (s *Scheduler) lookup(name string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Name == name {
			return e
		}
	}
	return nil
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	defer s.wg.Done()

	if e.RunAtStart {
		s.runLogged(ctx, e)
	}
	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runLogged(ctx, e)
		}
	}
}

func (s *Scheduler) runLogged(ctx context.Context, e *entry) {
	ran, err := s.run(ctx, e)
	if !ran {
		slog.Debug("schedule: previous run still going, skipping", "task", e.Name)
		return
	}
	if err != nil && ctx.Err() == nil {
		slog.Warn("schedule: task failed", "task", e.Name, "err", err)
	}
}

// run executes e unless it is already running.
func (s *Scheduler) run(ctx context.Context, e *entry) (bool, error) {
	if !e.running.CompareAndSwap(false, true) {
		return false, nil
	}
	defer e.running.Store(false)
	err := e.Run(ctx)
	e.runs.Add(1)
	return true, err
}
