// Package scheduler drives the periodic pipeline tasks. Each task runs on
// its own timer with an at-most-one-concurrent-run guarantee; an overdue
// tick is skipped, never queued.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Task is one periodic job. Cron, when set, takes precedence over Interval;
// Offset staggers the first run so tasks sharing a backing store do not all
// fire at startup.
type Task struct {
	Name     string
	Interval time.Duration
	Cron     string
	Offset   time.Duration
	Run      func(ctx context.Context)

	running atomic.Bool
}

// TryRun executes the task unless a run is already in flight, in which case
// it reports false and does nothing. Out-of-schedule triggers share the same
// guard as timer ticks.
func (t *Task) TryRun(ctx context.Context) bool {
	if !t.running.CompareAndSwap(false, true) {
		log.Printf("scheduler: %s still running, tick skipped", t.Name)
		return false
	}
	defer t.running.Store(false)
	t.Run(ctx)
	return true
}

func (t *Task) nextDelay() time.Duration {
	if t.Cron != "" {
		if d := nextCronDuration(t.Cron); d > 0 {
			return d
		}
		log.Printf("scheduler: %s: bad cron expression %q, falling back to interval", t.Name, t.Cron)
	}
	return t.Interval
}

// Scheduler owns one goroutine per task between Start and Stop.
type Scheduler struct {
	tasks  []*Task
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler for the given tasks.
func New(tasks ...*Task) *Scheduler {
	return &Scheduler{tasks: tasks}
}

// Start validates every task and launches its timer loop. It returns
// immediately; the loops run until Stop or the parent context ends.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, t := range s.tasks {
		if t.Run == nil {
			return fmt.Errorf("scheduler: task %q has no run function", t.Name)
		}
		if t.Interval <= 0 && t.Cron == "" {
			return fmt.Errorf("scheduler: task %q has neither interval nor cron", t.Name)
		}
	}
	ctx, s.cancel = context.WithCancel(ctx)
	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, t)
	}
	return nil
}

// Stop cancels all task loops and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t *Task) {
	defer s.wg.Done()

	first := t.Offset
	if t.Cron != "" {
		first += t.nextDelay()
	} else if first <= 0 {
		first = t.Interval
	}
	log.Printf("scheduler: %s first run in %s", t.Name, first)

	timer := time.NewTimer(first)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			t.TryRun(ctx)
			timer.Reset(t.nextDelay())
		}
	}
}
