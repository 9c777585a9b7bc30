// Package schedule runs named background tasks on a fixed interval.
//
// Usage:
//
//	s := schedule.New()
//	s.Every("orphans.sweep", time.Hour, sweep)
//	err := s.Run(ctx) // blocks until ctx is done
package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shashiranjanraj/catalog/pkg/logger"
)

// Task is one unit of scheduled work. A returned error is logged and the
// task stays scheduled.
type Task func(ctx context.Context) error

type entry struct {
	id       string
	interval time.Duration
	task     Task
	lastRun  time.Time

	mu      sync.Mutex
	running bool
}

// Scheduler dispatches due entries once per tick. A run of an entry is
// skipped while its previous run is still executing.
type Scheduler struct {
	tick time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries []*entry
	wg      sync.WaitGroup
}

// New returns a Scheduler that checks for due tasks every second.
func New() *Scheduler {
	return &Scheduler{tick: time.Second, now: time.Now}
}

// Every registers task to run every interval. The first run happens one
// interval after Run starts. A non-positive interval is ignored.
func (s *Scheduler) Every(id string, interval time.Duration, task Task) {
	if interval <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &entry{id: id, interval: interval, task: task})
}

// Len reports how many tasks are registered.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// List returns "id [interval]" for every entry, sorted by id.
func (s *Scheduler) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, fmt.Sprintf("%s  [%s]", e.id, e.interval))
	}
	sort.Strings(out)
	return out
}

// Run blocks until ctx is done, then waits for running tasks to return.
func (s *Scheduler) Run(ctx context.Context) error {
	start := s.now()
	s.mu.Lock()
	for _, e := range s.entries {
		e.lastRun = start
	}
	s.mu.Unlock()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	logger.Info("schedule: started", "tasks", s.Len())

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			logger.Info("schedule: stopped")
			return nil
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			current := make([]*entry, len(s.entries))
			copy(current, s.entries)
			s.mu.Unlock()

			for _, e := range current {
				if now.Sub(e.lastRun) >= e.interval {
					s.dispatch(ctx, e, now)
				}
			}
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, e *entry, now time.Time) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		logger.Warn("schedule: skipping overlapping task", "id", e.id)
		return
	}
	e.running = true
	e.lastRun = now
	e.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
			if r := recover(); r != nil {
				logger.Error("schedule: task panicked", "id", e.id, "panic", r)
			}
		}()

		if err := e.task(ctx); err != nil {
			logger.Error("schedule: task failed", "id", e.id, "error", err)
		}
	}()
}
