package result

import (
	"context"
	"sync"
	"time"

	"github.com/Majd-SaaS/prospection/internal/domain"
)

// Store collects reports posted by the extension and lets the run loop block
// until the report for a given task arrives. Reports for tasks nobody waits
// on stay in the map for the lifetime of the store; runs are short-lived, so
// abandoned entries are bounded by the number of timed-out tasks. A second
// report for an already-consumed task id is re-inserted and never read again.
type Store struct {
	mu      sync.Mutex
	cond    *sync.Cond
	reports map[string]domain.Report
}

func NewStore() *Store {
	s := &Store{reports: make(map[string]domain.Report)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Add records a report and wakes all waiters. Last write wins when the same
// task id is reported twice.
func (s *Store) Add(taskID string, report domain.Report) {
	s.mu.Lock()
	s.reports[taskID] = report
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Wait blocks until the report for taskID arrives, the timeout elapses, or
// ctx is cancelled. On a hit the report is removed from the map, so each
// report is consumed exactly once. Returns false when no report arrived.
func (s *Store) Wait(ctx context.Context, taskID string, timeout time.Duration) (domain.Report, bool) {
	deadline := time.Now().Add(timeout)
	wake := func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	}
	timer := time.AfterFunc(timeout, wake)
	defer timer.Stop()
	stop := context.AfterFunc(ctx, wake)
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if r, ok := s.reports[taskID]; ok {
			delete(s.reports, taskID)
			return r, true
		}
		if ctx.Err() != nil || !time.Now().Before(deadline) {
			return domain.Report{}, false
		}
		s.cond.Wait()
	}
}

// Len reports how many unconsumed entries the store holds.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}
