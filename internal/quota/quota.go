package quota

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// Unbounded is returned by Remaining when the quota is disabled.
const Unbounded = math.MaxInt

type state struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Tracker persists a per-calendar-day counter of processed items. The count
// resets when the wall-clock date changes (process-local timezone). Single
// writer is assumed; two processes sharing one quota file need external
// locking.
type Tracker struct {
	Path string
	Now  func() time.Time

	count int
}

// NewTracker loads persisted state. A read error or a stale date both mean
// "no prior state": the count starts at zero, and the stale value stays on
// disk until the next Record.
func NewTracker(path string, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	t := &Tracker{Path: path, Now: now}
	data, err := os.ReadFile(path)
	if err != nil {
		return t
	}
	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return t
	}
	if s.Date == t.today() {
		t.count = s.Count
	}
	return t
}

func (t *Tracker) today() string {
	return t.Now().Format("2006-01-02")
}

// Used reports how many items were recorded today.
func (t *Tracker) Used() int { return t.count }

// Remaining returns how many items may still be processed today, or
// Unbounded when limit disables the quota.
func (t *Tracker) Remaining(limit int) int {
	if limit <= 0 {
		return Unbounded
	}
	if t.count >= limit {
		return 0
	}
	return limit - t.count
}

// Record counts one processed item and persists {today, count} immediately.
// No-op when the quota is disabled.
func (t *Tracker) Record(limit int) error {
	if limit <= 0 {
		return nil
	}
	t.count++
	data, err := json.Marshal(state{Date: t.today(), Count: t.count})
	if err != nil {
		return err
	}
	if dir := filepath.Dir(t.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create quota dir: %w", err)
		}
	}
	if err := os.WriteFile(t.Path, data, 0o644); err != nil {
		return fmt.Errorf("persist quota: %w", err)
	}
	return nil
}
