package events

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Majd-SaaS/prospection/internal/domain"
)

// ResultLog appends completed outcomes to a CSV file as each one arrives, so
// a crash loses at most the in-flight item. The header row is written only
// when the file is created.
type ResultLog struct {
	Path string
	Now  func() time.Time
}

var resultHeader = []string{"timestamp", "url", "status", "reason"}

// Append writes one outcome row, creating the file (and parent directories)
// with a header on first use.
func (l ResultLog) Append(o domain.Outcome) error {
	if l.Path == "" {
		return nil
	}
	now := l.Now
	if now == nil {
		now = time.Now
	}
	if dir := filepath.Dir(l.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create result log dir: %w", err)
		}
	}
	_, statErr := os.Stat(l.Path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open result log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(resultHeader); err != nil {
			return err
		}
	}
	ts := now().UTC().Truncate(time.Second).Format(time.RFC3339)
	if err := w.Write([]string{ts, o.URL, o.Status, o.Reason}); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}
