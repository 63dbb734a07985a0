package events

import (
	"context"
	"database/sql"
	"time"
)

// Writer appends action rows to the workspace event log.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

func (w Writer) Append(ctx context.Context, evtType, url, status, reason string) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	_, err := w.DB.ExecContext(ctx, `INSERT INTO events(ts,type,url,status,reason) VALUES (?,?,?,?,?)`,
		ts, evtType, nullable(url), nullable(status), nullable(reason))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
