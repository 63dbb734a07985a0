package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Majd-SaaS/prospection/internal/domain"
)

// Repo wraps the workspace database. All access to companies, employees and
// the event log goes through it.
type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// LatestEvents returns the n most recent action log rows, newest first.
func (r Repo) LatestEvents(ctx context.Context, n int) ([]domain.Event, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,ts,type,COALESCE(url,''),COALESCE(status,''),COALESCE(reason,'') FROM events ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.URL, &e.Status, &e.Reason); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
