package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/Majd-SaaS/prospection/internal/db"
	"github.com/Majd-SaaS/prospection/internal/events"
	"github.com/Majd-SaaS/prospection/internal/migrate"
	"github.com/Majd-SaaS/prospection/internal/repo"
)

func newTestRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}
}

func TestCompanyLifecycle(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	now := "2025-01-01T00:00:00Z"

	inserted, err := r.InsertCompany(ctx, "Acme", "https://linkedin.com/company/acme", now)
	if err != nil || !inserted {
		t.Fatalf("insert: %v %v", inserted, err)
	}
	inserted, err = r.InsertCompany(ctx, "Acme dup", "https://linkedin.com/company/acme", now)
	if err != nil {
		t.Fatalf("dup insert: %v", err)
	}
	if inserted {
		t.Fatal("duplicate link must be ignored")
	}
	if _, err := r.InsertCompany(ctx, "Beta", "https://linkedin.com/company/beta", now); err != nil {
		t.Fatal(err)
	}

	pending, err := r.FetchUnprocessedCompanies(ctx)
	if err != nil || len(pending) != 2 {
		t.Fatalf("pending: %v %v", pending, err)
	}
	if err := r.MarkCompanyProcessed(ctx, pending[0].ID); err != nil {
		t.Fatalf("mark: %v", err)
	}

	done, err := r.FetchProcessedCompanies(ctx)
	if err != nil || len(done) != 1 || done[0].Name != "Acme" {
		t.Fatalf("processed: %v %v", done, err)
	}

	stats, err := r.CompanyStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.Processed != 1 || stats.Remaining != 1 || stats.Percent != 50 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestMarkCompanyProcessedNotFound(t *testing.T) {
	r := newTestRepo(t)
	if err := r.MarkCompanyProcessed(context.Background(), 42); err != repo.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEmployeeLifecycle(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	now := "2025-01-01T00:00:00Z"

	if _, err := r.InsertCompany(ctx, "Acme", "https://linkedin.com/company/acme", now); err != nil {
		t.Fatal(err)
	}
	inserted, err := r.InsertEmployee(ctx, "https://linkedin.com/in/jdoe", "https://linkedin.com/company/acme", now)
	if err != nil || !inserted {
		t.Fatalf("insert employee: %v %v", inserted, err)
	}
	inserted, err = r.InsertEmployee(ctx, "https://linkedin.com/in/jdoe", "https://linkedin.com/company/acme", now)
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Fatal("duplicate employee must be ignored")
	}
	// Employee without a known company still inserts, unattached.
	if _, err := r.InsertEmployee(ctx, "https://linkedin.com/in/loner", "https://linkedin.com/company/ghost", now); err != nil {
		t.Fatal(err)
	}

	pending, err := r.FetchUnprocessedEmployees(ctx)
	if err != nil || len(pending) != 2 {
		t.Fatalf("pending employees: %v %v", pending, err)
	}
	if pending[0].Company == nil || pending[0].Company.Name != "Acme" {
		t.Fatalf("expected attached company, got %+v", pending[0])
	}
	if pending[1].Company != nil {
		t.Fatalf("expected unattached employee, got %+v", pending[1])
	}

	if err := r.MarkEmployeeProcessed(ctx, pending[0].ID); err != nil {
		t.Fatalf("mark: %v", err)
	}
	stats, err := r.EmployeeStats(ctx)
	if err != nil || stats.Processed != 1 || stats.Remaining != 1 {
		t.Fatalf("stats: %+v %v", stats, err)
	}
}

func TestLatestEvents(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	w := events.Writer{DB: r.DB, Now: func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }}

	for _, status := range []string{"follow", "already followed", "error"} {
		if err := w.Append(ctx, "follow.attempt", "https://a", status, ""); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := r.LatestEvents(ctx, 2)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Status != "error" {
		t.Fatalf("expected newest first, got %+v", got[0])
	}
}
