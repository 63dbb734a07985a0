package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Majd-SaaS/prospection/internal/domain"
)

const companyColumns = `id,COALESCE(name,''),link,processed,created_at`

func scanCompany(scanner interface{ Scan(...any) error }) (domain.Company, error) {
	var c domain.Company
	err := scanner.Scan(&c.ID, &c.Name, &c.Link, &c.Processed, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// InsertCompany stores a company record, ignoring rows whose link already
// exists. Returns true when a new row was inserted.
func (r Repo) InsertCompany(ctx context.Context, name, link, createdAt string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO companies(name,link,processed,created_at) VALUES (?,?,0,?)`,
		name, link, createdAt)
	if err != nil {
		return false, fmt.Errorf("insert company: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetCompanyByLink looks a company up by its unique link.
func (r Repo) GetCompanyByLink(ctx context.Context, link string) (domain.Company, error) {
	return scanCompany(r.DB.QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE link=?`, link))
}

// FetchUnprocessedCompanies lists companies not yet followed, oldest first.
func (r Repo) FetchUnprocessedCompanies(ctx context.Context) ([]domain.Company, error) {
	return r.listCompanies(ctx, `SELECT `+companyColumns+` FROM companies WHERE processed=0 ORDER BY id`)
}

// FetchProcessedCompanies lists companies already followed, oldest first.
func (r Repo) FetchProcessedCompanies(ctx context.Context) ([]domain.Company, error) {
	return r.listCompanies(ctx, `SELECT `+companyColumns+` FROM companies WHERE processed=1 ORDER BY id`)
}

func (r Repo) listCompanies(ctx context.Context, query string) ([]domain.Company, error) {
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// MarkCompanyProcessed flags one company as followed.
func (r Repo) MarkCompanyProcessed(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE companies SET processed=1 WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CompanyStats reports follow progress over all companies.
func (r Repo) CompanyStats(ctx context.Context) (domain.Stats, error) {
	return r.stats(ctx, `SELECT COUNT(*), COALESCE(SUM(processed),0) FROM companies`)
}

func (r Repo) stats(ctx context.Context, query string) (domain.Stats, error) {
	var s domain.Stats
	if err := r.DB.QueryRowContext(ctx, query).Scan(&s.Total, &s.Processed); err != nil {
		return s, err
	}
	s.Remaining = s.Total - s.Processed
	if s.Total > 0 {
		s.Percent = float64(s.Processed) / float64(s.Total) * 100
	}
	return s, nil
}
