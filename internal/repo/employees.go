package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Majd-SaaS/prospection/internal/domain"
)

// InsertEmployee stores an employee profile link, optionally attached to a
// company by its link. Duplicate links for the same company are skipped.
func (r Repo) InsertEmployee(ctx context.Context, link, companyLink, createdAt string) (bool, error) {
	var companyID any
	if companyLink != "" {
		c, err := r.GetCompanyByLink(ctx, companyLink)
		if err == nil {
			companyID = c.ID
		} else if err != ErrNotFound {
			return false, err
		}
	}
	var exists int
	err := r.DB.QueryRowContext(ctx,
		`SELECT 1 FROM employees WHERE link=? AND COALESCE(company_id,0)=COALESCE(?,0)`, link, companyID).Scan(&exists)
	if err == nil {
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, err
	}
	if _, err := r.DB.ExecContext(ctx,
		`INSERT INTO employees(link,company_id,processed,created_at) VALUES (?,?,0,?)`,
		link, companyID, createdAt); err != nil {
		return false, fmt.Errorf("insert employee: %w", err)
	}
	return true, nil
}

// FetchUnprocessedEmployees lists employees not yet connected, oldest first,
// with their company attached when known.
func (r Repo) FetchUnprocessedEmployees(ctx context.Context) ([]domain.Employee, error) {
	return r.listEmployees(ctx, 0)
}

// FetchProcessedEmployees lists employees already connected, oldest first.
func (r Repo) FetchProcessedEmployees(ctx context.Context) ([]domain.Employee, error) {
	return r.listEmployees(ctx, 1)
}

func (r Repo) listEmployees(ctx context.Context, processed int) ([]domain.Employee, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT e.id, e.link, COALESCE(e.company_id,0), e.processed, e.created_at,
		       COALESCE(c.name,''), COALESCE(c.link,'')
		FROM employees e LEFT JOIN companies c ON c.id = e.company_id
		WHERE e.processed=? ORDER BY e.id`, processed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Employee
	for rows.Next() {
		var e domain.Employee
		var companyName, companyLink string
		if err := rows.Scan(&e.ID, &e.Link, &e.CompanyID, &e.Processed, &e.CreatedAt, &companyName, &companyLink); err != nil {
			return nil, err
		}
		if e.CompanyID != 0 {
			e.Company = &domain.Company{ID: e.CompanyID, Name: companyName, Link: companyLink}
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// MarkEmployeeProcessed flags one employee as connected.
func (r Repo) MarkEmployeeProcessed(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE employees SET processed=1 WHERE id=?`, id)
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

// EmployeeStats reports connect progress over all employees.
func (r Repo) EmployeeStats(ctx context.Context) (domain.Stats, error) {
	return r.stats(ctx, `SELECT COUNT(*), COALESCE(SUM(processed),0) FROM employees`)
}
