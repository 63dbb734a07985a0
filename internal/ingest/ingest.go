package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Majd-SaaS/prospection/internal/repo"
	"github.com/Majd-SaaS/prospection/internal/target"
)

// Source maps a CSV export's columns onto prospection records. Exports from
// different providers name their columns differently; the presets below
// cover the two supported ones and the columns stay overridable.
type Source struct {
	CompanyNameCol  string
	CompanyLinkCol  string
	EmployeeLinkCol string
}

var (
	// Builtwith exports carry one company per row, no employee links.
	Builtwith = Source{CompanyNameCol: "Company", CompanyLinkCol: "Linkedin"}
	// Mantiks exports may carry an employee profile link per row.
	Mantiks = Source{CompanyNameCol: "Company name", CompanyLinkCol: "Company LinkedIn", EmployeeLinkCol: "LinkedIn profil"}
)

// ForName returns a column preset by provider name.
func ForName(name string) (Source, error) {
	switch strings.ToLower(name) {
	case "builtwith":
		return Builtwith, nil
	case "mantiks":
		return Mantiks, nil
	default:
		return Source{}, fmt.Errorf("unknown ingest source %q (want builtwith or mantiks)", name)
	}
}

// Record is one parsed row worth keeping.
type Record struct {
	CompanyName  string
	CompanyLink  string
	EmployeeLink string
}

// Parse reads a CSV export and extracts records using the source's column
// mapping. Rows without a company link are skipped; a missing company link
// column is an error.
func Parse(r io.Reader, src Source) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idx := func(name string) int {
		if name == "" {
			return -1
		}
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
		return -1
	}
	nameIdx := idx(src.CompanyNameCol)
	linkIdx := idx(src.CompanyLinkCol)
	employeeIdx := idx(src.EmployeeLinkCol)
	if linkIdx < 0 {
		return nil, fmt.Errorf("column %q not found in csv header", src.CompanyLinkCol)
	}

	field := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		rec := Record{
			CompanyName:  field(row, nameIdx),
			CompanyLink:  field(row, linkIdx),
			EmployeeLink: field(row, employeeIdx),
		}
		if rec.CompanyLink == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Summary counts what one Load inserted.
type Summary struct {
	Companies int `json:"companies"`
	Employees int `json:"employees"`
	Skipped   int `json:"skipped"`
}

// Loader writes parsed records into the workspace database.
type Loader struct {
	Repo   repo.Repo
	Logger *slog.Logger
	Now    func() time.Time
}

// Load inserts records, normalizing links and skipping duplicates.
func (l Loader) Load(ctx context.Context, records []Record) (Summary, error) {
	now := l.Now
	if now == nil {
		now = time.Now
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	createdAt := now().UTC().Format(time.RFC3339)

	var sum Summary
	for _, rec := range records {
		companyLink, err := target.Normalize(rec.CompanyLink)
		if err != nil {
			sum.Skipped++
			continue
		}
		inserted, err := l.Repo.InsertCompany(ctx, rec.CompanyName, companyLink, createdAt)
		if err != nil {
			return sum, err
		}
		if inserted {
			sum.Companies++
			logger.Info("company added", "name", rec.CompanyName, "link", companyLink)
		} else {
			sum.Skipped++
		}

		if rec.EmployeeLink == "" {
			continue
		}
		employeeLink, err := target.Normalize(rec.EmployeeLink)
		if err != nil {
			sum.Skipped++
			continue
		}
		inserted, err = l.Repo.InsertEmployee(ctx, employeeLink, companyLink, createdAt)
		if err != nil {
			return sum, err
		}
		if inserted {
			sum.Employees++
		} else {
			sum.Skipped++
		}
	}
	return sum, nil
}
