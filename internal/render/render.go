package render

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Majd-SaaS/prospection/internal/domain"
)

// Outcomes renders a result list as a table or a JSON array.
func Outcomes(results []domain.Outcome, format string) (string, error) {
	switch format {
	case "json":
		payload := results
		if payload == nil {
			payload = []domain.Outcome{}
		}
		b, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b) + "\n", nil
	case "", "table":
		var b strings.Builder
		tw := table.NewWriter()
		tw.SetOutputMirror(&b)
		tw.AppendHeader(table.Row{"URL", "Status", "Reason"})
		for _, r := range results {
			tw.AppendRow(table.Row{r.URL, r.Status, r.Reason})
		}
		tw.Render()
		b.WriteString("\n")
		return b.String(), nil
	default:
		return "", fmt.Errorf("unknown output format %q", format)
	}
}

// Emit prints rendered output to stdout and optionally writes the same text
// to a file for capture over SSH.
func Emit(rendered, outputFile string) error {
	fmt.Print(rendered)
	if outputFile == "" {
		return nil
	}
	if err := os.WriteFile(outputFile, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}

// ExitCode is non-zero when any outcome is an error.
func ExitCode(results []domain.Outcome) int {
	for _, r := range results {
		if r.IsError() {
			return 1
		}
	}
	return 0
}
