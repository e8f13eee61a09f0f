// Package report renders benchmark results for terminals and writes the
// machine-readable run artifact.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/xssbench/xssbench/internal/bench"
)

// Run is the persisted artifact for one benchmark invocation.
type Run struct {
	ID         string             `json:"run_id"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Browsers   []string           `json:"browsers"`
	Summary    []bench.SummaryRow `json:"summary"`
	Results    []bench.CaseResult `json:"results"`
}

// New assembles a run artifact with a fresh run id.
func New(browsers []string, startedAt time.Time, results []bench.CaseResult) Run {
	return Run{
		ID:         uuid.NewString(),
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Browsers:   browsers,
		Summary:    bench.Summarize(results),
		Results:    results,
	}
}

// WriteJSON writes the artifact, creating parent directories as needed.
func (r Run) WriteJSON(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Table prints the per-sanitizer summary.
func Table(w io.Writer, rows []bench.SummaryRow) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SANITIZER\tBROWSER\tXSS\tLEAK\tLOSSY\tERRORS\tSKIPPED\tTOTAL")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			row.Sanitizer, row.Browser, row.XSS, row.HTTPLeak,
			row.Lossy, row.Errors, row.Skipped, row.Total)
	}
	_ = tw.Flush()
}

// Failures prints details for every case worth a second look: executed
// payloads, leaks, lossy sanitization, and harness errors.
func Failures(w io.Writer, results []bench.CaseResult) {
	printSection(w, "Executed payloads", results, func(r bench.CaseResult) (string, bool) {
		if r.Outcome != bench.OutcomeXSS && r.Outcome != bench.OutcomeHTTPLeak {
			return "", false
		}
		return r.Details, true
	})
	printSection(w, "Lossy sanitization", results, func(r bench.CaseResult) (string, bool) {
		if !r.Lossy {
			return "", false
		}
		return r.LossyDetails, true
	})
	printSection(w, "Errors", results, func(r bench.CaseResult) (string, bool) {
		if r.Outcome != bench.OutcomeError {
			return "", false
		}
		return r.Details, true
	})
}

func printSection(w io.Writer, title string, results []bench.CaseResult, pick func(bench.CaseResult) (string, bool)) {
	printed := false
	for _, r := range results {
		detail, ok := pick(r)
		if !ok {
			continue
		}
		if !printed {
			fmt.Fprintf(w, "\n%s:\n", title)
			printed = true
		}
		fmt.Fprintf(w, "  %s / %s@%s", r.Sanitizer, r.VectorID, r.PayloadContext)
		if detail != "" {
			fmt.Fprintf(w, ": %s", detail)
		}
		fmt.Fprintln(w)
	}
}
