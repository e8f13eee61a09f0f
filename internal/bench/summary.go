package bench

// SummaryRow aggregates one sanitizer's results on one browser.
type SummaryRow struct {
	Sanitizer string `json:"sanitizer"`
	Browser   string `json:"browser"`
	Total     int    `json:"total"`
	Pass      int    `json:"pass"`
	XSS       int    `json:"xss"`
	HTTPLeak  int    `json:"http_leak"`
	Lossy     int    `json:"lossy"`
	Errors    int    `json:"errors"`
	Skipped   int    `json:"skipped"`
}

// Summarize folds results into per-sanitizer rows, preserving first
// appearance order. The Lossy column counts the orthogonal flag, not
// just lossy-flag outcomes, so an executed-and-lossy case shows in both
// XSS and Lossy.
func Summarize(results []CaseResult) []SummaryRow {
	index := map[[2]string]int{}
	var rows []SummaryRow
	for _, res := range results {
		key := [2]string{res.Sanitizer, res.Browser}
		i, ok := index[key]
		if !ok {
			i = len(rows)
			index[key] = i
			rows = append(rows, SummaryRow{Sanitizer: res.Sanitizer, Browser: res.Browser})
		}
		row := &rows[i]
		row.Total++
		switch res.Outcome {
		case OutcomeXSS:
			row.XSS++
		case OutcomeHTTPLeak:
			row.HTTPLeak++
		case OutcomeError:
			row.Errors++
		case OutcomeSkip:
			row.Skipped++
		case OutcomeLossy, OutcomePass:
			row.Pass++
		}
		if res.Lossy {
			row.Lossy++
		}
	}
	return rows
}

// Exit codes for the benchmark command.
const (
	ExitClean    = 0
	ExitExecuted = 1
	ExitDegraded = 2
)

// ExitCode maps a result set to the process exit code. A degraded run
// (errors or lossy sanitization) dominates even when payloads also
// executed.
func ExitCode(results []CaseResult) int {
	executed := false
	for _, res := range results {
		if res.Outcome == OutcomeError || res.Lossy {
			return ExitDegraded
		}
		if res.Executed || res.Outcome == OutcomeXSS || res.Outcome == OutcomeHTTPLeak {
			executed = true
		}
	}
	if executed {
		return ExitExecuted
	}
	return ExitClean
}
