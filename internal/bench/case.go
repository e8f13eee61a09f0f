package bench

import (
	"context"
	"fmt"
	"time"

	"github.com/xssbench/xssbench/internal/harness"
	"github.com/xssbench/xssbench/internal/sanitize"
	"github.com/xssbench/xssbench/internal/vector"
	"github.com/xssbench/xssbench/internal/verify"
)

// Case outcomes. Lossiness is orthogonal: an executed case can also be
// lossy, and OutcomeLossy is only reported when the case otherwise passed.
const (
	OutcomePass     = "pass"
	OutcomeXSS      = "xss"
	OutcomeHTTPLeak = "http_leak"
	OutcomeLossy    = "lossy-flag"
	OutcomeSkip     = "skip"
	OutcomeError    = "error"
)

// CaseResult is the recorded judgment for one sanitizer and one vector.
type CaseResult struct {
	Sanitizer          string `json:"sanitizer"`
	Browser            string `json:"browser"`
	VectorID           string `json:"vector_id"`
	PayloadContext     string `json:"payload_context"`
	RunPayloadContext  string `json:"run_payload_context"`
	Outcome            string `json:"outcome"`
	Executed           bool   `json:"executed"`
	Lossy              bool   `json:"lossy"`
	LossyDetails       string `json:"lossy_details,omitempty"`
	Details            string `json:"details,omitempty"`
	SanitizerInputHTML string `json:"sanitizer_input_html"`
	SanitizedHTML      string `json:"sanitized_html,omitempty"`
	RenderedHTML       string `json:"rendered_html,omitempty"`
}

// adaptInput shapes the raw payload for sanitizer input. Fragment
// payloads pass through; URL and handler payloads are embedded in the
// markup a consumer would put them in, and the case then runs as plain
// HTML.
func adaptInput(v vector.Vector) (string, vector.PayloadContext) {
	switch v.PayloadContext {
	case vector.ContextHref:
		return `<a href="` + v.PayloadHTML + `">x</a>`, vector.ContextHTML
	case vector.ContextOnerrorAttr:
		return `<img src="nonexistent://x" onerror="` + v.PayloadHTML + `">`, vector.ContextHTML
	default:
		return v.PayloadHTML, v.PayloadContext
	}
}

// runCase executes one cell of the matrix on an existing session.
func runCase(ctx context.Context, sess *harness.Session, s sanitize.Sanitizer, v vector.Vector, timeout time.Duration) CaseResult {
	res := CaseResult{
		Sanitizer:      s.Name,
		Browser:        sess.BrowserName(),
		VectorID:       v.ID,
		PayloadContext: string(v.PayloadContext),
	}

	if !s.Supports(v.PayloadContext) {
		res.Outcome = OutcomeSkip
		res.RunPayloadContext = string(v.PayloadContext)
		res.Details = fmt.Sprintf("sanitizer %s does not support context %s", s.Name, v.PayloadContext)
		return res
	}

	input, runCtx := adaptInput(v)
	res.SanitizerInputHTML = input
	res.RunPayloadContext = string(runCtx)

	sanitized, err := s.Sanitize(input)
	if err != nil {
		res.Outcome = OutcomeError
		res.Details = fmt.Sprintf("sanitize: %v", err)
		return res
	}
	res.SanitizedHTML = sanitized

	if v.ExpectedTags != nil && v.PayloadContext.AllowsExpectedTags() {
		check := verify.Check(sanitized, v.ExpectedTags)
		res.Lossy = check.Lossy
		res.LossyDetails = check.Details
	}

	window := harness.AutoTimeout(v.PayloadHTML, sanitized, timeout)
	run, err := sess.Run(ctx, sanitized, runCtx, window)
	if err != nil {
		res.Outcome = OutcomeError
		res.Details = fmt.Sprintf("harness: %v", err)
		return res
	}
	res.RenderedHTML = run.RenderedHTML
	res.Executed = run.Executed
	res.Details = run.Details

	switch run.Verdict {
	case harness.VerdictXSS:
		res.Outcome = OutcomeXSS
	case harness.VerdictHTTPLeak:
		res.Outcome = OutcomeHTTPLeak
	default:
		if res.Lossy {
			res.Outcome = OutcomeLossy
		} else {
			res.Outcome = OutcomePass
		}
	}
	return res
}
