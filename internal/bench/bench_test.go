package bench

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xssbench/xssbench/internal/harness"
	"github.com/xssbench/xssbench/internal/sanitize"
	"github.com/xssbench/xssbench/internal/vector"
)

func htmlVector(id, payload string) vector.Vector {
	return vector.Vector{
		ID:             id,
		Description:    id,
		PayloadHTML:    payload,
		PayloadContext: vector.ContextHTML,
	}
}

func testSession(t *testing.T) *harness.Session {
	t.Helper()
	sess, err := harness.NewSession("goja", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func TestAdaptInput(t *testing.T) {
	input, runCtx := adaptInput(vector.Vector{PayloadHTML: "javascript:alert(1)", PayloadContext: vector.ContextHref})
	assert.Equal(t, `<a href="javascript:alert(1)">x</a>`, input)
	assert.Equal(t, vector.ContextHTML, runCtx)

	input, runCtx = adaptInput(vector.Vector{PayloadHTML: "alert(1)", PayloadContext: vector.ContextOnerrorAttr})
	assert.Equal(t, `<img src="nonexistent://x" onerror="alert(1)">`, input)
	assert.Equal(t, vector.ContextHTML, runCtx)

	input, runCtx = adaptInput(vector.Vector{PayloadHTML: "<b>x</b>", PayloadContext: vector.ContextHTML})
	assert.Equal(t, "<b>x</b>", input)
	assert.Equal(t, vector.ContextHTML, runCtx)
}

func TestRunCaseSkipsUnsupportedContext(t *testing.T) {
	sess := testSession(t)
	v := vector.Vector{ID: "js-1", PayloadHTML: "alert(1)", PayloadContext: vector.ContextJS}

	res := runCase(context.Background(), sess, sanitize.Bluemonday(), v, 0)
	assert.Equal(t, OutcomeSkip, res.Outcome)
	assert.Contains(t, res.Details, "does not support context js")
	assert.Empty(t, res.SanitizedHTML)
}

func TestRunCaseNoopLetsPayloadExecute(t *testing.T) {
	sess := testSession(t)

	res := runCase(context.Background(), sess, sanitize.Noop(), htmlVector("script-1", `<script>alert(1)</script>`), 0)
	assert.Equal(t, OutcomeXSS, res.Outcome)
	assert.True(t, res.Executed)
	assert.Equal(t, "noop", res.Sanitizer)
	assert.Equal(t, "goja", res.Browser)
}

func TestRunCaseBluemondayBlocksPayload(t *testing.T) {
	sess := testSession(t)

	res := runCase(context.Background(), sess, sanitize.Bluemonday(), htmlVector("script-1", `<script>alert(1)</script>`), 0)
	assert.Equal(t, OutcomePass, res.Outcome)
	assert.False(t, res.Executed)
	assert.NotContains(t, res.SanitizedHTML, "<script")
}

func TestRunCaseLossyFlag(t *testing.T) {
	sess := testSession(t)
	v := htmlVector("bold-1", `<b>keep</b>`)
	v.ExpectedTags = []vector.ExpectedTag{{Tag: "b"}}

	res := runCase(context.Background(), sess, sanitize.StripTags(), v, 0)
	assert.Equal(t, OutcomeLossy, res.Outcome)
	assert.True(t, res.Lossy)
	assert.Contains(t, res.LossyDetails, "missing b")
	assert.False(t, res.Executed)
}

func TestRunCaseExecutedAndLossyReportsExecution(t *testing.T) {
	sess := testSession(t)
	v := htmlVector("script-2", `<script>alert(1)</script>`)
	v.ExpectedTags = []vector.ExpectedTag{}

	res := runCase(context.Background(), sess, sanitize.Noop(), v, 0)
	assert.Equal(t, OutcomeXSS, res.Outcome)
	assert.True(t, res.Lossy)
}

func TestRunCaseSanitizerError(t *testing.T) {
	sess := testSession(t)
	broken := sanitize.Sanitizer{
		Name:     "broken",
		Sanitize: func(string) (string, error) { return "", errors.New("boom") },
	}

	res := runCase(context.Background(), sess, broken, htmlVector("v-1", "<b>x</b>"), 0)
	assert.Equal(t, OutcomeError, res.Outcome)
	assert.Contains(t, res.Details, "sanitize: boom")
}

func matrixFixture() ([]sanitize.Sanitizer, []vector.Vector) {
	sanitizers := []sanitize.Sanitizer{sanitize.Noop(), sanitize.Bluemonday()}
	vectors := []vector.Vector{
		htmlVector("clean-1", `<b>hello</b>`),
		htmlVector("script-1", `<script>alert(1)</script>`),
		htmlVector("img-1", `<img src="nonexistent://x" onerror="alert(2)">`),
	}
	return sanitizers, vectors
}

func TestRunnerSequentialMatrixOrder(t *testing.T) {
	sanitizers, vectors := matrixFixture()
	r := NewRunner(sanitizers, vectors, Options{Browsers: []string{"goja"}})

	results, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 6)

	assert.Equal(t, "noop", results[0].Sanitizer)
	assert.Equal(t, "clean-1", results[0].VectorID)
	assert.Equal(t, OutcomePass, results[0].Outcome)
	assert.Equal(t, OutcomeXSS, results[1].Outcome)
	assert.Equal(t, OutcomeXSS, results[2].Outcome)
	assert.Equal(t, "bluemonday", results[3].Sanitizer)
	assert.Equal(t, OutcomePass, results[3].Outcome)
	assert.Equal(t, OutcomePass, results[4].Outcome)
	assert.Equal(t, OutcomePass, results[5].Outcome)
}

func TestRunnerParallelMatchesSequential(t *testing.T) {
	sanitizers, vectors := matrixFixture()

	seq, err := NewRunner(sanitizers, vectors, Options{Browsers: []string{"goja"}}).Run(context.Background())
	require.NoError(t, err)

	par, err := NewRunner(sanitizers, vectors, Options{Browsers: []string{"goja"}, Workers: 3}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, seq, par)
}

func TestRunnerIteratesBrowserList(t *testing.T) {
	vectors := []vector.Vector{htmlVector("script-1", `<script>alert(1)</script>`)}
	opts := Options{Browsers: []string{"goja", "goja-strict"}}
	r := NewRunner([]sanitize.Sanitizer{sanitize.Noop()}, vectors, opts)

	results, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "goja", results[0].Browser)
	assert.Equal(t, "goja-strict", results[1].Browser)
	assert.Equal(t, OutcomeXSS, results[0].Outcome)
	assert.Equal(t, OutcomeXSS, results[1].Outcome)

	par, err := NewRunner([]sanitize.Sanitizer{sanitize.Noop()}, vectors,
		Options{Browsers: opts.Browsers, Workers: 2}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, results, par)
}

func TestRunnerParallelSessionLaunchFailure(t *testing.T) {
	vectors := []vector.Vector{htmlVector("a", "<b>a</b>"), htmlVector("b", "<b>b</b>")}
	r := NewRunner([]sanitize.Sanitizer{sanitize.Noop()}, vectors,
		Options{Browsers: []string{"nosuch"}, Workers: 2})

	results, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Equal(t, OutcomeError, res.Outcome)
		assert.Equal(t, "nosuch", res.Browser)
		assert.Contains(t, res.Details, "start worker session")
	}
}

func TestRunnerFailFastStopsAtFirstExecution(t *testing.T) {
	vectors := []vector.Vector{
		htmlVector("clean-1", `<b>a</b>`),
		htmlVector("script-1", `<script>alert(1)</script>`),
		htmlVector("clean-2", `<b>b</b>`),
	}
	r := NewRunner([]sanitize.Sanitizer{sanitize.Noop()}, vectors, Options{Browsers: []string{"goja"}, FailFast: true})

	results, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, OutcomeXSS, results[1].Outcome)
}

func TestRunnerReportsProgress(t *testing.T) {
	var calls []int
	r := NewRunner([]sanitize.Sanitizer{sanitize.Noop()},
		[]vector.Vector{htmlVector("a", "<b>a</b>"), htmlVector("b", "<b>b</b>")},
		Options{Browsers: []string{"goja"}, Progress: func(done, total int) {
			assert.Equal(t, 2, total)
			calls = append(calls, done)
		}})

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, calls)
}

func TestRunnerHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner([]sanitize.Sanitizer{sanitize.Noop()},
		[]vector.Vector{htmlVector("a", "<b>a</b>")},
		Options{Browsers: []string{"goja"}})
	results, err := r.Run(ctx)
	require.Error(t, err)
	assert.Empty(t, results)
}

func TestSummarize(t *testing.T) {
	results := []CaseResult{
		{Sanitizer: "noop", Browser: "goja", Outcome: OutcomeXSS, Executed: true},
		{Sanitizer: "noop", Browser: "goja", Outcome: OutcomeHTTPLeak},
		{Sanitizer: "noop", Browser: "goja", Outcome: OutcomePass},
		{Sanitizer: "bm", Browser: "goja", Outcome: OutcomeLossy, Lossy: true},
		{Sanitizer: "bm", Browser: "goja", Outcome: OutcomeSkip},
		{Sanitizer: "bm", Browser: "goja", Outcome: OutcomeError},
		{Sanitizer: "bm", Browser: "goja", Outcome: OutcomeXSS, Executed: true, Lossy: true},
	}

	rows := Summarize(results)
	require.Len(t, rows, 2)

	assert.Equal(t, SummaryRow{Sanitizer: "noop", Browser: "goja", Total: 3, Pass: 1, XSS: 1, HTTPLeak: 1}, rows[0])
	assert.Equal(t, SummaryRow{Sanitizer: "bm", Browser: "goja", Total: 4, Pass: 1, XSS: 1, Lossy: 2, Errors: 1, Skipped: 1}, rows[1])
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitClean, ExitCode(nil))
	assert.Equal(t, ExitClean, ExitCode([]CaseResult{{Outcome: OutcomePass}, {Outcome: OutcomeSkip}}))
	assert.Equal(t, ExitExecuted, ExitCode([]CaseResult{{Outcome: OutcomePass}, {Outcome: OutcomeXSS}}))
	assert.Equal(t, ExitExecuted, ExitCode([]CaseResult{{Outcome: OutcomeHTTPLeak}}))
	assert.Equal(t, ExitDegraded, ExitCode([]CaseResult{{Outcome: OutcomeError}}))
	assert.Equal(t, ExitDegraded, ExitCode([]CaseResult{{Outcome: OutcomeLossy, Lossy: true}}))
	assert.Equal(t, ExitDegraded, ExitCode([]CaseResult{{Outcome: OutcomeXSS, Executed: true}, {Outcome: OutcomeError}}))
	assert.Equal(t, ExitDegraded, ExitCode([]CaseResult{{Outcome: OutcomeXSS, Executed: true, Lossy: true}}))
}
