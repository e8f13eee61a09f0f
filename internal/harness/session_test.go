package harness

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xssbench/xssbench/internal/vector"
)

func TestAutoTimeout(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		sanitized  string
		configured time.Duration
		want       time.Duration
	}{
		{
			name:       "configured wins",
			payload:    `<script>setTimeout(f, 1000)</script>`,
			sanitized:  `<script>setTimeout(f, 1000)</script>`,
			configured: 3 * time.Second,
			want:       3 * time.Second,
		},
		{
			name:      "meta refresh",
			payload:   `<meta http-equiv="refresh" content="0; url=/x">`,
			sanitized: `<meta http-equiv="refresh" content="0; url=/x">`,
			want:      400 * time.Millisecond,
		},
		{
			name:      "async hint",
			payload:   `<script>setTimeout(function(){alert(1)}, 10)</script>`,
			sanitized: `<script>setTimeout(function(){alert(1)}, 10)</script>`,
			want:      250 * time.Millisecond,
		},
		{
			name:      "promise hint",
			payload:   `<script>Promise.resolve().then(f)</script>`,
			sanitized: ``,
			want:      250 * time.Millisecond,
		},
		{
			name:      "async hint beats meta refresh",
			payload:   `<meta http-equiv="refresh" content="0; url=javascript:setTimeout(f)">`,
			sanitized: ``,
			want:      250 * time.Millisecond,
		},
		{
			name:      "handler attribute",
			payload:   `<img src=x onerror="alert(1)">`,
			sanitized: `<img src=x onerror="alert(1)">`,
			want:      25 * time.Millisecond,
		},
		{
			name:      "onload",
			payload:   `<body onload="alert(1)">`,
			sanitized: ``,
			want:      25 * time.Millisecond,
		},
		{
			name:      "hint only in sanitizer output",
			payload:   `alert(1)`,
			sanitized: `<img src="nonexistent://x" onerror="alert(1)">`,
			want:      25 * time.Millisecond,
		},
		{
			name:      "synchronous payload",
			payload:   `<b>hello</b>`,
			sanitized: `<b>hello</b>`,
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AutoTimeout(tt.payload, tt.sanitized, tt.configured))
		})
	}
}

func newSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession("goja", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func run(t *testing.T, s *Session, payload string, ctx vector.PayloadContext) Result {
	t.Helper()
	res, err := s.Run(context.Background(), payload, ctx, 200*time.Millisecond)
	require.NoError(t, err)
	return res
}

func TestRunCleanMarkupPasses(t *testing.T) {
	s := newSession(t)
	res := run(t, s, `<b>hello</b>`, vector.ContextHTML)
	assert.Equal(t, VerdictPass, res.Verdict)
	assert.False(t, res.Executed)
	assert.NotEmpty(t, res.RenderedHTML)
}

func TestRunScriptAlertIsExecution(t *testing.T) {
	s := newSession(t)
	res := run(t, s, `<script>alert(1)</script>`, vector.ContextHTML)
	assert.Equal(t, VerdictXSS, res.Verdict)
	assert.True(t, res.Executed)
	assert.True(t, strings.HasPrefix(res.Details, "hook: alert"), res.Details)
}

func TestRunImgOnerrorIsExecution(t *testing.T) {
	s := newSession(t)
	res := run(t, s, `<img src="nonexistent://x" onerror="alert(2)">`, vector.ContextHTML)
	assert.Equal(t, VerdictXSS, res.Verdict)
	assert.True(t, res.Executed)
}

func TestRunDeferredTimerIsExecution(t *testing.T) {
	s := newSession(t)
	res := run(t, s, `<script>setTimeout(function(){alert(3)}, 100)</script>`, vector.ContextHTML)
	assert.Equal(t, VerdictXSS, res.Verdict)
	assert.True(t, res.Executed)
}

func TestRunExternalScriptIsExecution(t *testing.T) {
	s := newSession(t)
	res := run(t, s, `<script src="https://evil.example/x.js"></script>`, vector.ContextHTML)
	assert.Equal(t, VerdictXSS, res.Verdict)
	assert.True(t, res.Executed)
	assert.True(t, strings.HasPrefix(res.Details, "external-script: "), res.Details)
	assert.Contains(t, res.Details, "https://evil.example/x.js")
}

func TestRunSurvivingJavaScriptURLIsExecution(t *testing.T) {
	s := newSession(t)
	res := run(t, s, `<a href="javascript:alert(1)">x</a>`, vector.ContextHTML)
	assert.Equal(t, VerdictXSS, res.Verdict)
	assert.True(t, res.Executed)
	assert.True(t, strings.HasPrefix(res.Details, "javascript-url: "), res.Details)
	assert.Contains(t, res.Details, "a[href]")
}

func TestRunPayloadNavigationIsExecution(t *testing.T) {
	s := newSession(t)
	res := run(t, s, `<meta http-equiv="refresh" content="10; url=https://evil.example/">`, vector.ContextHTML)
	assert.Equal(t, VerdictXSS, res.Verdict)
	assert.True(t, res.Executed)
	assert.True(t, strings.HasPrefix(res.Details, "navigation: "), res.Details)
	assert.Contains(t, res.Details, "https://evil.example/")
}

func TestRunReloadCountsAsNavigation(t *testing.T) {
	s := newSession(t)
	res := run(t, s, `<script>location.reload()</script>`, vector.ContextHTML)
	assert.Equal(t, VerdictXSS, res.Verdict)
	assert.True(t, strings.HasPrefix(res.Details, "navigation: "), res.Details)
}

func TestRunLeakContextExternalImage(t *testing.T) {
	s := newSession(t)
	res := run(t, s, `<img src="https://evil.example/leak.gif">`, vector.ContextHTTPLeak)
	assert.Equal(t, VerdictHTTPLeak, res.Verdict)
	assert.False(t, res.Executed)
	assert.True(t, strings.HasPrefix(res.Details, "External fetch: "), res.Details)
	assert.Contains(t, res.Details, "https://evil.example/leak.gif")
}

func TestRunLeakContextStyleImport(t *testing.T) {
	s := newSession(t)
	res := run(t, s, `<style>@import "https://evil.example/s.css";</style>`, vector.ContextHTTPLeakStyle)
	assert.Equal(t, VerdictHTTPLeak, res.Verdict)
	assert.Contains(t, res.Details, "https://evil.example/s.css")
}

func TestRunExternalImageOutsideLeakContextLeaks(t *testing.T) {
	s := newSession(t)
	res := run(t, s, `<img src="https://cdn.example/logo.png" alt="x">`, vector.ContextHTML)
	assert.Equal(t, VerdictHTTPLeak, res.Verdict)
	assert.False(t, res.Executed)
	assert.True(t, strings.HasPrefix(res.Details, "External fetch: "), res.Details)
	assert.Contains(t, res.Details, "https://cdn.example/logo.png")
}

func TestRunHrefContextBenignURLPasses(t *testing.T) {
	s := newSession(t)
	res := run(t, s, "https://example.org/next", vector.ContextHref)
	assert.Equal(t, VerdictPass, res.Verdict, res.Details)
	assert.False(t, res.Executed)
}

func TestRunHrefContextJavaScriptURL(t *testing.T) {
	s := newSession(t)
	res := run(t, s, "javascript:alert(1)", vector.ContextHref)
	assert.Equal(t, VerdictXSS, res.Verdict)
	assert.True(t, res.Executed)
}

func TestRunJSContextExecution(t *testing.T) {
	s := newSession(t)
	res := run(t, s, "alert(1)", vector.ContextJS)
	assert.Equal(t, VerdictXSS, res.Verdict)

	res = run(t, s, "1 + 1", vector.ContextJS)
	assert.Equal(t, VerdictPass, res.Verdict, res.Details)
}

func TestRunJSStringBreakout(t *testing.T) {
	s := newSession(t)
	res := run(t, s, `';alert(1);'`, vector.ContextJSString)
	assert.Equal(t, VerdictXSS, res.Verdict)

	res = run(t, s, "harmless", vector.ContextJSString)
	assert.Equal(t, VerdictPass, res.Verdict, res.Details)
}

func TestRunOnerrorAttrContext(t *testing.T) {
	s := newSession(t)
	res := run(t, s, "alert(1)", vector.ContextOnerrorAttr)
	assert.Equal(t, VerdictXSS, res.Verdict)

	res = run(t, s, "", vector.ContextOnerrorAttr)
	assert.Equal(t, VerdictPass, res.Verdict, res.Details)
}

func TestRunRejectsUnknownContext(t *testing.T) {
	s := newSession(t)
	_, err := s.Run(context.Background(), "x", vector.PayloadContext("bogus"), 0)
	require.Error(t, err)
}

func TestRunsAreIsolated(t *testing.T) {
	s := newSession(t)

	res := run(t, s, `<script>setInterval(function(){alert(1)}, 1)</script>`, vector.ContextHTML)
	assert.Equal(t, VerdictXSS, res.Verdict)

	res = run(t, s, `<b>quiet</b>`, vector.ContextHTML)
	assert.Equal(t, VerdictPass, res.Verdict, res.Details)
	assert.False(t, res.Executed)
}
