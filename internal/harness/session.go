package harness

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xssbench/xssbench/internal/engine"
	"github.com/xssbench/xssbench/internal/render"
	"github.com/xssbench/xssbench/internal/vector"
)

// Verdict is the execution classification for one run.
type Verdict string

const (
	VerdictPass     Verdict = "pass"
	VerdictXSS      Verdict = "xss"
	VerdictHTTPLeak Verdict = "http_leak"
)

// Result is the outcome of one rendered-document run.
type Result struct {
	Verdict      Verdict
	Executed     bool
	Details      string
	RenderedHTML string
}

const (
	pollInterval    = 50 * time.Millisecond
	navigateTimeout = 2 * time.Second
	maxDetailURLs   = 3
)

// dangerousURLAttrs are the attributes scanned for surviving
// javascript: URLs after the document settles.
var dangerousURLAttrs = []string{"href", "src", "action", "formaction", "data", "xlink:href"}

// triggerEvents are dispatched synthetically after load so handler
// attributes fire without real user interaction.
var triggerEvents = []string{
	"error", "load", "click", "dblclick", "mousedown", "mouseup",
	"mouseover", "mouseenter", "pointerover", "pointerdown",
	"focus", "focusin", "blur", "toggle", "input", "change",
	"animationstart", "animationend", "transitionend",
}

type externalRequest struct {
	Kind string
	URL  string
}

// Session reuses one page across runs.
type Session struct {
	log     *zap.Logger
	browser engine.Browser
	page    engine.Page

	mu               sync.Mutex
	servedHTML       string
	dialogs          []string
	navigations      []string
	externalScripts  []string
	externalRequests []externalRequest
	baseNavs         int
	expectedClickURL string
	scanHits         []engine.AttributeHit
}

// NewSession launches the named engine and prepares a page with the
// execution hook and request interception installed.
func NewSession(browserName string, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	browser, err := engine.Launch(browserName)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	page, err := browser.NewPage()
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	s := &Session{log: log, browser: browser, page: page}
	page.AddInitScript(preludeJS)
	page.OnDialog(s.handleDialog)
	page.OnNavigate(s.handleNavigate)
	page.Route(s.handleRoute)
	return s, nil
}

// BrowserName reports which engine backs the session.
func (s *Session) BrowserName() string { return s.browser.Name() }

func (s *Session) Close() error {
	if err := s.page.Close(); err != nil {
		return err
	}
	return s.browser.Close()
}

func (s *Session) handleDialog(d engine.Dialog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialogs = append(s.dialogs, d.Type+":"+d.Message)
}

func (s *Session) handleNavigate(u string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == render.BaseURL {
		// The first base-URL commit is the harness's own load; any
		// further one is a payload-driven reload.
		s.baseNavs++
		if s.baseNavs > 1 {
			s.navigations = append(s.navigations, u)
		}
		return
	}
	s.navigations = append(s.navigations, u)
}

func (s *Session) handleRoute(r *engine.Route) {
	u := r.Request.URL
	if r.Request.Kind == engine.KindDocument {
		if u == render.BaseURL {
			s.mu.Lock()
			body := s.servedHTML
			s.mu.Unlock()
			r.Fulfill(body)
			return
		}
		s.mu.Lock()
		s.navigations = append(s.navigations, u)
		s.mu.Unlock()
		r.Abort()
		return
	}
	if isHTTPURL(u) {
		s.mu.Lock()
		if r.Request.Kind == engine.KindScript {
			s.externalScripts = append(s.externalScripts, u)
		} else if !isBaseOrigin(u) {
			s.externalRequests = append(s.externalRequests, externalRequest{Kind: string(r.Request.Kind), URL: u})
		}
		s.mu.Unlock()
	}
	r.Abort()
}

func isHTTPURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "//")
}

func isBaseOrigin(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	base, err := url.Parse(render.BaseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Host, base.Host) && strings.EqualFold(parsed.Scheme, base.Scheme)
}

// reset clears the previous case's state, including timers page script
// managed to leak past its own document.
func (s *Session) reset() {
	s.page.CancelTimers()
	_, _ = s.page.Evaluate("window.__xssbench && window.__xssbench.cleanup && window.__xssbench.cleanup()")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialogs = nil
	s.navigations = nil
	s.externalScripts = nil
	s.externalRequests = nil
	s.baseNavs = 0
	s.expectedClickURL = ""
	s.scanHits = nil
}

// Run renders sanitized markup into the sink for payloadContext, loads
// it, triggers handlers, and classifies what happened.
func (s *Session) Run(ctx context.Context, sanitized string, payloadContext vector.PayloadContext, timeout time.Duration) (Result, error) {
	s.reset()

	rendered, err := render.Document(sanitized, payloadContext)
	if err != nil {
		return Result{}, fmt.Errorf("render document: %w", err)
	}

	s.mu.Lock()
	s.servedHTML = rendered
	s.mu.Unlock()

	res := Result{Verdict: VerdictPass, RenderedHTML: rendered}

	if err := s.page.Navigate(ctx, render.BaseURL, navigateTimeout); err != nil {
		switch {
		case engine.IsContextDestroyed(err):
			res.Verdict = VerdictXSS
			res.Executed = true
			res.Details = "navigation: execution context destroyed during load"
			return res, nil
		case isNavigationTimeout(err):
			return s.classifyAfterTimeout(payloadContext, res), nil
		default:
			return Result{}, fmt.Errorf("load document: %w", err)
		}
	}

	s.mu.Lock()
	s.scanHits = s.page.ScanAttributes(dangerousURLAttrs, "javascript:")
	s.mu.Unlock()

	if verdict, ok := s.classify(payloadContext, false); ok {
		return s.finish(res, verdict), nil
	}

	s.trigger(payloadContext)

	for waited := time.Duration(0); waited < timeout; waited += pollInterval {
		step := pollInterval
		if remaining := timeout - waited; remaining < step {
			step = remaining
		}
		s.page.WaitTimeout(step)
		if verdict, ok := s.classify(payloadContext, false); ok {
			return s.finish(res, verdict), nil
		}
	}

	if verdict, ok := s.classify(payloadContext, true); ok {
		return s.finish(res, verdict), nil
	}
	return res, nil
}

func isNavigationTimeout(err error) bool {
	return err != nil && strings.Contains(err.Error(), engine.ErrNavigationTimeout.Error())
}

func (s *Session) finish(res Result, verdict Result) Result {
	res.Verdict = verdict.Verdict
	res.Executed = verdict.Executed
	res.Details = verdict.Details
	return res
}

// trigger provokes deferred handlers: the href sink gets a real click on
// its anchor, everything else gets synthetic events plus clicks on any
// surviving javascript: links.
func (s *Session) trigger(payloadContext vector.PayloadContext) {
	if payloadContext == vector.ContextHref {
		if href, ok := s.page.ResolvedHref("#xssbench-link"); ok {
			s.mu.Lock()
			s.expectedClickURL = href
			s.mu.Unlock()
		}
		if err := s.page.Click("#xssbench-link"); err != nil {
			s.log.Debug("href click failed", zap.Error(err))
		}
		return
	}
	if err := s.page.DispatchEvents(triggerEvents); err != nil {
		s.log.Debug("event dispatch failed", zap.Error(err))
	}
	s.page.ClickLinks("javascript:")
}

// classifyAfterTimeout handles a load that never settled: captured
// signals still win, otherwise a hung load counts as execution.
func (s *Session) classifyAfterTimeout(payloadContext vector.PayloadContext, res Result) Result {
	if verdict, ok := s.classify(payloadContext, true); ok {
		return s.finish(res, verdict)
	}
	res.Verdict = VerdictXSS
	res.Executed = true
	res.Details = "navigation: load timed out, assuming execution"
	return res
}

// classify inspects captured signals in fixed precedence. External
// non-script traffic ends the run early only for leak sinks; the final
// check reports it as a leak in every context.
func (s *Session) classify(payloadContext vector.PayloadContext, final bool) (Result, bool) {
	s.mu.Lock()
	scanHits := s.scanHits
	dialogs := append([]string(nil), s.dialogs...)
	navs := s.filteredNavigationsLocked(payloadContext)
	scripts := append([]string(nil), s.externalScripts...)
	requests := append([]externalRequest(nil), s.externalRequests...)
	s.mu.Unlock()

	if len(scanHits) > 0 {
		return Result{
			Verdict:  VerdictXSS,
			Executed: true,
			Details:  "javascript-url: " + formatScanHits(scanHits),
		}, true
	}

	rec := s.page.ExecutionRecord()
	if rec.Executed {
		return Result{Verdict: VerdictXSS, Executed: true, Details: "hook: " + rec.Details}, true
	}

	if len(dialogs) > 0 {
		return Result{Verdict: VerdictXSS, Executed: true, Details: "dialog: " + joinCapped(dialogs)}, true
	}

	if len(navs) > 0 {
		if payloadContext.IsHTTPLeak() {
			return Result{Verdict: VerdictHTTPLeak, Details: "External fetch: document: " + joinCapped(navs)}, true
		}
		return Result{Verdict: VerdictXSS, Executed: true, Details: "navigation: " + joinCapped(navs)}, true
	}

	if len(scripts) > 0 {
		return Result{Verdict: VerdictXSS, Executed: true, Details: "external-script: " + joinCapped(scripts)}, true
	}

	if len(requests) > 0 && (final || payloadContext.IsHTTPLeak()) {
		urls := make([]string, 0, len(requests))
		for _, r := range requests {
			urls = append(urls, r.Kind+": "+r.URL)
		}
		return Result{Verdict: VerdictHTTPLeak, Details: "External fetch: " + joinCapped(urls)}, true
	}

	return Result{}, false
}

// filteredNavigationsLocked drops navigations that are not execution
// evidence: engine error pages, blank and srcdoc frames, fragment-only
// moves, and the expected target of the harness's own anchor click.
func (s *Session) filteredNavigationsLocked(payloadContext vector.PayloadContext) []string {
	var out []string
	for _, u := range s.navigations {
		switch {
		case u == "":
			continue
		case strings.HasPrefix(u, "chrome-error://"):
			continue
		case u == "about:blank" || u == "about:srcdoc":
			continue
		case strings.HasPrefix(u, render.BaseURL+"#"):
			continue
		case payloadContext == vector.ContextHref && s.expectedClickURL != "" && u == s.expectedClickURL:
			continue
		}
		out = append(out, u)
	}
	return out
}

func formatScanHits(hits []engine.AttributeHit) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, fmt.Sprintf("%s[%s]", h.Tag, h.Attr))
	}
	return joinCapped(parts)
}

func joinCapped(items []string) string {
	if len(items) > maxDetailURLs {
		extra := len(items) - maxDetailURLs
		items = append(append([]string(nil), items[:maxDetailURLs]...), fmt.Sprintf("(+%d more)", extra))
	}
	return strings.Join(items, ", ")
}
