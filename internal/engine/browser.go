package engine

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// maxTimerFires bounds how many timer callbacks one WaitTimeout call may
// run, so a zero-delay interval cannot spin forever on the virtual clock.
const maxTimerFires = 10000

type gojaBrowser struct {
	prof profile

	mu     sync.Mutex
	closed bool
	pages  []*page
}

func newGojaBrowser(prof profile) *gojaBrowser {
	return &gojaBrowser{prof: prof}
}

func (b *gojaBrowser) Name() string { return b.prof.name }

func (b *gojaBrowser) NewPage() (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("new page: %w", ErrPageClosed)
	}
	p := &page{prof: b.prof}
	b.pages = append(b.pages, p)
	return p, nil
}

func (b *gojaBrowser) Close() error {
	b.mu.Lock()
	pages := b.pages
	b.pages = nil
	b.closed = true
	b.mu.Unlock()
	for _, p := range pages {
		_ = p.Close()
	}
	return nil
}

// timer is one scheduled callback on the page's virtual clock.
type timer struct {
	id       int64
	due      time.Time
	interval time.Duration
	repeat   bool
	fn       goja.Callable
	code     string
	gofn     func()
}

type page struct {
	prof profile

	mu     sync.Mutex
	closed bool

	initScripts []string
	onDialog    func(Dialog)
	onNavigate  func(string)
	route       func(*Route)

	vm      *goja.Runtime
	doc     *document
	baseURL *url.URL

	now         time.Time
	timers      []*timer
	nextTimerID int64

	// depth guards recursive document processing (srcdoc frames,
	// document.write from a written script).
	depth int
}

func (p *page) AddInitScript(src string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initScripts = append(p.initScripts, src)
}

func (p *page) OnDialog(fn func(Dialog)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDialog = fn
}

func (p *page) OnNavigate(fn func(string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onNavigate = fn
}

func (p *page) Route(fn func(*Route)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.route = fn
}

// request runs the intercepted request through the route handler and
// reports the fulfillment body, if any. Without a handler everything
// aborts.
func (p *page) request(rawURL string, kind ResourceKind) (string, bool) {
	handler := p.route
	if handler == nil {
		return "", false
	}
	r := &Route{Request: Request{URL: rawURL, Kind: kind}}
	handler(r)
	return r.Fulfilled()
}

// fireDialog reports a dialog and auto-accepts it.
func (p *page) fireDialog(kind, message string) {
	if p.onDialog != nil {
		p.onDialog(Dialog{Type: kind, Message: message})
	}
}

// committed reports a committed navigation to the registered callback.
func (p *page) committed(u string) {
	if p.onNavigate != nil {
		p.onNavigate(u)
	}
}

// resolve turns a possibly relative reference into an absolute URL
// against the current document base.
func (p *page) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if p.baseURL == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return p.baseURL.ResolveReference(u).String()
}

// navTo is the single entry point for script-driven navigation:
// location assignment, meta refresh, frame loads, anchor activation.
// Fragment-only changes commit without a request; everything else is a
// document request decided by the route handler.
func (p *page) navTo(ref string) {
	target := p.resolve(ref)
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(ref)), "javascript:") {
		p.runJavaScriptURL(ref)
		return
	}
	if p.baseURL != nil {
		base := p.baseURL.String()
		if target == base || strings.HasPrefix(target, base+"#") {
			p.committed(target)
			return
		}
	}
	if _, ok := p.request(target, KindDocument); ok {
		// A re-served document commits without being reprocessed, so a
		// refresh loop cannot recurse through the engine.
		p.committed(target)
	}
}

// runJavaScriptURL executes the code portion of a javascript: URL.
func (p *page) runJavaScriptURL(ref string) {
	code := strings.TrimSpace(ref)
	if len(code) > len("javascript:") {
		code = code[len("javascript:"):]
	} else {
		code = ""
	}
	if decoded, err := url.QueryUnescape(code); err == nil {
		code = decoded
	}
	p.runScript(code)
}

// runScript runs page script, swallowing script errors the way a page
// swallows uncaught exceptions.
func (p *page) runScript(src string) {
	if p.vm == nil || strings.TrimSpace(src) == "" {
		return
	}
	defer func() { _ = recover() }()
	_, _ = p.vm.RunString(src)
}

func (p *page) Navigate(ctx context.Context, rawURL string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("navigate: %w", ErrPageClosed)
	}

	body, ok := p.request(rawURL, KindDocument)
	if !ok {
		return fmt.Errorf("navigate %s: no route fulfilled the document request", rawURL)
	}

	base, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("navigate: parse %q: %w", rawURL, err)
	}
	p.baseURL = base
	p.now = time.Now()
	p.timers = nil
	p.doc = nil

	p.setupRuntime()
	for _, src := range p.initScripts {
		p.runScript(src)
	}
	p.committed(base.String())

	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	done := make(chan struct{})
	interrupted := make(chan struct{})
	vm := p.vm
	go func() {
		select {
		case <-done:
		case <-ctx.Done():
			close(interrupted)
			vm.Interrupt(ErrNavigationTimeout)
		case <-time.After(timeout):
			close(interrupted)
			vm.Interrupt(ErrNavigationTimeout)
		}
	}()

	loadErr := p.loadDocument(body)
	close(done)

	select {
	case <-interrupted:
		p.vm.ClearInterrupt()
		return fmt.Errorf("navigate %s: %w", rawURL, ErrNavigationTimeout)
	default:
	}
	if loadErr != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, loadErr)
	}
	return nil
}

func (p *page) Evaluate(expr string) (interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("evaluate: %w", ErrPageClosed)
	}
	if p.vm == nil {
		return nil, fmt.Errorf("evaluate: no document loaded")
	}
	v, err := p.vm.RunString(expr)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return v.Export(), nil
}

func (p *page) ExecutionRecord() Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.vm == nil {
		return Record{}
	}
	v := p.vm.GlobalObject().Get("__xssbench")
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return Record{}
	}
	obj := v.ToObject(p.vm)
	rec := Record{}
	if e := obj.Get("executed"); e != nil {
		rec.Executed = e.ToBoolean()
	}
	if d := obj.Get("details"); d != nil && !goja.IsUndefined(d) && !goja.IsNull(d) {
		rec.Details = d.String()
	}
	return rec
}

func (p *page) WaitTimeout(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || d <= 0 {
		return
	}
	end := p.now.Add(d)
	for fires := 0; fires < maxTimerFires; fires++ {
		t := p.popDueTimer(end)
		if t == nil {
			break
		}
		if t.due.After(p.now) {
			p.now = t.due
		}
		p.fireTimer(t)
	}
	p.now = end
}

// popDueTimer removes and returns the earliest timer due at or before
// deadline, rescheduling intervals.
func (p *page) popDueTimer(deadline time.Time) *timer {
	best := -1
	for i, t := range p.timers {
		if t.due.After(deadline) {
			continue
		}
		if best < 0 || t.due.Before(p.timers[best].due) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	t := p.timers[best]
	if t.repeat {
		next := *t
		next.due = t.due.Add(maxDuration(t.interval, time.Millisecond))
		p.timers[best] = &next
	} else {
		p.timers = append(p.timers[:best], p.timers[best+1:]...)
	}
	return t
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

func (p *page) fireTimer(t *timer) {
	defer func() { _ = recover() }()
	switch {
	case t.gofn != nil:
		t.gofn()
	case t.fn != nil:
		_, _ = t.fn(goja.Undefined())
	case t.code != "":
		_, _ = p.vm.RunString(t.code)
	}
}

// scheduleFunc registers a timer callback on the virtual clock.
func (p *page) scheduleFunc(fn goja.Callable, delay time.Duration, repeat bool) int64 {
	p.nextTimerID++
	p.timers = append(p.timers, &timer{
		id:       p.nextTimerID,
		due:      p.now.Add(delay),
		interval: delay,
		repeat:   repeat,
		fn:       fn,
	})
	return p.nextTimerID
}

func (p *page) scheduleCode(code string, delay time.Duration, repeat bool) int64 {
	p.nextTimerID++
	p.timers = append(p.timers, &timer{
		id:       p.nextTimerID,
		due:      p.now.Add(delay),
		interval: delay,
		repeat:   repeat,
		code:     code,
	})
	return p.nextTimerID
}

// scheduleGo registers an engine-internal task on the virtual clock,
// used for meta refresh navigation and deferred resource error events.
func (p *page) scheduleGo(fn func(), delay time.Duration) int64 {
	p.nextTimerID++
	p.timers = append(p.timers, &timer{
		id:   p.nextTimerID,
		due:  p.now.Add(delay),
		gofn: fn,
	})
	return p.nextTimerID
}

func (p *page) clearTimer(id int64) {
	for i, t := range p.timers {
		if t.id == id {
			p.timers = append(p.timers[:i], p.timers[i+1:]...)
			return
		}
	}
}

func (p *page) CancelTimers() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timers = nil
}

// PendingTimers reports how many timers are scheduled. Exposed for
// isolation checks.
func (p *page) PendingTimers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.timers)
}

func (p *page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.timers = nil
	p.vm = nil
	p.doc = nil
	return nil
}
