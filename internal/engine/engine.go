package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ResourceKind classifies an intercepted request the way browser
// automation layers report resource types.
type ResourceKind string

const (
	KindDocument   ResourceKind = "document"
	KindScript     ResourceKind = "script"
	KindStylesheet ResourceKind = "stylesheet"
	KindImage      ResourceKind = "image"
	KindMedia      ResourceKind = "media"
	KindFetch      ResourceKind = "fetch"
	KindXHR        ResourceKind = "xhr"
	KindPing       ResourceKind = "ping"
	KindObject     ResourceKind = "object"
	KindTrack      ResourceKind = "track"
	KindOther      ResourceKind = "other"
)

// Request is one resource fetch attempted by the page.
type Request struct {
	URL  string
	Kind ResourceKind
}

// Route is an intercepted request awaiting a decision. The route handler
// either fulfills it with a response body or lets it abort. Unanswered
// routes abort.
type Route struct {
	Request Request

	fulfilled bool
	body      string
}

// Fulfill answers the request with body.
func (r *Route) Fulfill(body string) {
	r.fulfilled = true
	r.body = body
}

// Abort drops the request without a response.
func (r *Route) Abort() {
	r.fulfilled = false
	r.body = ""
}

// Fulfilled reports the response body set by the route handler, if any.
func (r *Route) Fulfilled() (string, bool) {
	return r.body, r.fulfilled
}

// Dialog is a blocking UI prompt raised by page script. The engine
// auto-accepts every dialog after reporting it.
type Dialog struct {
	Type    string
	Message string
}

// Record is the execution record maintained by the page prelude. It is
// the only judgment that crosses the evaluation boundary as a typed value.
type Record struct {
	Executed bool
	Details  string
}

// AttributeHit is one attribute whose resolved value matched a scan.
type AttributeHit struct {
	Tag   string
	Attr  string
	Value string
}

var (
	// ErrNavigationTimeout is returned when a navigation did not settle
	// within its deadline, usually because page script never yielded.
	ErrNavigationTimeout = errors.New("navigation timeout exceeded")

	// ErrPageClosed is returned for operations on a closed page.
	ErrPageClosed = errors.New("page is closed")
)

// IsContextDestroyed reports whether err indicates the script context was
// torn down mid-operation. Automation layers raise this when a payload
// navigates away while the harness is still evaluating; it counts as
// execution evidence, not as a harness fault.
func IsContextDestroyed(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution context was destroyed")
}

// Page is one isolated page. A page holds no state across Navigate calls
// except its init scripts and handlers.
type Page interface {
	// AddInitScript registers source that runs in every new document
	// before any document script.
	AddInitScript(src string)

	// OnDialog registers the dialog callback. Dialogs are auto-accepted
	// after the callback returns.
	OnDialog(fn func(Dialog))

	// OnNavigate registers the committed-navigation callback.
	OnNavigate(fn func(url string))

	// Route installs the request interceptor. It must be installed
	// before Navigate; without it every request aborts.
	Route(fn func(*Route))

	// Navigate loads url, builds the document, and runs its scripts.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// Evaluate runs an expression in the page and returns its exported value.
	Evaluate(expr string) (interface{}, error)

	// ExecutionRecord reads the prelude's execution record.
	ExecutionRecord() Record

	// ScanAttributes walks the live DOM and reports attributes whose
	// normalized value starts with scheme.
	ScanAttributes(attrs []string, scheme string) []AttributeHit

	// DispatchEvents fires the named events on every element that
	// handles them, in document order.
	DispatchEvents(names []string) error

	// ResolvedHref returns the resolved target of the anchor matching
	// selector, if present.
	ResolvedHref(selector string) (string, bool)

	// Click activates the element matching selector.
	Click(selector string) error

	// ClickLinks clicks every link whose resolved target starts with
	// schemePrefix and returns how many were clicked.
	ClickLinks(schemePrefix string) int

	// WaitTimeout advances the page clock by d, firing due timers.
	WaitTimeout(d time.Duration)

	// CancelTimers drops every pending timer, including intervals
	// leaked by page script.
	CancelTimers()

	Close() error
}

// Browser owns pages and the engine lifecycle.
type Browser interface {
	Name() string
	NewPage() (Page, error)
	Close() error
}

// profile toggles the engine quirks that differ between the modeled
// browsers, so the same payload can execute under one engine and stay
// inert under another.
type profile struct {
	name string

	// legacyResourceAttrs fetches legacy resource attributes: img
	// lowsrc and the background attribute on body and table cells.
	legacyResourceAttrs bool

	// javascriptFrameSrc executes javascript: URLs used as a frame src.
	javascriptFrameSrc bool
}

var profiles = []profile{
	{name: "goja", legacyResourceAttrs: true, javascriptFrameSrc: true},
	{name: "goja-strict"},
}

// Engines lists the launchable engine names.
func Engines() []string {
	names := make([]string, 0, len(profiles))
	for _, prof := range profiles {
		names = append(names, prof.name)
	}
	return names
}

// Launch starts the named engine.
func Launch(name string) (Browser, error) {
	switch name {
	case "", "headless":
		name = "goja"
	}
	for _, prof := range profiles {
		if prof.name == name {
			return newGojaBrowser(prof), nil
		}
	}
	return nil, fmt.Errorf("unknown browser engine %q (available: %s)", name, strings.Join(Engines(), ", "))
}
