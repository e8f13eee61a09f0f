// Package sanitize defines the sanitizer adapter interface and the built-in
// adapters the benchmark ships with. Adapters are opaque html -> html
// functions plus a declared set of supported payload contexts.
package sanitize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/xssbench/xssbench/internal/vector"
)

// Sanitizer is one candidate under test. Sanitizers are constructed at
// startup and shared read-only across workers.
type Sanitizer struct {
	Name        string
	Description string
	Sanitize    func(html string) (string, error)

	// SupportedContexts is nil for universal support; otherwise cases whose
	// context is absent from the set are skipped rather than run.
	SupportedContexts map[vector.PayloadContext]struct{}
}

// Supports reports whether the sanitizer handles payloads in ctx.
func (s Sanitizer) Supports(ctx vector.PayloadContext) bool {
	if s.SupportedContexts == nil {
		return true
	}
	_, ok := s.SupportedContexts[ctx]
	return ok
}

func contextSet(contexts ...vector.PayloadContext) map[vector.PayloadContext]struct{} {
	out := make(map[vector.PayloadContext]struct{}, len(contexts))
	for _, c := range contexts {
		out[c] = struct{}{}
	}
	return out
}

// htmlContexts is the support set for sanitizers that operate on markup:
// JS-code/JS-string sinks and bare attribute values are out of scope for
// them, but wrapped attribute contexts (href, onerror_attr) are in scope
// because the orchestrator adapts those into markup before sanitizing.
func htmlContexts() map[vector.PayloadContext]struct{} {
	return contextSet(
		vector.ContextHTML,
		vector.ContextHTMLHead,
		vector.ContextHTMLOuter,
		vector.ContextHref,
		vector.ContextOnerrorAttr,
		vector.ContextHTTPLeak,
		vector.ContextHTTPLeakStyle,
	)
}

// Noop returns the baseline sanitizer that returns its input unchanged. It
// verifies the harness detects execution when nothing is stripped.
func Noop() Sanitizer {
	return Sanitizer{
		Name:        "noop",
		Description: "Baseline: returns HTML unchanged",
		Sanitize: func(html string) (string, error) {
			return html, nil
		},
	}
}

// Bluemonday returns an adapter over bluemonday configured with the shared
// allowlist policy.
func Bluemonday() Sanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(AllowedTags...)
	p.AllowAttrs(globalAttrs...).Globally()
	p.AllowAttrs(anchorAttrs...).OnElements("a")
	p.AllowAttrs(imgAttrs...).OnElements("img")
	p.AllowAttrs(tableCellAttrs...).OnElements("th", "td")
	p.AllowURLSchemes(AllowedURLSchemes()...)

	return Sanitizer{
		Name:              "bluemonday",
		Description:       "bluemonday policy with the shared allowlist (keep common markup; strip dangerous)",
		Sanitize:          func(html string) (string, error) { return p.Sanitize(html), nil },
		SupportedContexts: htmlContexts(),
	}
}

// StripTags returns an adapter that removes every element outright,
// representing an "escape everything" policy floor.
func StripTags() Sanitizer {
	p := bluemonday.StrictPolicy()
	return Sanitizer{
		Name:              "striptags",
		Description:       "bluemonday strict policy: no markup survives",
		Sanitize:          func(html string) (string, error) { return p.Sanitize(html), nil },
		SupportedContexts: htmlContexts(),
	}
}

// Available returns every sanitizer shipped with the benchmark, by name.
func Available() map[string]Sanitizer {
	out := make(map[string]Sanitizer)
	for _, s := range []Sanitizer{Noop(), Bluemonday(), StripTags()} {
		out[s.Name] = s
	}
	return out
}

// Defaults returns the default sanitizer set, in preference order.
func Defaults() []Sanitizer {
	available := Available()
	var out []Sanitizer
	for _, name := range []string{"noop", "bluemonday", "striptags"} {
		if s, ok := available[name]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Get looks up one sanitizer by name.
func Get(name string) (Sanitizer, error) {
	available := Available()
	if s, ok := available[name]; ok {
		return s, nil
	}
	names := make([]string, 0, len(available))
	for n := range available {
		names = append(names, n)
	}
	sort.Strings(names)
	return Sanitizer{}, fmt.Errorf("unknown sanitizer %q (available: %s)", name, strings.Join(names, ", "))
}
