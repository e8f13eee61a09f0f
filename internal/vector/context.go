package vector

import "fmt"

// PayloadContext identifies the document sink a payload is rendered into.
// The set is closed: the renderer and classifier switch over it exhaustively,
// and the loader rejects anything outside it.
type PayloadContext string

const (
	ContextHTML           PayloadContext = "html"
	ContextHTMLHead       PayloadContext = "html_head"
	ContextHTMLOuter      PayloadContext = "html_outer"
	ContextHref           PayloadContext = "href"
	ContextJS             PayloadContext = "js"
	ContextJSArg          PayloadContext = "js_arg"
	ContextJSString       PayloadContext = "js_string"
	ContextJSStringDouble PayloadContext = "js_string_double"
	ContextOnerrorAttr    PayloadContext = "onerror_attr"
	ContextHTTPLeak       PayloadContext = "http_leak"
	ContextHTTPLeakStyle  PayloadContext = "http_leak_style"
)

// Contexts returns every valid payload context in a stable order.
func Contexts() []PayloadContext {
	return []PayloadContext{
		ContextHTML,
		ContextHTMLHead,
		ContextHTMLOuter,
		ContextHref,
		ContextJS,
		ContextJSArg,
		ContextJSString,
		ContextJSStringDouble,
		ContextOnerrorAttr,
		ContextHTTPLeak,
		ContextHTTPLeakStyle,
	}
}

// ParseContext validates a raw context string from a vector file.
func ParseContext(raw string) (PayloadContext, error) {
	c := PayloadContext(raw)
	switch c {
	case ContextHTML, ContextHTMLHead, ContextHTMLOuter, ContextHref,
		ContextJS, ContextJSArg, ContextJSString, ContextJSStringDouble,
		ContextOnerrorAttr, ContextHTTPLeak, ContextHTTPLeakStyle:
		return c, nil
	}
	return "", fmt.Errorf("invalid payload_context %q", raw)
}

// IsHTTPLeak reports whether c is one of the leak-probe contexts. Qualifying
// navigations in these contexts are classified as leaks, not execution.
func (c PayloadContext) IsHTTPLeak() bool {
	return c == ContextHTTPLeak || c == ContextHTTPLeakStyle
}

// AllowsExpectedTags reports whether expected_tags may be declared for this
// context. Sinks whose payload is not markup (attribute values, JS code and
// JS string literals) have no surviving tag shape to check.
func (c PayloadContext) AllowsExpectedTags() bool {
	switch c {
	case ContextHref, ContextJS, ContextJSArg, ContextJSString, ContextJSStringDouble:
		return false
	}
	return true
}
