package sanitize

// Shared sanitization policy.
//
// Goal: preserve common structure/semantics (including div/span and tables)
// while stripping scripting primitives, event handlers, and unsafe URLs.
// Both the sanitizer adapters and the benchmark's interpretation of
// expected-tag attribute requirements use this single policy.

// AllowedTags lists the element allowlist shared by every rich-HTML adapter.
var AllowedTags = []string{
	// Text / structure
	"p", "br", "div", "span", "blockquote", "pre", "code", "hr",
	// Emphasis
	"strong", "em", "b", "i", "u", "s", "sub", "sup",
	// Lists
	"ul", "ol", "li",
	// Headings
	"h1", "h2", "h3", "h4", "h5", "h6",
	// Links & media
	"a", "img",
	// Tables
	"table", "thead", "tbody", "tfoot", "tr", "th", "td",
}

var (
	globalAttrs    = []string{"class", "id", "title", "lang", "dir", "style"}
	anchorAttrs    = []string{"href", "title"}
	imgAttrs       = []string{"src", "alt", "title", "width", "height", "loading"}
	tableCellAttrs = []string{"colspan", "rowspan"}
)

// AllowedURLSchemes returns the URL scheme allowlist shared by adapters.
func AllowedURLSchemes() []string {
	return []string{"http", "https", "mailto", "tel"}
}

// AllowedAttributesForTag returns the allowlisted attributes for a tag.
func AllowedAttributesForTag(tag string) []string {
	switch tag {
	case "a":
		return append(append([]string{}, globalAttrs...), anchorAttrs...)
	case "img":
		return append(append([]string{}, globalAttrs...), imgAttrs...)
	case "th", "td":
		return append(append([]string{}, globalAttrs...), tableCellAttrs...)
	}
	return append([]string{}, globalAttrs...)
}
