// Package verify checks sanitizer output against a vector's declared
// surviving-element shape. It is independent of execution detection: a case
// can be both lossy and an execution hit.
package verify

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/xssbench/xssbench/internal/vector"
)

// Element is one surviving start or self-closing tag in sanitized output.
type Element struct {
	Tag   string
	Attrs map[string]struct{}
}

func (e Element) String() string {
	if len(e.Attrs) == 0 {
		return e.Tag
	}
	names := make([]string, 0, len(e.Attrs))
	for name := range e.Attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return e.Tag + "[" + strings.Join(names, ",") + "]"
}

// Elements tokenizes sanitized markup into its ordered start/self-closing
// tag sequence. Attribute names are case-folded; end tags, comments, and
// text are ignored.
func Elements(sanitizedHTML string) []Element {
	var out []Element
	z := html.NewTokenizer(strings.NewReader(sanitizedHTML))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return out
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			attrs := make(map[string]struct{}, len(tok.Attr))
			for _, a := range tok.Attr {
				attrs[strings.ToLower(a.Key)] = struct{}{}
			}
			out = append(out, Element{Tag: strings.ToLower(tok.Data), Attrs: attrs})
		}
	}
}

// Result is the outcome of one lossy check.
type Result struct {
	Lossy   bool
	Details string
}

// Check compares sanitized output against the expected element shape.
// A nil expectation disables the check. An empty expectation means no
// markup may survive. Otherwise elements must match position by position:
// same tag, attribute superset when attributes are specified, and no
// attributes at all for a bare-tag expectation.
func Check(sanitizedHTML string, expected []vector.ExpectedTag) Result {
	if expected == nil {
		return Result{}
	}

	got := Elements(sanitizedHTML)

	if len(expected) == 0 {
		if len(got) == 0 {
			return Result{}
		}
		names := make([]string, 0, len(got))
		for _, el := range got {
			if len(names) == 20 {
				break
			}
			names = append(names, el.String())
		}
		return Result{
			Lossy:   true,
			Details: "Expected no tags after sanitization, but found: " + strings.Join(names, ", "),
		}
	}

	var problems []string
	for i := 0; i < len(expected) || i < len(got); i++ {
		switch {
		case i >= len(got):
			problems = append(problems, fmt.Sprintf("position %d: missing %s", i, expected[i]))
		case i >= len(expected):
			problems = append(problems, fmt.Sprintf("position %d: unexpected %s", i, got[i]))
		default:
			if msg := matchAt(expected[i], got[i]); msg != "" {
				problems = append(problems, fmt.Sprintf("position %d: %s", i, msg))
			}
		}
	}

	if len(problems) == 0 {
		return Result{}
	}
	return Result{
		Lossy:   true,
		Details: "Missing expected tags after sanitization: " + strings.Join(problems, "; "),
	}
}

func matchAt(want vector.ExpectedTag, got Element) string {
	if got.Tag != want.Tag {
		return fmt.Sprintf("expected %s, got %s", want, got)
	}
	if len(want.Attrs) == 0 {
		// Bare expectations require the element to carry no attributes.
		if len(got.Attrs) > 0 {
			return fmt.Sprintf("expected bare %s, got %s", want, got)
		}
		return ""
	}
	for _, attr := range want.Attrs {
		if _, ok := got.Attrs[attr]; !ok {
			return fmt.Sprintf("expected %s, got %s", want, got)
		}
	}
	return ""
}
