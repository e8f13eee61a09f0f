package vector

import (
	"fmt"
	"sort"
	"strings"
)

// ExpectedTag describes one element that must survive sanitization.
// A bare tag (no attrs) requires the surviving element to carry no attributes
// at all; a tag with attrs requires the surviving element's attribute set to
// be a superset of them.
type ExpectedTag struct {
	Tag   string
	Attrs []string // sorted, lowercase; nil for a bare tag
}

func (e ExpectedTag) String() string {
	if len(e.Attrs) == 0 {
		return e.Tag
	}
	return e.Tag + "[" + strings.Join(e.Attrs, ",") + "]"
}

// ParseExpectedTag parses the "tag" / "tag[attr1,attr2]" vector-file syntax.
func ParseExpectedTag(raw string) (ExpectedTag, error) {
	s := strings.TrimSpace(raw)
	open := strings.IndexByte(s, '[')
	if open == -1 {
		if s == "" {
			return ExpectedTag{}, fmt.Errorf("expected_tags entry must not be empty")
		}
		return ExpectedTag{Tag: strings.ToLower(s)}, nil
	}
	if !strings.HasSuffix(s, "]") {
		return ExpectedTag{}, fmt.Errorf("expected_tags entry %q is missing a closing bracket", raw)
	}
	tag := strings.ToLower(strings.TrimSpace(s[:open]))
	if tag == "" {
		return ExpectedTag{}, fmt.Errorf("expected_tags entry %q has no tag name", raw)
	}
	inner := strings.TrimSpace(s[open+1 : len(s)-1])
	if inner == "" {
		// "img[]" is ambiguous between "bare" and "any attrs"; reject it.
		return ExpectedTag{}, fmt.Errorf("expected_tags entry %q must not use empty brackets", raw)
	}
	var attrs []string
	for _, part := range strings.Split(inner, ",") {
		a := strings.ToLower(strings.TrimSpace(part))
		if a == "" {
			return ExpectedTag{}, fmt.Errorf("expected_tags entry %q has an empty attribute name", raw)
		}
		attrs = append(attrs, a)
	}
	sort.Strings(attrs)
	return ExpectedTag{Tag: tag, Attrs: attrs}, nil
}

// Vector is one adversarial payload plus the sink it targets. Vectors are
// built once at load time and never mutated; they are shared read-only across
// workers.
type Vector struct {
	ID             string
	Description    string
	PayloadHTML    string
	PayloadContext PayloadContext

	// ExpectedTags is the ordered element shape that must survive
	// sanitization. nil disables the check entirely; an empty (non-nil)
	// slice means no markup may survive.
	ExpectedTags []ExpectedTag
}
