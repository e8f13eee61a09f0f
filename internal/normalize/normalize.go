// Package normalize canonicalizes payload markup for duplicate detection.
//
// The canonical form folds differences that never change sanitizer behavior
// (tag/attribute case, attribute ordering, quote style, whitespace runs,
// Unicode form, URL-scheme case) while leaving everything else intact. It is
// deliberately not a full HTML5 parser; malformed markup normalizes less.
package normalize

import (
	"html"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	asciiWSRe    = regexp.MustCompile(`[\t\n\r\f\v ]+`)
	urlSchemeRe  = regexp.MustCompile(`(?s)^([A-Za-z][A-Za-z0-9+.-]*):(.*)$`)
	interTagWSRe = regexp.MustCompile(`>\s+<`)
	rawTagRe     = regexp.MustCompile(`^<\s*([a-z0-9]+)`)
)

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func collapseASCIIWhitespace(s string) string {
	return asciiWSRe.ReplaceAllString(s, " ")
}

// lowercaseURLScheme lowercases a leading URL scheme, e.g.
// "JaVaScRiPt:alert(1)" becomes "javascript:alert(1)".
func lowercaseURLScheme(value string) string {
	m := urlSchemeRe.FindStringSubmatch(value)
	if m == nil {
		return value
	}
	return strings.ToLower(m[1]) + ":" + m[2]
}

func normalizeAttrValue(raw string) string {
	v := html.UnescapeString(raw)
	v = norm.NFKC.String(v)
	v = normalizeNewlines(v)
	v = strings.TrimSpace(v)
	v = collapseASCIIWhitespace(v)
	return lowercaseURLScheme(v)
}

func isASCIIAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isAttrNameChar(c byte) bool {
	return isASCIIAlnum(c) || c == '_' || c == ':' || c == '-'
}

func isSpaceByte(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

type attr struct {
	name  string
	value string
	bare  bool
}

// parseTag canonicalizes one tag starting at s[start]. It returns the
// rendered tag and the index just past it, or ok=false when the region is
// not parseable as a tag (broken markup stays literal text).
func parseTag(s string, start int) (rendered string, next int, ok bool) {
	if start >= len(s) || s[start] != '<' {
		return "", 0, false
	}
	i := start + 1
	if i >= len(s) {
		return "", 0, false
	}

	if strings.HasPrefix(s[start:], "<!--") {
		end := strings.Index(s[i:], "-->")
		if end == -1 {
			return "", 0, false
		}
		end += i + 3
		inner := strings.TrimSpace(collapseASCIIWhitespace(normalizeNewlines(s[start:end])))
		return inner, end, true
	}

	if strings.HasPrefix(s[start:], "<!") || strings.HasPrefix(s[start:], "<?") {
		var quote byte
		for ; i < len(s); i++ {
			ch := s[i]
			switch {
			case quote == 0 && (ch == '"' || ch == '\''):
				quote = ch
			case quote != 0 && ch == quote:
				quote = 0
			case quote == 0 && ch == '>':
				raw := strings.TrimSpace(collapseASCIIWhitespace(normalizeNewlines(s[start : i+1])))
				return raw, i + 1, true
			}
		}
		return "", 0, false
	}

	isClose := false
	if s[i] == '/' {
		isClose = true
		i++
	}

	nameStart := i
	for i < len(s) && isASCIIAlnum(s[i]) {
		i++
	}
	if i == nameStart {
		return "", 0, false
	}
	tagName := strings.ToLower(s[nameStart:i])

	for i < len(s) && isSpaceByte(s[i]) {
		i++
	}

	if isClose {
		if i < len(s) && s[i] == '>' {
			return "</" + tagName + ">", i + 1, true
		}
		return "", 0, false
	}

	var attrs []attr
	selfClosing := false

	for i < len(s) {
		ch := s[i]
		if ch == '>' {
			i++
			break
		}
		if ch == '/' {
			j := i + 1
			for j < len(s) && isSpaceByte(s[j]) {
				j++
			}
			if j < len(s) && s[j] == '>' {
				selfClosing = true
				i = j + 1
				break
			}
		}
		if isSpaceByte(ch) {
			i++
			continue
		}

		attrNameStart := i
		for i < len(s) && isAttrNameChar(s[i]) {
			i++
		}
		if i == attrNameStart {
			return "", 0, false
		}
		name := strings.ToLower(s[attrNameStart:i])

		for i < len(s) && isSpaceByte(s[i]) {
			i++
		}

		a := attr{name: name, bare: true}
		if i < len(s) && s[i] == '=' {
			i++
			for i < len(s) && isSpaceByte(s[i]) {
				i++
			}
			if i >= len(s) {
				return "", 0, false
			}
			if s[i] == '"' || s[i] == '\'' {
				q := s[i]
				i++
				valStart := i
				for i < len(s) && s[i] != q {
					i++
				}
				if i >= len(s) {
					return "", 0, false
				}
				a.value = normalizeAttrValue(s[valStart:i])
				a.bare = false
				i++
			} else {
				valStart := i
				for i < len(s) && !isSpaceByte(s[i]) && s[i] != '>' && s[i] != '/' {
					i++
				}
				a.value = normalizeAttrValue(s[valStart:i])
				a.bare = false
			}
		}
		attrs = append(attrs, a)
	}

	sort.SliceStable(attrs, func(x, y int) bool {
		if attrs[x].name != attrs[y].name {
			return attrs[x].name < attrs[y].name
		}
		return attrs[x].value < attrs[y].value
	})

	suffix := ">"
	if selfClosing {
		suffix = "/>"
	}
	if len(attrs) == 0 {
		return "<" + tagName + suffix, i, true
	}

	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		if a.bare {
			parts = append(parts, a.name)
			continue
		}
		parts = append(parts, a.name+`="`+strings.ReplaceAll(a.value, `"`, "&quot;")+`"`)
	}
	return "<" + tagName + " " + strings.Join(parts, " ") + suffix, i, true
}

func isWordish(c byte) bool {
	return isASCIIAlnum(c) || c == '_' || c == '$'
}

// collapseJSWhitespace collapses whitespace runs in script/style content
// while preserving anything inside single, double, or backtick quotes, and
// keeping one space between word-ish tokens so identifiers don't merge.
func collapseJSWhitespace(s string) string {
	var out []byte
	var quote byte
	esc := false
	pendingSpace := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			out = append(out, ch)
			if esc {
				esc = false
				continue
			}
			if ch == '\\' {
				esc = true
				continue
			}
			if ch == quote {
				quote = 0
			}
			continue
		}

		if ch == '\'' || ch == '"' || ch == '`' {
			if pendingSpace && len(out) > 0 && out[len(out)-1] != ' ' {
				out = append(out, ' ')
			}
			pendingSpace = false
			out = append(out, ch)
			quote = ch
			continue
		}

		if isSpaceByte(ch) {
			pendingSpace = true
			continue
		}

		if pendingSpace {
			if len(out) > 0 && isWordish(out[len(out)-1]) && isWordish(ch) {
				out = append(out, ' ')
			}
			pendingSpace = false
		}
		out = append(out, ch)
	}

	for len(out) > 0 && out[len(out)-1] == ' ' {
		out = out[:len(out)-1]
	}
	return string(out)
}

// Payload returns the canonical form of a payload string.
func Payload(payload string) string {
	s := strings.ReplaceAll(payload, "\x00", "")
	s = norm.NFKC.String(s)
	s = normalizeNewlines(s)
	s = strings.TrimSpace(s)

	var out strings.Builder
	i := 0
	rawMode := "" // "script" or "style"

	for i < len(s) {
		if rawMode != "" {
			closePat := "</" + rawMode
			j := strings.Index(strings.ToLower(s[i:]), closePat)
			if j == -1 {
				out.WriteString(collapseJSWhitespace(s[i:]))
				break
			}
			out.WriteString(collapseJSWhitespace(s[i : i+j]))
			i += j
			rawMode = ""
			continue
		}

		if s[i] == '<' {
			if rendered, next, ok := parseTag(s, i); ok {
				out.WriteString(rendered)
				if m := rawTagRe.FindStringSubmatch(rendered); m != nil && !strings.HasPrefix(rendered, "</") {
					if m[1] == "script" || m[1] == "style" {
						rawMode = m[1]
					}
				}
				i = next
				continue
			}
			// Broken tag start (e.g. "<<script" or a stray '<'): literal text.
			out.WriteByte('<')
			i++
			continue
		}

		j := strings.IndexByte(s[i:], '<')
		if j == -1 {
			j = len(s) - i
		}
		text := s[i : i+j]
		text = html.UnescapeString(text)
		text = norm.NFKC.String(text)
		text = normalizeNewlines(text)
		text = collapseASCIIWhitespace(text)
		out.WriteString(text)
		i += j
	}

	normalized := strings.TrimSpace(out.String())
	normalized = interTagWSRe.ReplaceAllString(normalized, "><")
	// Bare URL payloads (href sinks) fold their scheme case too.
	return lowercaseURLScheme(normalized)
}
