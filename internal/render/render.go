// Package render builds a complete synthetic HTML document that places a
// sanitized fragment at the semantically correct sink for its payload
// context. Every template declares a fixed synthetic base origin so relative
// and scheme-relative URLs resolve deterministically.
package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xssbench/xssbench/internal/vector"
)

// BaseURL is the synthetic origin every document is served from.
const BaseURL = "http://xssbench.local/"

const payloadSlot = "__XSSBENCH_PAYLOAD__"

const htmlTemplate = `<!doctype html>
<html>
    <head>
        <meta charset="utf-8">
        <base href="http://xssbench.local/">
    </head>
  <body>
    <div id="root">__XSSBENCH_PAYLOAD__</div>
  </body>
</html>
`

const htmlHeadTemplate = `<!doctype html>
<html>
    <head>
        <meta charset="utf-8">
        <base href="http://xssbench.local/">
        __XSSBENCH_PAYLOAD__
    </head>
    <body>
        <div id="root"></div>
    </body>
</html>
`

// htmlHeadAndBodyTemplate renders the payload in both head and body: many
// leak primitives only fire when the tag lands in the right place, and the
// parser will discard or move invalid placements. The styling targets give
// CSS-based leak selectors something to match.
const htmlHeadAndBodyTemplate = `<!doctype html>
<html>
    <head>
        <meta charset="utf-8">
        <base href="http://xssbench.local/">
        __XSSBENCH_PAYLOAD__
    </head>
    <body>
        <div id="root">__XSSBENCH_PAYLOAD__</div>
        <s id="xssbench-css-target">x</s>
        <big id="xssbench-css-target2">x</big>
    </body>
</html>
`

const htmlOuterTemplate = `<!doctype html>
<html>
    <head>
        <meta charset="utf-8">
        <base href="http://xssbench.local/">
    </head>
    __XSSBENCH_PAYLOAD__
</html>
`

const hrefTemplate = `<!doctype html>
<html>
    <head>
        <meta charset="utf-8">
        <base href="http://xssbench.local/">
    </head>
    <body>
        <a id="xssbench-link" href="__XSSBENCH_PAYLOAD__">x</a>
    </body>
</html>
`

const jsTemplate = `<!doctype html>
<html>
    <head>
        <meta charset="utf-8">
        <base href="http://xssbench.local/">
    </head>
    <body>
        <script>__XSSBENCH_PAYLOAD__</script>
    </body>
</html>
`

const jsArgTemplate = `<!doctype html>
<html>
    <head>
        <meta charset="utf-8">
        <base href="http://xssbench.local/">
    </head>
    <body>
        <script>setTimeout(function(){}, __XSSBENCH_PAYLOAD__);</script>
    </body>
</html>
`

const jsStringTemplate = `<!doctype html>
<html>
    <head>
        <meta charset="utf-8">
        <base href="http://xssbench.local/">
    </head>
    <body>
        <script>var __xssbench_probe = '__XSSBENCH_PAYLOAD__';</script>
    </body>
</html>
`

const jsStringDoubleTemplate = `<!doctype html>
<html>
    <head>
        <meta charset="utf-8">
        <base href="http://xssbench.local/">
    </head>
    <body>
        <script>var __xssbench_probe = "__XSSBENCH_PAYLOAD__";</script>
    </body>
</html>
`

const onerrorAttrTemplate = `<!doctype html>
<html>
    <head>
        <meta charset="utf-8">
        <base href="http://xssbench.local/">
    </head>
    <body>
        <img id="xssbench-img" src="nonexistent://x" onerror="__XSSBENCH_PAYLOAD__">
    </body>
</html>
`

var (
	firstTagRe    = regexp.MustCompile(`<\s*([A-Za-z][A-Za-z0-9:-]*)`)
	metaRefreshRe = regexp.MustCompile(`(?i)(<meta\b[^>]*\bhttp-equiv\s*=\s*['"]?refresh['"]?[^>]*\bcontent\s*=\s*['"])([^'"]*)(['"])`)
	refreshBodyRe = regexp.MustCompile(`(?i)^\s*(\d+)?\s*(?:;\s*)?(?:url\s*=\s*(.+?))?\s*$`)
)

// Document renders a sanitized fragment into a full synthetic document for
// the given payload context.
func Document(sanitizedHTML string, ctx vector.PayloadContext) (string, error) {
	var template string
	switch ctx {
	case vector.ContextHTML:
		template = htmlTemplate
	case vector.ContextHTMLHead:
		template = htmlHeadTemplate
	case vector.ContextHTMLOuter:
		template = htmlOuterTemplate
	case vector.ContextHref:
		template = hrefTemplate
	case vector.ContextJS:
		template = jsTemplate
	case vector.ContextJSArg:
		template = jsArgTemplate
	case vector.ContextJSString:
		template = jsStringTemplate
	case vector.ContextJSStringDouble:
		template = jsStringDoubleTemplate
	case vector.ContextOnerrorAttr:
		template = onerrorAttrTemplate
	case vector.ContextHTTPLeak, vector.ContextHTTPLeakStyle:
		template = leakTemplateFor(sanitizedHTML)
	default:
		return "", fmt.Errorf("unknown payload context %q", ctx)
	}

	doc := strings.ReplaceAll(template, payloadSlot, sanitizedHTML)
	return SpeedUpMetaRefresh(doc, 0), nil
}

// leakTemplateFor picks the placement for HTTP-leak primitives. Whole-page
// elements must stay outer siblings; everything else goes in both head and
// body so placement-picky tags still land somewhere valid.
func leakTemplateFor(sanitizedHTML string) string {
	tag := ""
	if m := firstTagRe.FindStringSubmatch(sanitizedHTML); m != nil {
		tag = strings.ToLower(m[1])
	}
	switch tag {
	case "html", "body", "frameset":
		return htmlOuterTemplate
	}
	return htmlHeadAndBodyTemplate
}

// SpeedUpMetaRefresh rewrites meta refresh delays inside already-sanitized
// HTML down to maxDelaySeconds. The navigation is still observed like
// normal; a 10s refresh just shouldn't force a 10s timeout.
func SpeedUpMetaRefresh(html string, maxDelaySeconds int) string {
	lower := strings.ToLower(html)
	if !strings.Contains(lower, "http-equiv") || !strings.Contains(lower, "refresh") {
		return html
	}

	return metaRefreshRe.ReplaceAllStringFunc(html, func(match string) string {
		parts := metaRefreshRe.FindStringSubmatch(match)
		content := refreshBodyRe.FindStringSubmatch(parts[2])
		if content == nil {
			return match
		}
		url := strings.TrimSpace(content[2])
		url = strings.Trim(url, `"'`)
		if url != "" {
			return fmt.Sprintf("%s%d; url=%s%s", parts[1], maxDelaySeconds, url, parts[3])
		}
		return fmt.Sprintf("%s%d%s", parts[1], maxDelaySeconds, parts[3])
	})
}
