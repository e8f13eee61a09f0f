package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// maxProcessDepth bounds recursive document processing through srcdoc
// frames and document.write chains.
const maxProcessDepth = 10

var (
	cssURLRe    = regexp.MustCompile(`(?i)url\(\s*['"]?([^'")\s]+)`)
	cssImportRe = regexp.MustCompile(`(?i)@import\s+['"]([^'"]+)`)
)

// element pairs a parse-tree node with its script-visible state.
type element struct {
	node      *html.Node
	listeners map[string][]goja.Callable
	proxy     *goja.Object
	attached  bool
}

type document struct {
	root         *html.Node
	elements     []*element
	byNode       map[*html.Node]*element
	docListeners map[string][]goja.Callable
	proxies      map[*goja.Object]*element
	proxy        *goja.Object

	// processed guards against double-processing nodes that document.write
	// or appendChild insert into a subtree the walk has not finished: a
	// script node runs at most once, like a real document.
	processed map[*html.Node]struct{}
}

func newDocument() *document {
	return &document{
		byNode:       map[*html.Node]*element{},
		docListeners: map[string][]goja.Callable{},
		proxies:      map[*goja.Object]*element{},
		processed:    map[*html.Node]struct{}{},
	}
}

func getAttr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, value string) {
	name = strings.ToLower(name)
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(n *html.Node, name string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		for ; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
			walk(c.FirstChild)
		}
	}
	walk(n.FirstChild)
	return b.String()
}

// loadDocument parses body into a fresh document and runs its scripts
// and resource loads in document order.
func (p *page) loadDocument(body string) error {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	p.doc.root = root
	p.registerSubtree(root, true)
	p.processSubtree(root, true)
	return nil
}

// registerSubtree records every element node so scans, event dispatch,
// and id lookups see it.
func (p *page) registerSubtree(n *html.Node, attached bool) {
	for ; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode {
			p.registerNode(n, attached)
		}
		p.registerSubtree(n.FirstChild, attached)
	}
}

func (p *page) registerNode(n *html.Node, attached bool) *element {
	if el, ok := p.doc.byNode[n]; ok {
		el.attached = el.attached || attached
		return el
	}
	el := &element{node: n, listeners: map[string][]goja.Callable{}, attached: attached}
	p.doc.byNode[n] = el
	p.doc.elements = append(p.doc.elements, el)
	return el
}

// processSubtree walks nodes in document order, emitting resource
// requests and executing scripts.
func (p *page) processSubtree(n *html.Node, execScripts bool) {
	if p.depth >= maxProcessDepth {
		return
	}
	p.depth++
	defer func() { p.depth-- }()
	for ; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode {
			p.processElement(n, execScripts)
		}
		if n.Type != html.ElementNode || !isRawChildSkip(n.Data) {
			p.processSubtree(n.FirstChild, execScripts)
		}
	}
}

// isRawChildSkip marks elements whose children are handled by the
// element itself rather than the generic walk.
func isRawChildSkip(tag string) bool {
	switch tag {
	case "script", "style", "template":
		return true
	}
	return false
}

func (p *page) processElement(n *html.Node, execScripts bool) {
	if _, done := p.doc.processed[n]; done {
		return
	}
	p.doc.processed[n] = struct{}{}
	tag := strings.ToLower(n.Data)
	switch tag {
	case "script":
		if src, ok := getAttr(n, "src"); ok && strings.TrimSpace(src) != "" {
			p.loadResource(n, src, KindScript)
		} else if execScripts {
			p.runScript(textContent(n))
		}
	case "img":
		attrs := []string{"src"}
		if p.prof.legacyResourceAttrs {
			attrs = append(attrs, "lowsrc")
		}
		for _, attr := range attrs {
			if v, ok := getAttr(n, attr); ok && strings.TrimSpace(v) != "" {
				p.loadResource(n, v, KindImage)
			}
		}
		if v, ok := getAttr(n, "srcset"); ok {
			for _, cand := range strings.Split(v, ",") {
				fields := strings.Fields(strings.TrimSpace(cand))
				if len(fields) > 0 {
					p.loadResource(n, fields[0], KindImage)
				}
			}
		}
	case "input":
		if t, _ := getAttr(n, "type"); strings.EqualFold(strings.TrimSpace(t), "image") {
			if v, ok := getAttr(n, "src"); ok {
				p.loadResource(n, v, KindImage)
			}
		}
	case "iframe", "frame":
		p.processFrame(n, execScripts)
	case "link":
		if href, ok := getAttr(n, "href"); ok && strings.TrimSpace(href) != "" {
			rel, _ := getAttr(n, "rel")
			kind := KindOther
			if strings.Contains(strings.ToLower(rel), "stylesheet") {
				kind = KindStylesheet
			}
			p.loadResource(n, href, kind)
		}
	case "style":
		p.scanCSS(n, textContent(n))
	case "meta":
		p.processMetaRefresh(n)
	case "video", "audio", "source":
		if v, ok := getAttr(n, "src"); ok && strings.TrimSpace(v) != "" {
			p.loadResource(n, v, KindMedia)
		}
	case "track":
		if v, ok := getAttr(n, "src"); ok {
			p.loadResource(n, v, KindTrack)
		}
	case "embed":
		if v, ok := getAttr(n, "src"); ok {
			p.loadResource(n, v, KindObject)
		}
	case "object":
		if v, ok := getAttr(n, "data"); ok {
			p.loadResource(n, v, KindObject)
		}
	case "image", "use":
		for _, attr := range []string{"href", "xlink:href"} {
			if v, ok := getAttr(n, attr); ok && strings.TrimSpace(v) != "" {
				p.loadResource(n, v, KindImage)
			}
		}
	case "body", "table", "td", "th":
		if !p.prof.legacyResourceAttrs {
			break
		}
		if v, ok := getAttr(n, "background"); ok && strings.TrimSpace(v) != "" {
			p.loadResource(n, v, KindImage)
		}
	}
	if style, ok := getAttr(n, "style"); ok {
		p.scanCSS(n, style)
	}
}

// loadResource emits the request and, since every subresource aborts,
// schedules the element's error event.
func (p *page) loadResource(n *html.Node, ref string, kind ResourceKind) {
	trimmed := strings.TrimSpace(ref)
	if strings.HasPrefix(strings.ToLower(trimmed), "javascript:") {
		// javascript: subresource URLs do not run in modern engines,
		// but they are exactly what the dangerous-URL scan looks for.
		return
	}
	if _, ok := p.request(p.resolve(trimmed), kind); !ok {
		el := p.registerNode(n, p.doc.byNode[n] != nil && p.doc.byNode[n].attached)
		p.scheduleGo(func() { p.dispatchEventOn(el, "error") }, 0)
	}
}

func (p *page) scanCSS(n *html.Node, css string) {
	for _, m := range cssImportRe.FindAllStringSubmatch(css, -1) {
		p.loadResource(n, m[1], KindStylesheet)
	}
	for _, m := range cssURLRe.FindAllStringSubmatch(css, -1) {
		p.loadResource(n, m[1], KindImage)
	}
}

func (p *page) processFrame(n *html.Node, execScripts bool) {
	if srcdoc, ok := getAttr(n, "srcdoc"); ok {
		p.committed("about:srcdoc")
		frag, err := html.Parse(strings.NewReader(srcdoc))
		if err == nil {
			p.registerSubtree(frag, true)
			p.processSubtree(frag, execScripts)
		}
		return
	}
	src, ok := getAttr(n, "src")
	if !ok || strings.TrimSpace(src) == "" {
		return
	}
	trimmed := strings.TrimSpace(src)
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "javascript:"):
		if execScripts && p.prof.javascriptFrameSrc {
			p.runJavaScriptURL(trimmed)
		}
	case lower == "about:blank":
		p.committed("about:blank")
	default:
		p.request(p.resolve(trimmed), KindDocument)
	}
}

// processMetaRefresh schedules the refresh navigation on the page clock.
func (p *page) processMetaRefresh(n *html.Node) {
	equiv, _ := getAttr(n, "http-equiv")
	if !strings.EqualFold(strings.TrimSpace(equiv), "refresh") {
		return
	}
	content, ok := getAttr(n, "content")
	if !ok {
		return
	}
	delaySec, target := parseRefreshContent(content)
	if delaySec < 0 {
		return
	}
	if target == "" && p.baseURL != nil {
		target = p.baseURL.String()
	}
	delay := time.Duration(delaySec * float64(time.Second))
	p.scheduleGo(func() { p.navTo(target) }, delay)
}

// parseRefreshContent splits a refresh directive such as "0; url=/x"
// into its delay and optional target. A negative delay means malformed.
func parseRefreshContent(content string) (float64, string) {
	parts := strings.FieldsFunc(content, func(r rune) bool { return r == ';' || r == ',' })
	if len(parts) == 0 {
		return -1, ""
	}
	delay, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || delay < 0 {
		return -1, ""
	}
	target := ""
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(strings.ToLower(part), "url") {
			rest := strings.TrimSpace(part[3:])
			rest = strings.TrimSpace(strings.TrimPrefix(rest, "="))
			target = strings.Trim(rest, `'"`)
		}
	}
	return delay, target
}
