package engine

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// dispatchEventOn fires one event on one element: the on* attribute
// handler first, then registered listeners. Handler exceptions are
// swallowed like uncaught page errors.
func (p *page) dispatchEventOn(el *element, name string) {
	if p.vm == nil || el == nil {
		return
	}
	var handlers []goja.Callable
	if code, ok := getAttr(el.node, "on"+name); ok && strings.TrimSpace(code) != "" {
		if fn := p.compileHandler(code); fn != nil {
			handlers = append(handlers, fn)
		}
	}
	handlers = append(handlers, el.listeners[name]...)
	if len(handlers) == 0 {
		return
	}
	proxy := p.elementProxy(el)
	event := p.newEvent(name, proxy)
	for _, fn := range handlers {
		p.callHandler(fn, proxy, event)
	}
}

// compileHandler wraps inline handler source as a function of event.
// Broken payload handlers compile to nil and are skipped.
func (p *page) compileHandler(code string) goja.Callable {
	v, err := p.vm.RunString("(function(event){" + code + "\n})")
	if err != nil {
		return nil
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil
	}
	return fn
}

func (p *page) callHandler(fn goja.Callable, this goja.Value, event goja.Value) {
	defer func() { _ = recover() }()
	_, _ = fn(this, event)
}

func (p *page) newEvent(name string, target goja.Value) goja.Value {
	vm := p.vm
	ev := vm.NewObject()
	_ = ev.Set("type", name)
	_ = ev.Set("target", target)
	_ = ev.Set("currentTarget", target)
	_ = ev.Set("isTrusted", true)
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	_ = ev.Set("preventDefault", noop)
	_ = ev.Set("stopPropagation", noop)
	_ = ev.Set("stopImmediatePropagation", noop)
	return ev
}

func (p *page) DispatchEvents(names []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("dispatch events: %w", ErrPageClosed)
	}
	if p.vm == nil || p.doc == nil {
		return fmt.Errorf("dispatch events: no document loaded")
	}
	for _, name := range names {
		name = strings.ToLower(name)
		for _, fn := range append([]goja.Callable(nil), p.doc.docListeners[name]...) {
			p.callHandler(fn, p.doc.proxy, p.newEvent(name, p.doc.proxy))
		}
		for _, el := range append([]*element(nil), p.doc.elements...) {
			if el.attached {
				p.dispatchEventOn(el, name)
			}
		}
	}
	return nil
}

// clickElement runs click handlers and then the default anchor action.
func (p *page) clickElement(el *element) {
	p.dispatchEventOn(el, "click")
	tag := strings.ToLower(el.node.Data)
	if tag != "a" && tag != "area" {
		return
	}
	href, ok := getAttr(el.node, "href")
	if !ok || strings.TrimSpace(href) == "" {
		return
	}
	p.navTo(href)
}

func (p *page) Click(selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("click: %w", ErrPageClosed)
	}
	el := p.selectFirst(selector)
	if el == nil {
		return fmt.Errorf("click: no element matches %q", selector)
	}
	p.clickElement(el)
	return nil
}

func (p *page) ResolvedHref(selector string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.doc == nil {
		return "", false
	}
	el := p.selectFirst(selector)
	if el == nil {
		return "", false
	}
	href, ok := getAttr(el.node, "href")
	if !ok {
		return "", false
	}
	trimmed := strings.TrimSpace(href)
	if strings.HasPrefix(strings.ToLower(trimmed), "javascript:") {
		return trimmed, true
	}
	return p.resolve(trimmed), true
}

func (p *page) ClickLinks(schemePrefix string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.doc == nil {
		return 0
	}
	prefix := strings.ToLower(schemePrefix)
	clicked := 0
	for _, el := range append([]*element(nil), p.doc.elements...) {
		if !el.attached {
			continue
		}
		tag := strings.ToLower(el.node.Data)
		if tag != "a" && tag != "area" {
			continue
		}
		href, ok := getAttr(el.node, "href")
		if !ok {
			continue
		}
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(href)), prefix) {
			p.clickElement(el)
			clicked++
		}
	}
	return clicked
}

func (p *page) ScanAttributes(attrs []string, scheme string) []AttributeHit {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.doc == nil {
		return nil
	}
	scheme = strings.ToLower(scheme)
	var hits []AttributeHit
	for _, el := range p.doc.elements {
		if !el.attached {
			continue
		}
		for _, attr := range attrs {
			v, ok := getAttr(el.node, attr)
			if !ok {
				continue
			}
			if strings.HasPrefix(normalizeURLValue(v), scheme) {
				hits = append(hits, AttributeHit{
					Tag:   strings.ToLower(el.node.Data),
					Attr:  strings.ToLower(attr),
					Value: v,
				})
			}
		}
	}
	return hits
}

// normalizeURLValue applies the URL attribute cleanup browsers do before
// scheme resolution: strip tab, newline, and carriage return anywhere,
// trim control and space characters at the edges, lowercase.
func normalizeURLValue(v string) string {
	v = strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\n', '\r':
			return -1
		}
		return r
	}, v)
	v = strings.TrimFunc(v, func(r rune) bool { return r <= ' ' })
	return strings.ToLower(v)
}

// simpleSelector is the selector subset the harness needs: tag, #id,
// .class, and [attr], in comma-separated groups.
type simpleSelector struct {
	tag   string
	id    string
	class string
	attr  string
}

func parseSelectorList(s string) []simpleSelector {
	var out []simpleSelector
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, parseSimpleSelector(part))
	}
	return out
}

func parseSimpleSelector(s string) simpleSelector {
	var sel simpleSelector
	rest := s
	if i := strings.Index(rest, "["); i >= 0 {
		attr := rest[i+1:]
		attr = strings.TrimSuffix(attr, "]")
		sel.attr = strings.ToLower(strings.TrimSpace(attr))
		rest = rest[:i]
	}
	if i := strings.Index(rest, "."); i >= 0 {
		sel.class = rest[i+1:]
		rest = rest[:i]
	}
	if i := strings.Index(rest, "#"); i >= 0 {
		sel.id = rest[i+1:]
		rest = rest[:i]
	}
	sel.tag = strings.ToLower(strings.TrimSpace(rest))
	return sel
}

func (sel simpleSelector) matches(el *element) bool {
	if sel.tag != "" && sel.tag != "*" && strings.ToLower(el.node.Data) != sel.tag {
		return false
	}
	if sel.id != "" {
		id, ok := getAttr(el.node, "id")
		if !ok || id != sel.id {
			return false
		}
	}
	if sel.class != "" {
		class, _ := getAttr(el.node, "class")
		found := false
		for _, c := range strings.Fields(class) {
			if c == sel.class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if sel.attr != "" {
		if _, ok := getAttr(el.node, sel.attr); !ok {
			return false
		}
	}
	return true
}

func (p *page) selectFirst(selector string) *element {
	sels := parseSelectorList(selector)
	for _, el := range p.doc.elements {
		if !el.attached {
			continue
		}
		for _, sel := range sels {
			if sel.matches(el) {
				return el
			}
		}
	}
	return nil
}

func (p *page) selectAll(selector string) []*element {
	sels := parseSelectorList(selector)
	var out []*element
	for _, el := range p.doc.elements {
		if !el.attached {
			continue
		}
		for _, sel := range sels {
			if sel.matches(el) {
				out = append(out, el)
				break
			}
		}
	}
	return out
}
