package engine

import (
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// setupDocument installs the document object. It runs before the body is
// parsed so init scripts see a document, and the body/head accessors
// resolve lazily once the tree exists.
func (p *page) setupDocument() {
	vm := p.vm
	doc := vm.NewObject()
	p.doc.proxy = doc

	elemGetter := func(tag string) goja.Value {
		return vm.ToValue(func(goja.FunctionCall) goja.Value {
			if n := p.findTag(tag); n != nil {
				return p.elementProxy(p.registerNode(n, true))
			}
			return goja.Null()
		})
	}
	flagFalse := goja.FLAG_FALSE
	_ = doc.DefineAccessorProperty("body", elemGetter("body"), nil, flagFalse, goja.FLAG_TRUE)
	_ = doc.DefineAccessorProperty("head", elemGetter("head"), nil, flagFalse, goja.FLAG_TRUE)
	_ = doc.DefineAccessorProperty("documentElement", elemGetter("html"), nil, flagFalse, goja.FLAG_TRUE)

	_ = doc.Set("createElement", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		el := p.createDetachedElement(strings.ToLower(call.Arguments[0].String()))
		return p.elementProxy(el)
	})
	_ = doc.Set("createTextNode", func(call goja.FunctionCall) goja.Value {
		text := ""
		if len(call.Arguments) > 0 {
			text = call.Arguments[0].String()
		}
		el := &element{node: &html.Node{Type: html.TextNode, Data: text}}
		obj := vm.NewObject()
		_ = obj.Set("nodeType", 3)
		_ = obj.Set("nodeValue", text)
		el.proxy = obj
		p.doc.proxies[obj] = el
		return obj
	})
	_ = doc.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		want := call.Arguments[0].String()
		for _, el := range p.doc.elements {
			if !el.attached {
				continue
			}
			if id, ok := getAttr(el.node, "id"); ok && id == want {
				return p.elementProxy(el)
			}
		}
		return goja.Null()
	})
	_ = doc.Set("getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		var out []interface{}
		if len(call.Arguments) == 0 {
			return vm.ToValue(out)
		}
		want := strings.ToLower(call.Arguments[0].String())
		for _, el := range p.doc.elements {
			if el.attached && (want == "*" || strings.ToLower(el.node.Data) == want) {
				out = append(out, p.elementProxy(el))
			}
		}
		return vm.ToValue(out)
	})
	_ = doc.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		if el := p.selectFirst(call.Arguments[0].String()); el != nil {
			return p.elementProxy(el)
		}
		return goja.Null()
	})
	_ = doc.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		var out []interface{}
		if len(call.Arguments) == 0 {
			return vm.ToValue(out)
		}
		for _, el := range p.selectAll(call.Arguments[0].String()) {
			out = append(out, p.elementProxy(el))
		}
		return vm.ToValue(out)
	})
	write := func(call goja.FunctionCall, newline bool) goja.Value {
		var b strings.Builder
		for _, a := range call.Arguments {
			b.WriteString(a.String())
		}
		if newline {
			b.WriteString("\n")
		}
		p.documentWrite(b.String())
		return goja.Undefined()
	}
	_ = doc.Set("write", func(call goja.FunctionCall) goja.Value { return write(call, false) })
	_ = doc.Set("writeln", func(call goja.FunctionCall) goja.Value { return write(call, true) })
	_ = doc.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 1 {
			if fn, ok := goja.AssertFunction(call.Arguments[1]); ok {
				name := strings.ToLower(call.Arguments[0].String())
				p.doc.docListeners[name] = append(p.doc.docListeners[name], fn)
			}
		}
		return goja.Undefined()
	})
	_ = doc.Set("removeEventListener", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	_ = doc.DefineAccessorProperty("cookie",
		vm.ToValue(func(goja.FunctionCall) goja.Value { return vm.ToValue("") }),
		vm.ToValue(func(goja.FunctionCall) goja.Value { return goja.Undefined() }),
		flagFalse, goja.FLAG_TRUE)
	_ = doc.Set("title", "")
	_ = doc.Set("referrer", "")
	if p.baseURL != nil {
		_ = doc.Set("domain", p.baseURL.Hostname())
	}
	locGetter := vm.ToValue(func(goja.FunctionCall) goja.Value {
		return p.vm.GlobalObject().Get("location")
	})
	locSetter := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			p.navTo(call.Arguments[0].String())
		}
		return goja.Undefined()
	})
	_ = doc.DefineAccessorProperty("location", locGetter, locSetter, flagFalse, goja.FLAG_TRUE)

	_ = vm.Set("document", doc)
}

func (p *page) findTag(tag string) *html.Node {
	if p.doc == nil || p.doc.root == nil {
		return nil
	}
	var find func(*html.Node) *html.Node
	find = func(n *html.Node) *html.Node {
		for ; n != nil; n = n.NextSibling {
			if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
				return n
			}
			if hit := find(n.FirstChild); hit != nil {
				return hit
			}
		}
		return nil
	}
	return find(p.doc.root)
}

func (p *page) createDetachedElement(tag string) *element {
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	el := &element{node: n, listeners: map[string][]goja.Callable{}}
	p.doc.byNode[n] = el
	p.doc.elements = append(p.doc.elements, el)
	return el
}

// setElementAttr writes an attribute and replays the loading side
// effects a live document would have.
func (p *page) setElementAttr(el *element, name, value string) {
	name = strings.ToLower(name)
	setAttr(el.node, name, value)
	tag := strings.ToLower(el.node.Data)
	switch {
	case name == "style":
		p.scanCSS(el.node, value)
	case name == "background" && (tag == "body" || tag == "table" || tag == "td" || tag == "th"):
		if p.prof.legacyResourceAttrs {
			p.loadResource(el.node, value, KindImage)
		}
	case name == "src" || (name == "lowsrc" && p.prof.legacyResourceAttrs):
		switch tag {
		case "img", "input":
			// Image loads start on assignment even while detached.
			p.loadResource(el.node, value, KindImage)
		case "video", "audio", "source":
			p.loadResource(el.node, value, KindMedia)
		case "script":
			if el.attached {
				p.loadResource(el.node, value, KindScript)
			}
		case "iframe", "frame":
			if el.attached {
				p.processFrame(el.node, true)
			}
		}
	case name == "href" && tag == "link":
		if el.attached {
			// A changed href loads again.
			delete(p.doc.processed, el.node)
			p.processElement(el.node, false)
		}
	}
}

func (p *page) elementProxy(el *element) *goja.Object {
	if el.proxy != nil {
		return el.proxy
	}
	vm := p.vm
	obj := vm.NewObject()
	el.proxy = obj
	p.doc.proxies[obj] = el
	n := el.node

	_ = obj.Set("nodeType", 1)
	_ = obj.Set("tagName", strings.ToUpper(n.Data))
	_ = obj.Set("nodeName", strings.ToUpper(n.Data))
	_ = obj.Set("style", vm.NewObject())
	_ = obj.Set("dataset", vm.NewObject())
	_ = obj.Set("ownerDocument", p.doc.proxy)

	attrAccessor := func(name string, resolved bool) {
		getter := vm.ToValue(func(goja.FunctionCall) goja.Value {
			v, ok := getAttr(n, name)
			if !ok {
				return vm.ToValue("")
			}
			if resolved && !strings.HasPrefix(strings.ToLower(strings.TrimSpace(v)), "javascript:") {
				return vm.ToValue(p.resolve(v))
			}
			return vm.ToValue(v)
		})
		setter := vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) > 0 {
				p.setElementAttr(el, name, call.Arguments[0].String())
			}
			return goja.Undefined()
		})
		_ = obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}
	attrAccessor("id", false)
	attrAccessor("src", true)
	attrAccessor("href", true)
	attrAccessor("name", false)
	attrAccessor("value", false)

	_ = obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		if v, ok := getAttr(n, call.Arguments[0].String()); ok {
			return vm.ToValue(v)
		}
		return goja.Null()
	})
	_ = obj.Set("hasAttribute", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return vm.ToValue(false)
		}
		_, ok := getAttr(n, call.Arguments[0].String())
		return vm.ToValue(ok)
	})
	_ = obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 1 {
			p.setElementAttr(el, call.Arguments[0].String(), call.Arguments[1].String())
		}
		return goja.Undefined()
	})
	_ = obj.Set("removeAttribute", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			removeAttr(n, call.Arguments[0].String())
		}
		return goja.Undefined()
	})
	_ = obj.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 1 {
			if fn, ok := goja.AssertFunction(call.Arguments[1]); ok {
				name := strings.ToLower(call.Arguments[0].String())
				el.listeners[name] = append(el.listeners[name], fn)
			}
		}
		return goja.Undefined()
	})
	_ = obj.Set("removeEventListener", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	appendChild := func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		return p.appendChildProxy(el, call.Arguments[0])
	}
	_ = obj.Set("appendChild", appendChild)
	_ = obj.Set("append", appendChild)
	_ = obj.Set("insertBefore", appendChild)
	_ = obj.Set("remove", func(goja.FunctionCall) goja.Value {
		p.detachElement(el)
		return goja.Undefined()
	})
	_ = obj.Set("click", func(goja.FunctionCall) goja.Value {
		p.clickElement(el)
		return goja.Undefined()
	})
	_ = obj.Set("dispatchEvent", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			name := call.Arguments[0].String()
			if o, ok := call.Arguments[0].(*goja.Object); ok {
				if t := o.Get("type"); t != nil {
					name = t.String()
				}
			}
			p.dispatchEventOn(el, strings.ToLower(name))
		}
		return vm.ToValue(true)
	})

	innerGetter := vm.ToValue(func(goja.FunctionCall) goja.Value {
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			_ = html.Render(&b, c)
		}
		return vm.ToValue(b.String())
	})
	innerSetter := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			p.setInnerHTML(el, call.Arguments[0].String())
		}
		return goja.Undefined()
	})
	_ = obj.DefineAccessorProperty("innerHTML", innerGetter, innerSetter, goja.FLAG_FALSE, goja.FLAG_TRUE)

	textGetter := vm.ToValue(func(goja.FunctionCall) goja.Value {
		return vm.ToValue(textContent(n))
	})
	textSetter := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			for n.FirstChild != nil {
				n.RemoveChild(n.FirstChild)
			}
			n.AppendChild(&html.Node{Type: html.TextNode, Data: call.Arguments[0].String()})
		}
		return goja.Undefined()
	})
	_ = obj.DefineAccessorProperty("textContent", textGetter, textSetter, goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = obj.DefineAccessorProperty("text", textGetter, textSetter, goja.FLAG_FALSE, goja.FLAG_TRUE)

	outerGetter := vm.ToValue(func(goja.FunctionCall) goja.Value {
		var b strings.Builder
		_ = html.Render(&b, n)
		return vm.ToValue(b.String())
	})
	_ = obj.DefineAccessorProperty("outerHTML", outerGetter, nil, goja.FLAG_FALSE, goja.FLAG_TRUE)

	return obj
}

// appendChildProxy attaches a script-created node and replays the side
// effects of insertion: dynamically inserted scripts run or fetch.
func (p *page) appendChildProxy(parent *element, childVal goja.Value) goja.Value {
	childObj, ok := childVal.(*goja.Object)
	if !ok {
		return goja.Null()
	}
	child, ok := p.doc.proxies[childObj]
	if !ok {
		return goja.Null()
	}
	if child.node.Parent != nil {
		child.node.Parent.RemoveChild(child.node)
	}
	parent.node.AppendChild(child.node)
	if child.node.Type != html.ElementNode {
		return childVal
	}
	if parent.attached {
		child.attached = true
		p.registerSubtree(child.node.FirstChild, true)
		p.processElement(child.node, true)
		p.processSubtree(child.node.FirstChild, true)
	}
	return childVal
}

func (p *page) detachElement(el *element) {
	if el.node.Parent != nil {
		el.node.Parent.RemoveChild(el.node)
	}
	el.attached = false
}

// setInnerHTML parses markup into the element. Scripts inserted this way
// do not execute, but resource loads and their error events still fire.
func (p *page) setInnerHTML(el *element, markup string) {
	n := el.node
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
	ctx := n
	if ctx.DataAtom == 0 {
		ctx = &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return
	}
	for _, c := range nodes {
		n.AppendChild(c)
		if c.Type == html.ElementNode {
			p.registerNode(c, el.attached)
		}
		p.registerSubtree(c.FirstChild, el.attached)
	}
	if el.attached {
		for _, c := range nodes {
			if c.Type == html.ElementNode {
				p.processElement(c, false)
				p.processSubtree(c.FirstChild, false)
			}
		}
	}
}

// documentWrite appends markup to the body and runs its scripts.
func (p *page) documentWrite(markup string) {
	body := p.findTag("body")
	if body == nil {
		return
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return
	}
	for _, c := range nodes {
		body.AppendChild(c)
		if c.Type == html.ElementNode {
			p.registerNode(c, true)
		}
		p.registerSubtree(c.FirstChild, true)
	}
	for _, c := range nodes {
		if c.Type == html.ElementNode {
			p.processElement(c, true)
			p.processSubtree(c.FirstChild, true)
		}
	}
}
