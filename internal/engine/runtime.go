package engine

import (
	"strings"
	"time"

	"github.com/dop251/goja"
)

// setupRuntime builds a fresh script runtime for a new document. A new
// runtime per navigation is what resets prelude hooks between cases.
func (p *page) setupRuntime() {
	vm := goja.New()
	p.vm = vm

	global := vm.GlobalObject()
	_ = global.Set("window", global)
	_ = global.Set("self", global)
	_ = global.Set("top", global)
	_ = global.Set("parent", global)
	_ = global.Set("frames", global)

	p.setupDialogs(vm)
	p.setupTimers(vm)
	p.setupLocation(vm)
	p.setupNetwork(vm)

	p.doc = newDocument()
	p.setupDocument()
}

func (p *page) setupDialogs(vm *goja.Runtime) {
	message := func(call goja.FunctionCall) string {
		if len(call.Arguments) == 0 {
			return ""
		}
		return call.Arguments[0].String()
	}
	_ = vm.Set("alert", func(call goja.FunctionCall) goja.Value {
		p.fireDialog("alert", message(call))
		return goja.Undefined()
	})
	_ = vm.Set("confirm", func(call goja.FunctionCall) goja.Value {
		p.fireDialog("confirm", message(call))
		return vm.ToValue(true)
	})
	_ = vm.Set("prompt", func(call goja.FunctionCall) goja.Value {
		p.fireDialog("prompt", message(call))
		if len(call.Arguments) > 1 {
			return call.Arguments[1]
		}
		return vm.ToValue("")
	})
	_ = vm.Set("print", func(call goja.FunctionCall) goja.Value {
		p.fireDialog("print", "")
		return goja.Undefined()
	})
}

// timerDelay reads the delay argument of a timer call in milliseconds.
func timerDelay(call goja.FunctionCall, idx int) time.Duration {
	if len(call.Arguments) <= idx {
		return 0
	}
	ms := call.Arguments[idx].ToFloat()
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}

func (p *page) setupTimers(vm *goja.Runtime) {
	schedule := func(call goja.FunctionCall, repeat bool) goja.Value {
		if len(call.Arguments) == 0 {
			return vm.ToValue(0)
		}
		delay := timerDelay(call, 1)
		if fn, ok := goja.AssertFunction(call.Arguments[0]); ok {
			return vm.ToValue(p.scheduleFunc(fn, delay, repeat))
		}
		// String handlers compile at fire time.
		return vm.ToValue(p.scheduleCode(call.Arguments[0].String(), delay, repeat))
	}
	clear := func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			p.clearTimer(call.Arguments[0].ToInteger())
		}
		return goja.Undefined()
	}
	_ = vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value { return schedule(call, false) })
	_ = vm.Set("setInterval", func(call goja.FunctionCall) goja.Value { return schedule(call, true) })
	_ = vm.Set("clearTimeout", clear)
	_ = vm.Set("clearInterval", clear)
	_ = vm.Set("requestAnimationFrame", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return vm.ToValue(0)
		}
		if fn, ok := goja.AssertFunction(call.Arguments[0]); ok {
			return vm.ToValue(p.scheduleFunc(fn, 16*time.Millisecond, false))
		}
		return vm.ToValue(0)
	})
	_ = vm.Set("cancelAnimationFrame", clear)
	_ = vm.Set("queueMicrotask", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			if fn, ok := goja.AssertFunction(call.Arguments[0]); ok {
				p.scheduleFunc(fn, 0, false)
			}
		}
		return goja.Undefined()
	})
}

func (p *page) setupLocation(vm *goja.Runtime) {
	loc := vm.NewObject()
	href := func() string {
		if p.baseURL == nil {
			return "about:blank"
		}
		return p.baseURL.String()
	}
	getter := func(fn func() string) goja.Value {
		return vm.ToValue(func(goja.FunctionCall) goja.Value { return vm.ToValue(fn()) })
	}
	setNav := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			p.navTo(call.Arguments[0].String())
		}
		return goja.Undefined()
	})
	_ = loc.DefineAccessorProperty("href", getter(href), setNav, goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = loc.DefineAccessorProperty("hash", getter(func() string {
		if p.baseURL != nil && p.baseURL.Fragment != "" {
			return "#" + p.baseURL.Fragment
		}
		return ""
	}), vm.ToValue(func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			frag := strings.TrimPrefix(call.Arguments[0].String(), "#")
			p.navTo("#" + frag)
		}
		return goja.Undefined()
	}), goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = loc.Set("protocol", protocolOf(href()))
	_ = loc.Set("host", hostOf(href()))
	_ = loc.Set("hostname", hostOf(href()))
	_ = loc.Set("origin", originOf(href()))
	_ = loc.Set("pathname", "/")
	_ = loc.Set("search", "")
	_ = loc.Set("assign", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			p.navTo(call.Arguments[0].String())
		}
		return goja.Undefined()
	})
	_ = loc.Set("replace", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			p.navTo(call.Arguments[0].String())
		}
		return goja.Undefined()
	})
	_ = loc.Set("reload", func(goja.FunctionCall) goja.Value {
		p.navTo(href())
		return goja.Undefined()
	})
	_ = loc.Set("toString", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(href())
	})

	locGetter := vm.ToValue(func(goja.FunctionCall) goja.Value { return loc })
	// Assigning to bare `location` navigates, same as location.href.
	_ = vm.GlobalObject().DefineAccessorProperty("location", locGetter, setNav, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

func protocolOf(raw string) string {
	if i := strings.Index(raw, ":"); i > 0 {
		return raw[:i+1]
	}
	return ""
}

func hostOf(raw string) string {
	rest := raw
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func originOf(raw string) string {
	h := hostOf(raw)
	if h == "" {
		return "null"
	}
	return protocolOf(raw) + "//" + h
}

func (p *page) setupNetwork(vm *goja.Runtime) {
	_ = vm.Set("fetch", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			p.request(p.resolve(call.Arguments[0].String()), KindFetch)
		}
		// All requests abort, so the promise never settles.
		promise, _, _ := vm.NewPromise()
		return vm.ToValue(promise)
	})

	navigator := vm.NewObject()
	_ = navigator.Set("userAgent", "xssbench/goja")
	_ = navigator.Set("sendBeacon", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			p.request(p.resolve(call.Arguments[0].String()), KindPing)
		}
		return vm.ToValue(true)
	})
	_ = vm.Set("navigator", navigator)

	_ = vm.Set("XMLHttpRequest", func(call goja.ConstructorCall) *goja.Object {
		obj := call.This
		var target string
		_ = obj.Set("open", func(c goja.FunctionCall) goja.Value {
			if len(c.Arguments) > 1 {
				target = c.Arguments[1].String()
			}
			return goja.Undefined()
		})
		_ = obj.Set("setRequestHeader", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
		_ = obj.Set("send", func(goja.FunctionCall) goja.Value {
			if target != "" {
				p.request(p.resolve(target), KindXHR)
			}
			return goja.Undefined()
		})
		_ = obj.Set("abort", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
		return nil
	})

	_ = vm.Set("Image", func(call goja.ConstructorCall) *goja.Object {
		el := p.createDetachedElement("img")
		return p.elementProxy(el)
	})
	_ = vm.Set("Audio", func(call goja.ConstructorCall) *goja.Object {
		el := p.createDetachedElement("audio")
		if len(call.Arguments) > 0 {
			p.setElementAttr(el, "src", call.Arguments[0].String())
		}
		return p.elementProxy(el)
	})

	_ = vm.Set("open", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			p.navTo(call.Arguments[0].String())
		}
		return goja.Null()
	})
}
