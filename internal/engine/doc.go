// Package engine is the browser control channel for the benchmark harness.
//
// The harness depends only on the Page capability set: navigate with
// request interception, init scripts that run before any page script,
// dialog and navigation callbacks, expression evaluation, synthetic event
// dispatch, and element clicks. Any automation layer that satisfies Page is
// substitutable.
//
// The built-in implementation is an in-process headless engine: documents
// are parsed with golang.org/x/net/html and page script runs in a sandboxed
// goja runtime with DOM bindings, timers on a virtual clock, and network
// side effects surfaced as intercepted requests. It never touches the
// network; every request is answered by the installed route handler.
package engine
