// Package harness detects script execution and data exfiltration for
// rendered payload documents.
//
// A Session owns one page for its whole lifetime and reuses it across
// cases: each run cancels the previous case's timers, serves the new
// document at the fixed base URL, and classifies the signals captured by
// the prelude hook, dialog and navigation callbacks, and the request
// interceptor. Signals follow a fixed precedence so a run maps to
// exactly one verdict.
package harness
