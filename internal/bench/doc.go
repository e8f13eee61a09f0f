// Package bench runs the sanitizer benchmark matrix.
//
// Each case pairs one sanitizer with one vector: the payload is adapted
// for the sanitizer's input shape, sanitized, checked against the
// vector's expected surviving markup, and handed to a harness session
// for execution detection. The matrix runs sequentially on one reused
// session or in parallel on per-worker sessions with a stall watchdog;
// both modes produce the same result set in the same order.
package bench
