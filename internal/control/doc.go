// Package control provides the two reusable control-loop primitives of
// the scan cycle: a non-blocking countdown timer advanced once per tick,
// and a PID block with anti-windup and output clamping.
//
// Both are pure in-memory state machines: they never sleep, never touch
// the wall clock, and are deterministic for identical input sequences.
package control
