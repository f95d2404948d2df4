// Package config loads and validates the plant configuration from YAML:
// scan timing, channel scaling, alarm thresholds, and one section per
// subsystem controller (PID gains, limits, timer durations).
//
// The control core treats these as externally supplied, validated
// values: they are read at start-up and on operator-initiated reload,
// never mutated by the scan loop. Timer durations from the source
// process descriptions (30 s forward clean, 45 s anoxic phase, ...) are
// defaults here, not invariants.
package config
