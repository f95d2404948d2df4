// Package version exposes build metadata (semantic version, commit,
// build timestamp) injected via ldflags, plus a cobra `version`
// subcommand shared by the plant-controller binary.
package version
