// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a sane console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// Every long-lived component accepts a context and extracts the logger
// from it, so log lines carry the name of the subsystem that produced
// them. Nothing in this package blocks; it is safe to call from inside
// the scan loop.
package logger
