// Package log provides structured capture of session lifecycle and detection
// events.
//
// Events are typed records (state transitions, per-frame statistics,
// detection add/remove, errors) rather than free-form strings. Applications
// implement the Logger interface or use one of the provided sinks:
//
//   - FileLogger: CBOR stream on disk, replayable with Reader / cmd/xr-log
//   - SlogAdapter: forwards events to a log/slog logger for development
//   - MultiLogger: fan-out to several sinks
//   - NoopLogger: discards everything
//
// Event logging is diagnostic; sinks must never disrupt the frame loop.
// Encoding errors are dropped silently.
package log
