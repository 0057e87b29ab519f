// Package logging provides a minimal logging interface and adapters for Quorum.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the session manager, coordinator and relays use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - QuorumLogger with contextual helpers (component, session, turn)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	q := quorum.New(func(o *quorum.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor
// lock-in while supporting structured logging where available.
package logging
