// Package logging provides a minimal logging interface and adapters for studymesh.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// used by the graph, the router and the specialists. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - New building a JSON or text slog handler from a Config
//   - NoOpLogger for silent operation (tests, library embedding)
//
// Usage:
//
//	logger := logging.New(logging.Config{Level: logging.LevelInfo, Format: "json"})
//	mesh, err := studymesh.New(func(o *studymesh.Options) { o.Logger = logger })
//
// Messages are dotted event keys ("graph.node.start", "router.decision") with
// key/value attributes, mirroring slog's calling convention.
package logging
