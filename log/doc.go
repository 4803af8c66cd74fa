// Package log provides the leveled, printf-style logging used across toolchat.
//
// The Logger interface is intentionally small so that any component (the
// dispatch loop controller, session manager, stores, HTTP server) can accept a
// logger option without depending on a concrete backend. The default backend is
// kataras/golog.
//
// # Log Levels
//
//   - LogLevelDebug: per-iteration detail of a turn (model calls, tool timings)
//   - LogLevelInfo: turn completion, server lifecycle
//   - LogLevelWarn: tool failures absorbed into the conversation, retries
//   - LogLevelError: failed turns, persistence errors
//   - LogLevelNone: disables all logging output
//
// # Example Usage
//
//	logger := log.NewLogger(os.Stderr, log.LogLevelDebug)
//	logger.Info("listening on %s", addr)
//
//	// Or use an existing golog instance
//	glogger := golog.New()
//	glogger.SetTimeFormat("15:04:05")
//	logger := log.NewGologLogger(glogger)
//
//	// Package-level helpers
//	level, _ := log.ParseLevel(os.Getenv("LOG_LEVEL"))
//	log.SetLogLevel(level)
//	log.Warn("tool %s failed: %v", name, err)
package log
