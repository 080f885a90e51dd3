// Package logging provides structured logging for the foresight controller.
//
// It wraps Go's log/slog to write JSON lines, with child loggers that carry
// persistent attributes such as the emitting component or the adaptation
// cycle ID.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Component, cycle and pool attributes via With* helpers
//   - Size-based log rotation with optional gzip compression
//   - Reading rotated logs back for filtering and display
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers share
// the parent's output; closing any of them closes the shared file.
//
// # Basic Usage
//
//	logger, err := logging.NewLoggerWithRotation(dir, logging.LevelInfo, logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	mgrLog := logger.WithComponent("manager")
//	mgrLog.WithCycle(id).Info("action applied", "type", "trigger-gc")
//
// Tests use [NopLogger] to discard output.
package logging
