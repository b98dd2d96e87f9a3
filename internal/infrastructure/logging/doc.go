// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Every sandbox component accepts a *Logger; a nil logger is replaced with
// a no-op logger so components can be constructed in tests without setup.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Sandbox initialized", zap.Duration("duration", d))
//	logger.Error("Mount failed", zap.String("path", p), zap.Error(err))
package logging
