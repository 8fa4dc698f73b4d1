// Package logger provides a structured logging interface for the analyzer.
//
// It wraps the zerolog library to provide a clean, easy-to-use API with support for:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Pretty console output with colors
// - File output
// - Context support for request tracing
// - Global logger instance for easy access
//
// Basic Usage:
//
//	import "reelscope/pkg/logger"
//
//	// Initialize the global logger
//	cfg := &config.LoggingConfig{
//	    Level: "info",
//	    File: "/var/log/reelscope.log",
//	}
//	err := logger.Initialize(cfg)
//
//	// Use the global logger
//	logger.Info("Application started")
//	logger.GetLogger().WithField("user_id", 42).Info("Analysis requested")
//	logger.GetLogger().WithError(err).Error("Job submission failed")
//
// Advanced Usage:
//
//	// Create a logger instance with fields
//	log := logger.GetLogger().
//	    WithField("component", "scrapejob").
//	    WithField("job_id", "abc123")
//
//	// Use structured logging
//	log.InfoWithFields("Job completed", map[string]interface{}{
//	    "items":    24,
//	    "duration": time.Second * 95,
//	})
package logger
