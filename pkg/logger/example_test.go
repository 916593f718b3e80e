package logger_test

import (
	"log/slog"

	"github.com/panoramicdata/chunkgraph/pkg/logger"
)

func ExampleNewDefaultLogger() {
	// Create a logger with default settings
	log := logger.NewDefaultLogger(slog.LevelDebug)

	// Log different levels
	log.Debug("This is a debug message")
	log.Info("This is an info message")
	log.Info("Persisting graph to parquet") // Will be green in terminal
	log.Warn("This is a warning message")   // Will be yellow in terminal
	log.Error("This is an error message")   // Will be red in terminal
}

func ExampleNewLogger() {
	// Create a logger with custom configuration
	log := logger.NewLogger(slog.LevelInfo, "text")

	// Log with attributes
	log.Info("Resolving entities", "batch_size", 128)
	log.Info("Exported consolidated relationships", "count", 42) // Green
	log.Warn("Cache backing store unavailable", "retry_in", "30s")
	log.Error("Enrichment failed", "chunk_id", "c-17", "error", "timeout")
}
