package main

import (
	"log/slog"

	"github.com/panoramicdata/chunkgraph/pkg/logger"
)

func main() {
	// Create a colored logger
	log := logger.NewDefaultLogger(slog.LevelDebug)

	log.Info("============================================")
	log.Info("    Chunkgraph Colored Logger Demo")
	log.Info("============================================")
	log.Info("")

	log.Debug("Debug message - standard color")
	log.Info("Info message - standard color")
	log.Info("Persisting graph to parquet - green!")
	log.Info("Graph exported successfully - also green!")
	log.Warn("Warning message - yellow!")
	log.Error("Error message - red!")

	log.Info("")
	log.Info("Storage and export operations are highlighted in green:")
	log.Info("Persisting resolved entities", "count", 42, "batch_size", 100)
	log.Info("Exported consolidated relationships", "count", 156, "duration", "1.8s")

	log.Info("")
	log.Warn("Warnings appear in yellow for attention")
	log.Error("Errors appear in red for immediate visibility")

	log.Info("")
	log.Info("Demo complete!")
}
