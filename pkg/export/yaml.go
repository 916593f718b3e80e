package export

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/panoramicdata/chunkgraph/pkg/graph"
)

// WriteStatisticsYAML computes the graph's statistics and writes them to a
// human-readable YAML file at path. Parent directories are created.
func WriteStatisticsYAML(g *graph.Graph, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create statistics directory: %w", err)
	}

	stats := g.ComputeStatistics()
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal statistics: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}
