package telemetry

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParquetHandlerMirrorsErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	next := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	h, err := NewParquetHandler(next, dir)
	require.NoError(t, err)

	log := slog.New(h)
	ctx := WithBatchID(context.Background(), "batch-7")

	log.InfoContext(ctx, "resolving entities", "count", 3)
	log.ErrorContext(ctx, "enrichment failed", "chunk_id", "c-1")
	require.NoError(t, h.Flush())

	files, err := filepath.Glob(filepath.Join(dir, "execution_errors_*.parquet"))
	require.NoError(t, err)
	require.Len(t, files, 1, "only error records should be flushed")

	rows, err := parquet.ReadFile[LogRecord](files[0])
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "enrichment failed", rows[0].Message)
	assert.Equal(t, "ERROR", rows[0].Level)
	assert.Equal(t, "batch-7", rows[0].BatchID)
	assert.Contains(t, rows[0].Attributes, "chunk_id")
}

func TestParquetHandlerFlushEmptyIsNoop(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	h, err := NewParquetHandler(slog.NewTextHandler(os.Stderr, nil), dir)
	require.NoError(t, err)
	require.NoError(t, h.Flush())

	files, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	require.NoError(t, err)
	assert.Empty(t, files)
}
