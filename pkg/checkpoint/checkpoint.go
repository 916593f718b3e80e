// Package checkpoint persists per-batch pipeline progress to disk so an
// interrupted ingestion can resume from the last completed stage instead of
// re-running enrichment and resolution from scratch.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/panoramicdata/chunkgraph/pkg/types"
)

// ErrInvalidBatchID is returned when a batch ID contains invalid characters
var ErrInvalidBatchID = errors.New("invalid batch ID: contains path traversal or invalid characters")

// ProcessingStep represents a stage in the ingestion pipeline
type ProcessingStep string

const (
	StepInitial      ProcessingStep = "initial"
	StepEnriched     ProcessingStep = "enriched"
	StepResolved     ProcessingStep = "resolved"
	StepExtracted    ProcessingStep = "extracted"
	StepConsolidated ProcessingStep = "consolidated"
	StepCompleted    ProcessingStep = "completed"
)

// stepOrder drives resume decisions; later steps supersede earlier ones.
var stepOrder = []ProcessingStep{
	StepInitial,
	StepEnriched,
	StepResolved,
	StepExtracted,
	StepConsolidated,
	StepCompleted,
}

// BatchCheckpoint represents the state of a partially processed batch
type BatchCheckpoint struct {
	BatchID string         `json:"batch_id"`
	Step    ProcessingStep `json:"step"`

	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	AttemptCount  int       `json:"attempt_count"`
	LastError     string    `json:"last_error,omitempty"`

	// Input chunks, kept so a resume does not depend on the caller
	// re-supplying the batch.
	Chunks []*types.Chunk `json:"chunks,omitempty"`

	// Stage outputs, populated as the pipeline advances.
	Entities      []*types.Entity       `json:"entities,omitempty"`
	Resolved      []*types.Entity       `json:"resolved,omitempty"`
	Relationships []*types.Relationship `json:"relationships,omitempty"`
	Consolidated  []*types.Relationship `json:"consolidated,omitempty"`
}

// NewBatchCheckpoint creates a checkpoint at the initial step.
func NewBatchCheckpoint(batchID string, chunks []*types.Chunk) *BatchCheckpoint {
	now := time.Now().UTC()
	return &BatchCheckpoint{
		BatchID:       batchID,
		Step:          StepInitial,
		CreatedAt:     now,
		LastUpdatedAt: now,
		AttemptCount:  1,
		Chunks:        chunks,
	}
}

// Reached reports whether the checkpoint has completed the given step.
func (c *BatchCheckpoint) Reached(step ProcessingStep) bool {
	return stepIndex(c.Step) >= stepIndex(step)
}

func stepIndex(step ProcessingStep) int {
	for i, s := range stepOrder {
		if s == step {
			return i
		}
	}
	return -1
}

// CanRetry reports whether another attempt is allowed.
func (c *BatchCheckpoint) CanRetry(maxAttempts int, maxAge time.Duration) bool {
	if c.AttemptCount >= maxAttempts {
		return false
	}
	if maxAge > 0 && time.Since(c.CreatedAt) > maxAge {
		return false
	}
	return true
}

// Manager handles saving and loading batch checkpoints
type Manager struct {
	dir string
}

// NewManager creates a Manager rooted at dir. An empty dir falls back to a
// subdirectory of the system temp directory.
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "chunkgraph-checkpoints")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// Dir returns the checkpoint directory.
func (m *Manager) Dir() string {
	return m.dir
}

// validateBatchID rejects IDs that could escape the checkpoint directory.
func validateBatchID(batchID string) error {
	if batchID == "" {
		return ErrInvalidBatchID
	}
	if strings.ContainsAny(batchID, `/\`) || strings.Contains(batchID, "..") {
		return ErrInvalidBatchID
	}
	for _, r := range batchID {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.'
		if !ok {
			return ErrInvalidBatchID
		}
	}
	return nil
}

func (m *Manager) path(batchID string) (string, error) {
	if err := validateBatchID(batchID); err != nil {
		return "", err
	}
	return filepath.Join(m.dir, batchID+".json"), nil
}

// Save writes the checkpoint atomically (write temp file, rename).
func (m *Manager) Save(ctx context.Context, checkpoint *BatchCheckpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := m.path(checkpoint.BatchID)
	if err != nil {
		return err
	}

	checkpoint.LastUpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize checkpoint: %w", err)
	}
	return nil
}

// Load reads a checkpoint. A missing checkpoint returns (nil, nil).
func (m *Manager) Load(ctx context.Context, batchID string) (*BatchCheckpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := m.path(batchID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var checkpoint BatchCheckpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return &checkpoint, nil
}

// LoadOrCreate loads an existing checkpoint or creates a fresh one. The bool
// result reports whether a prior checkpoint was resumed.
func (m *Manager) LoadOrCreate(ctx context.Context, batchID string, chunks []*types.Chunk) (*BatchCheckpoint, bool, error) {
	existing, err := m.Load(ctx, batchID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		existing.AttemptCount++
		return existing, true, nil
	}
	return NewBatchCheckpoint(batchID, chunks), false, nil
}

// Delete removes a checkpoint. Deleting a missing checkpoint is not an error.
func (m *Manager) Delete(ctx context.Context, batchID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := m.path(batchID)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Exists reports whether a checkpoint is on disk for the batch.
func (m *Manager) Exists(ctx context.Context, batchID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	path, err := m.path(batchID)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List loads every checkpoint in the directory, skipping unreadable files.
func (m *Manager) List(ctx context.Context) ([]*BatchCheckpoint, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	var checkpoints []*BatchCheckpoint
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			continue
		}
		var checkpoint BatchCheckpoint
		if err := json.Unmarshal(data, &checkpoint); err != nil {
			continue
		}
		checkpoints = append(checkpoints, &checkpoint)
	}
	return checkpoints, nil
}

// RecordError stores the failure on the checkpoint and saves it.
func (m *Manager) RecordError(ctx context.Context, checkpoint *BatchCheckpoint, cause error) error {
	checkpoint.LastError = cause.Error()
	return m.Save(ctx, checkpoint)
}

// CleanOld deletes checkpoints older than maxAge, returning how many were
// removed.
func (m *Manager) CleanOld(ctx context.Context, maxAge time.Duration) (int, error) {
	checkpoints, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for _, c := range checkpoints {
		if c.LastUpdatedAt.Before(cutoff) {
			if err := m.Delete(ctx, c.BatchID); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}
