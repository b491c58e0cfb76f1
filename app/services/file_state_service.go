package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dacha-ingest/app/models"
)

// FileStateService keeps the persisted state in a single JSON file
// (state.json). This is the default store: the scraper commits the file
// alongside its CSV snapshots in CI runs.
type FileStateService struct {
	path   string
	logger *zap.Logger
}

// NewFileStateService builds a file-backed store.
func NewFileStateService(path string, logger *zap.Logger) *FileStateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStateService{path: path, logger: logger}
}

// Load reads and validates the snapshot. A missing file yields a fresh
// state; a malformed or structurally invalid one is ErrIndexCorrupt.
func (fs *FileStateService) Load(ctx context.Context) (*models.PersistedState, error) {
	b, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			fs.logger.Info("no state file, starting fresh", zap.String("path", fs.path))
			return models.NewPersistedState(), nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var state models.PersistedState
	if err := json.Unmarshal(b, &state); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIndexCorrupt, fs.path, err)
	}
	if state.Index == nil {
		state.Index = make(models.IdentityIndex)
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIndexCorrupt, fs.path, err)
	}

	fs.logger.Info("state loaded",
		zap.String("path", fs.path),
		zap.Int("listings", len(state.Index)),
		zap.Int("shards", len(state.Shards)))
	return &state, nil
}

// Save writes the snapshot atomically: temp file in the same directory,
// then rename, so a crash never leaves a half-written state.json behind.
func (fs *FileStateService) Save(ctx context.Context, state *models.PersistedState) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid state: %w", err)
	}

	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp state: %w", err)
	}
	if err := os.Rename(tmp.Name(), fs.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace state file: %w", err)
	}

	fs.logger.Debug("state saved",
		zap.String("path", fs.path),
		zap.Int("listings", len(state.Index)))
	return nil
}

// Close is a no-op for the file store.
func (fs *FileStateService) Close() error { return nil }
