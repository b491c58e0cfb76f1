package services

import (
	"context"
	"errors"

	"github.com/dacha-ingest/app/models"
)

// ErrIndexCorrupt means the persisted snapshot failed structural
// validation on load. Fatal at startup: running against a corrupt index
// risks duplicate inserts, so the engine refuses to start. Recovery policy
// (backups, manual repair) lives outside the core.
var ErrIndexCorrupt = errors.New("persisted state corrupt")

// StateStore persists the identity index and shard states between runs.
type StateStore interface {
	// Load returns the last persisted state, or a fresh empty state when
	// none exists yet. A structurally invalid snapshot returns
	// ErrIndexCorrupt.
	Load(ctx context.Context) (*models.PersistedState, error)

	// Save durably replaces the snapshot. Must complete before the next
	// run may merge.
	Save(ctx context.Context, state *models.PersistedState) error

	// Close releases any underlying connection.
	Close() error
}
