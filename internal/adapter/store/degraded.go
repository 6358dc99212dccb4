package store

import (
	"context"
	"log/slog"

	"joby/internal/domain"
)

// Degraded is a profile store that serves nothing and accepts nothing.
// When the durable store is unreachable at startup the gateway swaps it
// in so the orchestrator keeps functioning on session-cache-only state:
// reads report absence, writes are dropped, and every operation is logged
// at Warn.
type Degraded struct {
	logger *slog.Logger
}

// NewDegraded creates a degraded-mode profile store.
func NewDegraded(logger *slog.Logger) *Degraded {
	return &Degraded{logger: logger}
}

// Get implements domain.ProfileStore.
func (d *Degraded) Get(_ context.Context, index, id string, _ any) (bool, error) {
	d.logger.Warn("profile store degraded, read skipped", "index", index, "id", id)
	return false, nil
}

// Put implements domain.ProfileStore.
func (d *Degraded) Put(_ context.Context, index, id string, _ any) error {
	d.logger.Warn("profile store degraded, write dropped", "index", index, "id", id)
	return nil
}

// Search implements domain.ProfileStore.
func (d *Degraded) Search(_ context.Context, index, _ string, _ domain.SearchOptions) ([]domain.SearchHit, error) {
	d.logger.Warn("profile store degraded, search skipped", "index", index)
	return nil, nil
}

var _ domain.ProfileStore = (*Degraded)(nil)
