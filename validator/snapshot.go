package validator

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/alphabill-org/poolvalidator/types"
)

/*
SnapshotHolder keeps the current registry snapshot. Resync replaces the
snapshot wholesale so readers see either the old or the new one.
*/
type SnapshotHolder struct {
	registry RegistryClient
	current  atomic.Pointer[types.Snapshot]
}

func NewSnapshotHolder(registry RegistryClient) *SnapshotHolder {
	h := &SnapshotHolder{registry: registry}
	h.current.Store(&types.Snapshot{})
	return h
}

func (h *SnapshotHolder) Load() *types.Snapshot {
	return h.current.Load()
}

// Resync fetches new snapshot from the registry, on failure the current snapshot is retained.
func (h *SnapshotHolder) Resync(ctx context.Context) (*types.Snapshot, error) {
	s, err := h.registry.SyncSnapshot(ctx)
	if err != nil {
		return h.Load(), fmt.Errorf("%w: %w", ErrResyncFailure, err)
	}
	if s == nil {
		return h.Load(), fmt.Errorf("%w: registry returned nil snapshot", ErrResyncFailure)
	}
	h.current.Store(s)
	return s, nil
}
