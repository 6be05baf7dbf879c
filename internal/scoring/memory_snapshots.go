package scoring

import (
	"context"
	"sync"
)

type memorySnapshots struct {
	mu     sync.RWMutex
	byUser map[string]Snapshot
}

// NewMemorySnapshots builds an in-memory snapshot store for development and tests.
func NewMemorySnapshots() SnapshotRepository {
	return &memorySnapshots{byUser: make(map[string]Snapshot)}
}

func (r *memorySnapshots) Get(_ context.Context, userID string) (Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.byUser[userID]
	if !ok {
		return Snapshot{}, ErrSnapshotNotFound
	}
	return snap, nil
}

func (r *memorySnapshots) Save(_ context.Context, snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[snap.UserID] = snap
	return nil
}
