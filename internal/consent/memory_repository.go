package consent

import (
	"context"
	"sync"
)

type consentKey struct {
	userID string
	kind   Kind
}

type memoryRepository struct {
	mu      sync.RWMutex
	records map[consentKey]Consent
}

// NewMemoryRepository builds an in-memory consent store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{records: make(map[consentKey]Consent)}
}

func (r *memoryRepository) Save(_ context.Context, c Consent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[consentKey{userID: c.UserID, kind: c.Kind}] = c
	return nil
}

func (r *memoryRepository) Find(_ context.Context, userID string, kind Kind) (Consent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.records[consentKey{userID: userID, kind: kind}]
	if !ok {
		return Consent{}, ErrConsentNotFound
	}
	return c, nil
}
