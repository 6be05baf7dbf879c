package identity

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu       sync.RWMutex
	byMSISDN map[string]User
}

// NewMemoryRepository builds an in-memory user store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{byMSISDN: make(map[string]User)}
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byMSISDN[user.MSISDN]; exists {
		return ErrUserExists
	}
	r.byMSISDN[user.MSISDN] = user
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for msisdn, user := range r.byMSISDN {
		if user.ID == id {
			delete(r.byMSISDN, msisdn)
			return nil
		}
	}
	return ErrUserNotFound
}

func (r *memoryRepository) FindByMSISDN(_ context.Context, msisdn string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byMSISDN[msisdn]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.byMSISDN {
		if user.ID == id {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (r *memoryRepository) SetPIN(_ context.Context, id string, hash []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for msisdn, user := range r.byMSISDN {
		if user.ID == id {
			user.PINHash = hash
			r.byMSISDN[msisdn] = user
			return nil
		}
	}
	return ErrUserNotFound
}

func (r *memoryRepository) BumpUsage(_ context.Context, id, channel string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for msisdn, user := range r.byMSISDN {
		if user.ID == id {
			if channel == ChannelUSSD {
				user.USSDUsageCount++
			} else {
				user.AppUsageCount++
			}
			user.LastSeen = at
			r.byMSISDN[msisdn] = user
			return nil
		}
	}
	return ErrUserNotFound
}
