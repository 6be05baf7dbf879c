package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service exposes wallet reads and provisioning.
type Service struct {
	repo Repository
}

// NewService builds a wallet service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Provision creates a zero-balance wallet for a freshly registered user.
func (s *Service) Provision(ctx context.Context, userID string) (Wallet, error) {
	w := Wallet{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, w); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// GetByUser retrieves the wallet owned by the given user.
func (s *Service) GetByUser(ctx context.Context, userID string) (Wallet, error) {
	return s.repo.GetByUser(ctx, userID)
}
