package loan

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lisalisi-cash/lisalisi_cash/internal/scoring"
)

// MemoryRepository is an in-memory loan store for tests and local runs. It
// enforces the same one-open-loan invariant as the Postgres index.
type MemoryRepository struct {
	mu    sync.RWMutex
	loans map[string]Loan
}

// NewMemoryRepository builds an empty in-memory loan repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{loans: make(map[string]Loan)}
}

// Create inserts a loan, rejecting a second open loan for the same user.
func (r *MemoryRepository) Create(_ context.Context, l Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.Status.Open() {
		for _, existing := range r.loans {
			if existing.UserID == l.UserID && existing.Status.Open() {
				return ErrLoanAlreadyActive
			}
		}
	}
	r.loans[l.ID] = l
	return nil
}

// Update rewrites the stored loan.
func (r *MemoryRepository) Update(_ context.Context, l Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.loans[l.ID]
	if !ok || existing.UserID != l.UserID {
		return ErrLoanNotFound
	}
	r.loans[l.ID] = l
	return nil
}

// FindByID fetches a loan owned by the given user.
func (r *MemoryRepository) FindByID(_ context.Context, userID, loanID string) (Loan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.loans[loanID]
	if !ok || l.UserID != userID {
		return Loan{}, ErrLoanNotFound
	}
	return l, nil
}

// ListByUser returns the user's loans, newest first.
func (r *MemoryRepository) ListByUser(_ context.Context, userID string) ([]Loan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var loans []Loan
	for _, l := range r.loans {
		if l.UserID == userID {
			loans = append(loans, l)
		}
	}
	sort.Slice(loans, func(i, j int) bool {
		return loans[i].RequestedAt.After(loans[j].RequestedAt)
	})
	return loans, nil
}

// Counts aggregates the user's loan book for the scoring engine.
func (r *MemoryRepository) Counts(_ context.Context, userID string) (scoring.LoanCounts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var c scoring.LoanCounts
	for _, l := range r.loans {
		if l.UserID != userID {
			continue
		}
		c.Total++
		switch l.Status {
		case StatusRepaid:
			c.Repaid++
		case StatusOverdue:
			c.Overdue++
		}
		if l.Status.Open() {
			c.HasOpen = true
		}
	}
	return c, nil
}

// MarkOverdue flips ACTIVE loans past their due date to OVERDUE.
func (r *MemoryRepository) MarkOverdue(_ context.Context, now time.Time) ([]Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var flipped []Loan
	for id, l := range r.loans {
		if l.Status == StatusActive && l.DueDate != nil && l.DueDate.Before(now) {
			l.Status = StatusOverdue
			r.loans[id] = l
			flipped = append(flipped, l)
		}
	}
	return flipped, nil
}
