package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lisalisi-cash/lisalisi_cash/internal/audit"
	"github.com/lisalisi-cash/lisalisi_cash/internal/wallet"
)

var (
	// ErrInvalidPIN indicates a PIN that is not exactly four digits.
	ErrInvalidPIN = errors.New("PIN must be exactly 4 digits")
	// ErrPINNotSet indicates the subscriber has no PIN credential yet.
	ErrPINNotSet = errors.New("PIN not set")
	// ErrPINMismatch indicates the supplied PIN does not match the stored hash.
	ErrPINMismatch = errors.New("incorrect PIN")
)

// Service manages subscriber lifecycle: registration (with wallet
// provisioning), PIN credentials, and usage counters.
type Service struct {
	repo    Repository
	wallets *wallet.Service
	audit   *audit.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository, wallets *wallet.Service, rec *audit.Recorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, wallets: wallets, audit: rec, logger: logger, now: time.Now}
}

// Register creates a new subscriber and provisions their wallet. The wallet
// is part of the registration unit: if provisioning fails the user record is
// removed again.
func (s *Service) Register(ctx context.Context, msisdn, fullName, channel string) (User, error) {
	now := s.now().UTC()
	user := User{
		ID:        uuid.NewString(),
		MSISDN:    msisdn,
		FullName:  fullName,
		CreatedAt: now,
		LastSeen:  now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}

	if _, err := s.wallets.Provision(ctx, user.ID); err != nil {
		if delErr := s.repo.Delete(ctx, user.ID); delErr != nil && s.logger != nil {
			s.logger.Error("unwind failed registration", "user_id", user.ID, "error", delErr)
		}
		return User{}, err
	}

	s.audit.Record(ctx, audit.Event{
		Kind:   audit.EventRegister,
		UserID: user.ID,
		Data: map[string]any{
			"msisdn":    msisdn,
			"full_name": fullName,
			"channel":   channel,
		},
		Channel: channel,
	})

	return user, nil
}

// FindByMSISDN fetches a subscriber by phone number.
func (s *Service) FindByMSISDN(ctx context.Context, msisdn string) (User, error) {
	return s.repo.FindByMSISDN(ctx, msisdn)
}

// SetPIN hashes and stores a four-digit PIN for the subscriber.
func (s *Service) SetPIN(ctx context.Context, user User, pin, channel string) error {
	if !validPIN(pin) {
		return ErrInvalidPIN
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := s.repo.SetPIN(ctx, user.ID, hash); err != nil {
		return err
	}

	// The PIN itself is never written to the audit trail.
	s.audit.Record(ctx, audit.Event{
		Kind:    audit.EventSetPIN,
		UserID:  user.ID,
		Data:    map[string]any{"pin_set": true, "channel": channel},
		Channel: channel,
	})

	return nil
}

// VerifyPIN checks the supplied PIN against the stored credential.
func (s *Service) VerifyPIN(user User, pin string) error {
	if !user.HasPIN() {
		return ErrPINNotSet
	}
	if err := bcrypt.CompareHashAndPassword(user.PINHash, []byte(pin)); err != nil {
		return ErrPINMismatch
	}
	return nil
}

// RecordUsage bumps the per-channel usage counter after a successful
// authenticated action.
func (s *Service) RecordUsage(ctx context.Context, user User, channel string) {
	if err := s.repo.BumpUsage(ctx, user.ID, channel, s.now().UTC()); err != nil && s.logger != nil {
		s.logger.Warn("bump usage counter", "user_id", user.ID, "channel", channel, "error", err)
	}
}

func validPIN(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
