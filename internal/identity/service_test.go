package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/lisalisi-cash/lisalisi_cash/internal/audit"
	"github.com/lisalisi-cash/lisalisi_cash/internal/logging"
	"github.com/lisalisi-cash/lisalisi_cash/internal/wallet"
)

func newTestService() (*Service, *wallet.Service, audit.Store) {
	store := audit.NewMemoryStore()
	recorder := audit.NewRecorder(store, logging.Discard())
	wallets := wallet.NewService(wallet.NewMemoryRepository())
	return NewService(NewMemoryRepository(), wallets, recorder, logging.Discard()), wallets, store
}

func TestRegisterProvisionsWallet(t *testing.T) {
	svc, wallets, store := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "242061234567", "Test Subscriber", ChannelUSSD)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == "" || user.MSISDN != "242061234567" {
		t.Fatalf("unexpected user %+v", user)
	}

	w, err := wallets.GetByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("wallet not provisioned: %v", err)
	}
	if w.Balance != 0 {
		t.Fatalf("expected zero balance, got %d", w.Balance)
	}

	records, err := store.ListByUser(ctx, user.ID, 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(records) != 1 || records[0].EventKind != audit.EventRegister {
		t.Fatalf("expected one register audit event, got %+v", records)
	}
}

func TestRegisterDuplicateMSISDN(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "242061234567", "", ChannelUSSD); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "242061234567", "", ChannelUSSD); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestSetPINValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "242061234567", "", ChannelUSSD)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, pin := range []string{"", "123", "12345", "12ab", "١٢٣٤"} {
		if err := svc.SetPIN(ctx, user, pin, ChannelUSSD); !errors.Is(err, ErrInvalidPIN) {
			t.Fatalf("pin %q: expected ErrInvalidPIN, got %v", pin, err)
		}
	}

	if err := svc.SetPIN(ctx, user, "1234", ChannelUSSD); err != nil {
		t.Fatalf("set pin: %v", err)
	}
}

func TestVerifyPIN(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "242061234567", "", ChannelUSSD)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.VerifyPIN(user, "1234"); !errors.Is(err, ErrPINNotSet) {
		t.Fatalf("expected ErrPINNotSet, got %v", err)
	}

	if err := svc.SetPIN(ctx, user, "1234", ChannelUSSD); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	user, err = svc.FindByMSISDN(ctx, user.MSISDN)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}

	if err := svc.VerifyPIN(user, "1234"); err != nil {
		t.Fatalf("verify pin: %v", err)
	}
	if err := svc.VerifyPIN(user, "0000"); !errors.Is(err, ErrPINMismatch) {
		t.Fatalf("expected ErrPINMismatch, got %v", err)
	}
}

func TestRecordUsageBumpsCounter(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "242061234567", "", ChannelUSSD)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	svc.RecordUsage(ctx, user, ChannelUSSD)
	svc.RecordUsage(ctx, user, ChannelUSSD)
	svc.RecordUsage(ctx, user, ChannelApp)

	user, err = svc.FindByMSISDN(ctx, user.MSISDN)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if user.USSDUsageCount != 2 || user.AppUsageCount != 1 {
		t.Fatalf("expected counters 2/1, got %d/%d", user.USSDUsageCount, user.AppUsageCount)
	}
}
