package consent

import (
	"context"
	"testing"
	"time"

	"github.com/lisalisi-cash/lisalisi_cash/internal/audit"
	"github.com/lisalisi-cash/lisalisi_cash/internal/logging"
)

func newTestService() (*Service, audit.Store) {
	store := audit.NewMemoryStore()
	svc := NewService(NewMemoryRepository(), audit.NewRecorder(store, logging.Discard()))
	return svc, store
}

func TestAcceptUpsertsSingleRecord(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	userID := "user-1"

	first, err := svc.Accept(ctx, userID, KindTerms, "1.0", "USSD", true)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !first.Accepted || first.AcceptedAt.IsZero() {
		t.Fatalf("expected accepted consent with timestamp, got %+v", first)
	}

	second, err := svc.Accept(ctx, userID, KindTerms, "1.1", "APP", true)
	if err != nil {
		t.Fatalf("re-accept: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected upsert of the same record, got new ID %s", second.ID)
	}
	if second.Version != "1.1" || second.Channel != "APP" {
		t.Fatalf("expected overwritten version/channel, got %+v", second)
	}
}

func TestAcceptFalseKeepsTimestamp(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	userID := "user-1"

	accepted, err := svc.Accept(ctx, userID, KindTerms, "1.0", "USSD", true)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	svc.now = func() time.Time { return accepted.AcceptedAt.Add(time.Hour) }
	withdrawn, err := svc.Accept(ctx, userID, KindTerms, "1.0", "USSD", false)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if withdrawn.Accepted {
		t.Fatal("expected accepted=false after withdrawal")
	}
	if !withdrawn.AcceptedAt.Equal(accepted.AcceptedAt) {
		t.Fatalf("timestamp must not refresh on accepted=false: %v vs %v", withdrawn.AcceptedAt, accepted.AcceptedAt)
	}
}

func TestAcceptUnknownKind(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.Accept(context.Background(), "user-1", Kind("MARKETING"), "1.0", "USSD", true); err != ErrUnknownKind {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestAcceptAuditsEveryCall(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	userID := "user-1"

	if _, err := svc.Accept(ctx, userID, KindTerms, "1.0", "USSD", true); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.Accept(ctx, userID, KindTerms, "1.0", "USSD", false); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	records, err := store.ListByUser(ctx, userID, 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 audit events, got %d", len(records))
	}
}

func TestCanRequestLoanRequiresBoth(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	userID := "user-1"

	ok, err := svc.CanRequestLoan(ctx, userID)
	if err != nil || ok {
		t.Fatalf("expected false with no consents, got %v err=%v", ok, err)
	}

	if _, err := svc.Accept(ctx, userID, KindTerms, "1.0", "USSD", true); err != nil {
		t.Fatalf("accept terms: %v", err)
	}
	ok, _ = svc.CanRequestLoan(ctx, userID)
	if ok {
		t.Fatal("expected false with only terms accepted")
	}

	if _, err := svc.Accept(ctx, userID, KindScoring, "1.0", "USSD", true); err != nil {
		t.Fatalf("accept scoring: %v", err)
	}
	status, err := svc.Status(ctx, userID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.CanRequestLoan || status.Message != "All consents in place" {
		t.Fatalf("expected both consents in place, got %+v", status)
	}
}

func TestTextKnownKinds(t *testing.T) {
	for _, kind := range []Kind{KindTerms, KindScoring} {
		text, err := Text(kind)
		if err != nil {
			t.Fatalf("text for %s: %v", kind, err)
		}
		if text == "" {
			t.Fatalf("empty document text for %s", kind)
		}
	}
	if _, err := Text(Kind("OTHER")); err != ErrUnknownKind {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}
