package ussd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lisalisi-cash/lisalisi_cash/internal/audit"
	"github.com/lisalisi-cash/lisalisi_cash/internal/consent"
	"github.com/lisalisi-cash/lisalisi_cash/internal/identity"
	"github.com/lisalisi-cash/lisalisi_cash/internal/loan"
	"github.com/lisalisi-cash/lisalisi_cash/internal/logging"
	"github.com/lisalisi-cash/lisalisi_cash/internal/mobilemoney"
	"github.com/lisalisi-cash/lisalisi_cash/internal/scoring"
	"github.com/lisalisi-cash/lisalisi_cash/internal/wallet"
)

const testMSISDN = "242061234567"

type zeroSignals struct{}

func (zeroSignals) Signals(string) mobilemoney.Signals {
	return mobilemoney.Signals{}
}

type stack struct {
	svc      *Service
	users    *identity.Service
	consents *consent.Service
	loans    *loan.Service
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := logging.Discard()
	recorder := audit.NewRecorder(audit.NewMemoryStore(), logger)

	users := identity.NewService(identity.NewMemoryRepository(), wallet.NewService(wallet.NewMemoryRepository()), recorder, logger)
	consents := consent.NewService(consent.NewMemoryRepository(), recorder)
	loanRepo := loan.NewMemoryRepository()
	engine := scoring.NewEngine(scoring.NewMemorySnapshots(), loanRepo, zeroSignals{})
	loans := loan.NewService(loanRepo, consents, engine, mobilemoney.SimulatedPayer{}, recorder, logger)

	return &stack{
		svc:      NewService(users, consents, loans, engine, logger),
		users:    users,
		consents: consents,
		loans:    loans,
	}
}

// registeredUser creates an account with PIN 1234 and both consents accepted.
func (s *stack) registeredUser(t *testing.T) identity.User {
	t.Helper()
	ctx := context.Background()
	user, err := s.users.Register(ctx, testMSISDN, "", identity.ChannelUSSD)
	require.NoError(t, err)
	require.NoError(t, s.users.SetPIN(ctx, user, "1234", identity.ChannelUSSD))
	_, err = s.consents.Accept(ctx, user.ID, consent.KindTerms, "1.0", identity.ChannelUSSD, true)
	require.NoError(t, err)
	_, err = s.consents.Accept(ctx, user.ID, consent.KindScoring, "1.0", identity.ChannelUSSD, true)
	require.NoError(t, err)

	// Reload so the PIN hash is present on the returned value.
	user, err = s.users.FindByMSISDN(ctx, testMSISDN)
	require.NoError(t, err)
	return user
}

func TestRootMenu(t *testing.T) {
	s := newStack(t)

	reply := s.svc.Process(context.Background(), testMSISDN, "")
	assert.False(t, reply.End)
	rendered := reply.Render()
	assert.Contains(t, rendered, "CON Welcome to Lisalisi Cash")
	for _, line := range []string{"1. Create account", "5. Request loan", "6. Repay loan", "0. Exit"} {
		assert.Contains(t, rendered, line)
	}
}

func TestInvalidRootOption(t *testing.T) {
	s := newStack(t)

	reply := s.svc.Process(context.Background(), testMSISDN, "9")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Invalid option")
}

func TestExit(t *testing.T) {
	s := newStack(t)

	reply := s.svc.Process(context.Background(), testMSISDN, "0")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Thank you")
}

func TestCreateAccount(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	reply := s.svc.Process(ctx, testMSISDN, "1")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Account created!")

	_, err := s.users.FindByMSISDN(ctx, testMSISDN)
	require.NoError(t, err)

	// Replaying the same path must not create a second account.
	reply = s.svc.Process(ctx, testMSISDN, "1")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Account already exists")
}

func TestSetPINFlow(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	_, err := s.users.Register(ctx, testMSISDN, "", identity.ChannelUSSD)
	require.NoError(t, err)

	reply := s.svc.Process(ctx, testMSISDN, "2")
	assert.False(t, reply.End)
	assert.Contains(t, reply.Text, "Enter your PIN")

	reply = s.svc.Process(ctx, testMSISDN, "2*1234")
	assert.False(t, reply.End)
	assert.Contains(t, reply.Text, "Confirm your PIN")

	reply = s.svc.Process(ctx, testMSISDN, "2*1234*1234")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "PIN set successfully")

	user, err := s.users.FindByMSISDN(ctx, testMSISDN)
	require.NoError(t, err)
	assert.NoError(t, s.users.VerifyPIN(user, "1234"))
}

func TestSetPINMismatch(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	_, err := s.users.Register(ctx, testMSISDN, "", identity.ChannelUSSD)
	require.NoError(t, err)

	reply := s.svc.Process(ctx, testMSISDN, "2*1234*9999")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "do not match")

	user, err := s.users.FindByMSISDN(ctx, testMSISDN)
	require.NoError(t, err)
	assert.False(t, user.HasPIN())
}

func TestSetPINRejectsMalformed(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	_, err := s.users.Register(ctx, testMSISDN, "", identity.ChannelUSSD)
	require.NoError(t, err)

	reply := s.svc.Process(ctx, testMSISDN, "2*12ab")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Invalid PIN")
}

func TestConsentFlow(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	user, err := s.users.Register(ctx, testMSISDN, "", identity.ChannelUSSD)
	require.NoError(t, err)

	reply := s.svc.Process(ctx, testMSISDN, "3")
	assert.False(t, reply.End)
	assert.Contains(t, reply.Text, "Accept terms and conditions")

	reply = s.svc.Process(ctx, testMSISDN, "3*1")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Consent recorded")

	reply = s.svc.Process(ctx, testMSISDN, "3*2")
	assert.True(t, reply.End)

	ok, err := s.consents.CanRequestLoan(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// 0 returns to the main menu.
	reply = s.svc.Process(ctx, testMSISDN, "3*0")
	assert.False(t, reply.End)
	assert.Contains(t, reply.Text, "Welcome to")
}

func TestCheckOffer(t *testing.T) {
	s := newStack(t)
	s.registeredUser(t)

	reply := s.svc.Process(context.Background(), testMSISDN, "4")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Score: 500/1000")
	assert.Contains(t, reply.Text, "Max amount: 100000 FCFA")
}

func TestLoanRequestFullPath(t *testing.T) {
	s := newStack(t)
	user := s.registeredUser(t)
	ctx := context.Background()

	// Intermediate depths only prompt, they never mutate.
	for _, path := range []string{"5", "5*20000", "5*20000*3"} {
		reply := s.svc.Process(ctx, testMSISDN, path)
		assert.False(t, reply.End, "path %q", path)
		loans, err := s.loans.UserLoans(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, loans, "path %q", path)
	}

	reply := s.svc.Process(ctx, testMSISDN, "5*20000*3*1234")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Loan approved!")
	assert.Contains(t, reply.Text, "Amount: 21000 FCFA")

	loans, err := s.loans.UserLoans(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, int64(20_000), loans[0].RequestedAmount)
	assert.Equal(t, 30, loans[0].DurationDays)
}

func TestLoanRequestAmountBounds(t *testing.T) {
	s := newStack(t)
	s.registeredUser(t)
	ctx := context.Background()

	reply := s.svc.Process(ctx, testMSISDN, "5*500")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Minimum amount: 1000 FCFA")

	reply = s.svc.Process(ctx, testMSISDN, "5*2000000")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Maximum amount: 1000000 FCFA")

	reply = s.svc.Process(ctx, testMSISDN, "5*abc")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Invalid amount")
}

func TestLoanRequestInvalidDuration(t *testing.T) {
	s := newStack(t)
	s.registeredUser(t)

	reply := s.svc.Process(context.Background(), testMSISDN, "5*20000*6")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Invalid duration")
}

func TestLoanRequestWrongPIN(t *testing.T) {
	s := newStack(t)
	user := s.registeredUser(t)
	ctx := context.Background()

	reply := s.svc.Process(ctx, testMSISDN, "5*20000*3*0000")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Incorrect PIN")

	loans, err := s.loans.UserLoans(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, loans)
}

func TestLoanRequestWithoutConsent(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	user, err := s.users.Register(ctx, testMSISDN, "", identity.ChannelUSSD)
	require.NoError(t, err)
	require.NoError(t, s.users.SetPIN(ctx, user, "1234", identity.ChannelUSSD))

	reply := s.svc.Process(ctx, testMSISDN, "5")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "accept the terms first")
}

func TestRepayWrongPINLeavesBalance(t *testing.T) {
	s := newStack(t)
	user := s.registeredUser(t)
	ctx := context.Background()

	l, err := s.loans.Request(ctx, user, 20_000, 30, identity.ChannelUSSD, "")
	require.NoError(t, err)

	reply := s.svc.Process(ctx, testMSISDN, "6*1*500*0000")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Incorrect PIN")

	view, err := s.loans.Status(ctx, user, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(21_000), view.Remaining)
}

func TestRepayFullPath(t *testing.T) {
	s := newStack(t)
	user := s.registeredUser(t)
	ctx := context.Background()

	l, err := s.loans.Request(ctx, user, 20_000, 30, identity.ChannelUSSD, "")
	require.NoError(t, err)

	reply := s.svc.Process(ctx, testMSISDN, "6")
	assert.False(t, reply.End)
	assert.Contains(t, reply.Text, "Active loans:")

	reply = s.svc.Process(ctx, testMSISDN, "6*1")
	assert.False(t, reply.End)
	assert.Contains(t, reply.Text, "Remaining: 21000 FCFA")

	reply = s.svc.Process(ctx, testMSISDN, "6*1*500")
	assert.False(t, reply.End)
	assert.Contains(t, reply.Text, "Enter your PIN")

	reply = s.svc.Process(ctx, testMSISDN, "6*1*500*1234")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Repayment received")
	assert.Contains(t, reply.Text, "Remaining: 20500 FCFA")

	view, err := s.loans.Status(ctx, user, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20_500), view.Remaining)
}

func TestRepayNoActiveLoan(t *testing.T) {
	s := newStack(t)
	s.registeredUser(t)

	reply := s.svc.Process(context.Background(), testMSISDN, "6")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "No active loan")
}

func TestRepayBelowMinimum(t *testing.T) {
	s := newStack(t)
	user := s.registeredUser(t)
	ctx := context.Background()

	_, err := s.loans.Request(ctx, user, 20_000, 30, identity.ChannelUSSD, "")
	require.NoError(t, err)

	reply := s.svc.Process(ctx, testMSISDN, "6*1*50")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Minimum amount: 100 FCFA")
}

func TestHistory(t *testing.T) {
	s := newStack(t)
	user := s.registeredUser(t)
	ctx := context.Background()

	reply := s.svc.Process(ctx, testMSISDN, "7")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "No loans in your history")

	_, err := s.loans.Request(ctx, user, 20_000, 30, identity.ChannelUSSD, "")
	require.NoError(t, err)

	reply = s.svc.Process(ctx, testMSISDN, "7")
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Loan history:")
	assert.Contains(t, reply.Text, "20000 FCFA (ACTIVE)")
}

func TestUnknownSubscriber(t *testing.T) {
	s := newStack(t)

	for _, path := range []string{"2", "4", "5", "6", "7"} {
		reply := s.svc.Process(context.Background(), testMSISDN, path)
		assert.True(t, reply.End, "path %q", path)
		assert.Contains(t, reply.Text, "Account not found", "path %q", path)
	}
}
