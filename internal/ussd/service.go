package ussd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/lisalisi-cash/lisalisi_cash/internal/consent"
	"github.com/lisalisi-cash/lisalisi_cash/internal/identity"
	"github.com/lisalisi-cash/lisalisi_cash/internal/loan"
	"github.com/lisalisi-cash/lisalisi_cash/internal/scoring"
)

const systemName = "Lisalisi Cash"

// Loan amount bounds offered over USSD, in FCFA.
const (
	minLoanAmount  = 1000
	maxLoanAmount  = 1000000
	minRepayAmount = 100
)

// durationChoices maps the menu option to a loan term in days.
var durationChoices = map[string]int{"1": 7, "2": 14, "3": 30, "4": 60, "5": 90}

// Reply is a single USSD screen. End terminates the session; otherwise the
// gateway prompts for more input and resends the whole path.
type Reply struct {
	Text string
	End  bool
}

// Render produces the gateway wire text with the CON/END prefix.
func (r Reply) Render() string {
	if r.End {
		return "END " + r.Text
	}
	return "CON " + r.Text
}

// Service decodes USSD navigation paths. The gateway holds no session state
// on our side: every request carries the full key-press history joined by
// "*", and the decoder replays it from the start. All prefix tokens are
// revalidated on every request; the mutating action runs only at the final
// depth of its grammar.
type Service struct {
	users    *identity.Service
	consents *consent.Service
	loans    *loan.Service
	engine   *scoring.Engine
	logger   *slog.Logger
}

// NewService builds a USSD decoder over the business services.
func NewService(users *identity.Service, consents *consent.Service, loans *loan.Service, engine *scoring.Engine, logger *slog.Logger) *Service {
	return &Service{users: users, consents: consents, loans: loans, engine: engine, logger: logger}
}

// Process handles one gateway request.
func (s *Service) Process(ctx context.Context, msisdn, path string) Reply {
	path = strings.TrimSpace(path)
	if path == "" {
		return s.mainMenu()
	}
	tokens := strings.Split(path, "*")

	switch tokens[0] {
	case "1":
		return s.createAccount(ctx, msisdn)
	case "2":
		return s.setPIN(ctx, msisdn, tokens[1:])
	case "3":
		return s.consentFlow(ctx, msisdn, tokens[1:])
	case "4":
		return s.checkOffer(ctx, msisdn)
	case "5":
		return s.requestLoan(ctx, msisdn, tokens[1:])
	case "6":
		return s.repayLoan(ctx, msisdn, tokens[1:])
	case "7":
		return s.history(ctx, msisdn)
	case "0":
		return Reply{Text: "Thank you for using " + systemName, End: true}
	default:
		return errorReply("Invalid option")
	}
}

func (s *Service) mainMenu() Reply {
	return Reply{Text: "Welcome to " + systemName + "\n" +
		"1. Create account\n" +
		"2. Set PIN\n" +
		"3. Accept terms\n" +
		"4. Check credit offer\n" +
		"5. Request loan\n" +
		"6. Repay loan\n" +
		"7. Loan history\n" +
		"0. Exit"}
}

func (s *Service) createAccount(ctx context.Context, msisdn string) Reply {
	if _, err := s.users.FindByMSISDN(ctx, msisdn); err == nil {
		return Reply{Text: fmt.Sprintf("Account already exists for %s\nUse option 2 to set your PIN", msisdn), End: true}
	} else if !errors.Is(err, identity.ErrUserNotFound) {
		return s.failure(err)
	}
	if _, err := s.users.Register(ctx, msisdn, "", identity.ChannelUSSD); err != nil {
		return s.failure(err)
	}
	return Reply{Text: fmt.Sprintf("Account created!\nNumber: %s\nNow set your PIN (option 2)", msisdn), End: true}
}

func (s *Service) setPIN(ctx context.Context, msisdn string, args []string) Reply {
	user, err := s.users.FindByMSISDN(ctx, msisdn)
	if err != nil {
		return s.failure(err)
	}

	// args: [pin, confirmation]
	if len(args) >= 1 && !validPINShape(args[0]) {
		return Reply{Text: "Invalid PIN. It must be exactly 4 digits", End: true}
	}
	switch len(args) {
	case 0:
		if user.HasPIN() {
			return Reply{Text: "A PIN is already set. Enter a new PIN (4 digits):"}
		}
		return Reply{Text: "Enter your PIN (4 digits):"}
	case 1:
		return Reply{Text: "Confirm your PIN:"}
	default:
		if args[0] != args[1] {
			return Reply{Text: "The PINs do not match. Please try again", End: true}
		}
		if err := s.users.SetPIN(ctx, user, args[0], identity.ChannelUSSD); err != nil {
			return s.failure(err)
		}
		return Reply{Text: "PIN set successfully!", End: true}
	}
}

func (s *Service) consentFlow(ctx context.Context, msisdn string, args []string) Reply {
	user, err := s.users.FindByMSISDN(ctx, msisdn)
	if err != nil {
		return s.failure(err)
	}

	if len(args) == 0 {
		status, err := s.consents.Status(ctx, user.ID)
		if err != nil {
			return s.failure(err)
		}
		menu := "Terms and consents\n"
		if status.HasTerms {
			menu += "1. Terms already accepted\n"
		} else {
			menu += "1. Accept terms and conditions\n"
		}
		if status.HasScoring {
			menu += "2. Scoring access already accepted\n"
		} else {
			menu += "2. Accept scoring data access\n"
		}
		menu += "0. Back"
		return Reply{Text: menu}
	}

	var kind consent.Kind
	switch args[0] {
	case "1":
		kind = consent.KindTerms
	case "2":
		kind = consent.KindScoring
	case "0":
		return s.mainMenu()
	default:
		return errorReply("Invalid option")
	}
	if _, err := s.consents.Accept(ctx, user.ID, kind, consent.VersionFor(kind), identity.ChannelUSSD, true); err != nil {
		return s.failure(err)
	}
	return Reply{Text: "Consent recorded successfully!", End: true}
}

func (s *Service) checkOffer(ctx context.Context, msisdn string) Reply {
	user, err := s.users.FindByMSISDN(ctx, msisdn)
	if err != nil {
		return s.failure(err)
	}
	result, err := s.engine.Compute(ctx, user, false)
	if err != nil {
		return s.failure(err)
	}
	return Reply{
		Text: fmt.Sprintf("Credit offer:\nScore: %d/1000\nMax amount: %d FCFA\n%s",
			result.Score, result.MaxLoanAmount, result.Explanation),
		End: true,
	}
}

func (s *Service) requestLoan(ctx context.Context, msisdn string, args []string) Reply {
	user, err := s.users.FindByMSISDN(ctx, msisdn)
	if err != nil {
		return s.failure(err)
	}
	if !user.HasPIN() {
		return Reply{Text: "No PIN set. Set your PIN first (option 2)", End: true}
	}
	ok, err := s.consents.CanRequestLoan(ctx, user.ID)
	if err != nil {
		return s.failure(err)
	}
	if !ok {
		return Reply{Text: "Please accept the terms first (option 3)", End: true}
	}

	// args: [amount, duration choice, pin]
	var amount int64
	if len(args) >= 1 {
		amount, err = strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return Reply{Text: "Invalid amount. Enter a number", End: true}
		}
		if amount < minLoanAmount {
			return Reply{Text: fmt.Sprintf("Minimum amount: %d FCFA", minLoanAmount), End: true}
		}
		if amount > maxLoanAmount {
			return Reply{Text: fmt.Sprintf("Maximum amount: %d FCFA", maxLoanAmount), End: true}
		}
	}
	var duration int
	if len(args) >= 2 {
		duration, ok = durationChoices[args[1]]
		if !ok {
			return errorReply("Invalid duration")
		}
	}

	switch len(args) {
	case 0:
		result, err := s.engine.Compute(ctx, user, false)
		if err != nil {
			return s.failure(err)
		}
		return Reply{Text: fmt.Sprintf("Loan request\nMax amount: %d FCFA\nEnter the amount (FCFA):", result.MaxLoanAmount)}
	case 1:
		return Reply{Text: "Loan duration:\n1. 7 days\n2. 14 days\n3. 30 days\n4. 60 days\n5. 90 days"}
	case 2:
		return Reply{Text: "Enter your PIN to confirm:"}
	default:
		if err := s.users.VerifyPIN(user, args[2]); err != nil {
			return Reply{Text: "Incorrect PIN", End: true}
		}
		s.users.RecordUsage(ctx, user, identity.ChannelUSSD)
		l, err := s.loans.Request(ctx, user, amount, duration, identity.ChannelUSSD, "")
		if err != nil {
			return s.failure(err)
		}
		if l.Status == loan.StatusActive {
			due := "N/A"
			if l.DueDate != nil {
				due = l.DueDate.Format("02/01/2006")
			}
			return Reply{
				Text: fmt.Sprintf("Loan approved!\nAmount: %d FCFA\nDue date: %s\nLoan ID: %s",
					*l.ApprovedAmount, due, l.ID),
				End: true,
			}
		}
		return Reply{Text: "Loan rejected\nReason: " + l.DecisionReason, End: true}
	}
}

func (s *Service) repayLoan(ctx context.Context, msisdn string, args []string) Reply {
	user, err := s.users.FindByMSISDN(ctx, msisdn)
	if err != nil {
		return s.failure(err)
	}
	open, err := s.loans.OpenLoans(ctx, user.ID, 5)
	if err != nil {
		return s.failure(err)
	}

	// args: [loan selection, amount, pin]
	if len(args) == 0 {
		if len(open) == 0 {
			return Reply{Text: "No active loan to repay", End: true}
		}
		menu := "Active loans:\n"
		for i, l := range open {
			menu += fmt.Sprintf("%d. Loan %s: %d FCFA\n", i+1, shortID(l.ID), l.Remaining)
		}
		menu += "0. Back"
		return Reply{Text: menu}
	}

	if args[0] == "0" {
		return s.mainMenu()
	}
	idx, err := strconv.Atoi(args[0])
	if err != nil {
		return errorReply("Invalid option")
	}
	if idx < 1 || idx > len(open) {
		return errorReply("Invalid loan")
	}
	selected := open[idx-1]

	var amount int64
	if len(args) >= 2 {
		amount, err = strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return Reply{Text: "Invalid amount", End: true}
		}
		if amount < minRepayAmount {
			return Reply{Text: fmt.Sprintf("Minimum amount: %d FCFA", minRepayAmount), End: true}
		}
	}

	switch len(args) {
	case 1:
		return Reply{Text: fmt.Sprintf("Repay loan %s\nRemaining: %d FCFA\nEnter the amount to repay:",
			shortID(selected.ID), selected.Remaining)}
	case 2:
		return Reply{Text: "Enter your PIN to confirm:"}
	default:
		if err := s.users.VerifyPIN(user, args[2]); err != nil {
			return Reply{Text: "Incorrect PIN", End: true}
		}
		s.users.RecordUsage(ctx, user, identity.ChannelUSSD)
		receipt, err := s.loans.Repay(ctx, user, selected.ID, amount, identity.ChannelUSSD, "")
		if err != nil {
			return s.failure(err)
		}
		if receipt.FullyRepaid {
			return Reply{Text: fmt.Sprintf("Loan fully repaid!\nAmount paid: %d FCFA", receipt.Paid), End: true}
		}
		return Reply{
			Text: fmt.Sprintf("Repayment received\nAmount paid: %d FCFA\nRemaining: %d FCFA",
				receipt.Paid, receipt.Remaining),
			End: true,
		}
	}
}

func (s *Service) history(ctx context.Context, msisdn string) Reply {
	user, err := s.users.FindByMSISDN(ctx, msisdn)
	if err != nil {
		return s.failure(err)
	}
	loans, err := s.loans.UserLoans(ctx, user.ID)
	if err != nil {
		return s.failure(err)
	}
	if len(loans) == 0 {
		return Reply{Text: "No loans in your history", End: true}
	}
	text := "Loan history:\n"
	for i, l := range loans {
		if i == 5 {
			text += fmt.Sprintf("... and %d more", len(loans)-5)
			break
		}
		text += fmt.Sprintf("%s: %d FCFA (%s)\n", shortID(l.ID), l.RequestedAmount, l.Status)
	}
	return Reply{Text: strings.TrimRight(text, "\n"), End: true}
}

// failure translates business errors into user-facing screens. Unknown
// errors end the session with a generic message and are logged.
func (s *Service) failure(err error) Reply {
	switch {
	case errors.Is(err, identity.ErrUserNotFound):
		return Reply{Text: "Account not found. Create an account first (option 1)", End: true}
	case errors.Is(err, identity.ErrPINNotSet):
		return Reply{Text: "No PIN set. Set your PIN first (option 2)", End: true}
	case errors.Is(err, loan.ErrConsentRequired):
		return Reply{Text: "Please accept the terms first (option 3)", End: true}
	case errors.Is(err, loan.ErrLoanAlreadyActive):
		return Reply{Text: "You already have an active loan", End: true}
	case errors.Is(err, loan.ErrAmountExceedsCeiling):
		return Reply{Text: "Amount exceeds your authorised ceiling", End: true}
	case errors.Is(err, loan.ErrAmountExceedsRemaining):
		return Reply{Text: "Amount exceeds the remaining balance", End: true}
	case errors.Is(err, loan.ErrInvalidLoanState):
		return Reply{Text: "This loan can no longer be repaid", End: true}
	case errors.Is(err, loan.ErrLoanNotFound):
		return Reply{Text: "Loan not found", End: true}
	default:
		s.logger.Error("ussd request failed", slog.Any("error", err))
		return Reply{Text: "Service unavailable. Please try again later", End: true}
	}
}

func errorReply(msg string) Reply {
	return Reply{Text: msg + "\nDial again to return to the menu", End: true}
}

func validPINShape(pin string) bool {
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

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
