package routes

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lisalisi-cash/lisalisi_cash/internal/identity"
	"github.com/lisalisi-cash/lisalisi_cash/internal/loan"
	"github.com/lisalisi-cash/lisalisi_cash/internal/metrics"
)

// RegisterLoanRoutes wires the loan lifecycle endpoints. PIN verification on
// request and repay makes the MSISDN-addressed API safe to expose to the
// gateway without a token layer.
func RegisterLoanRoutes(r fiber.Router, svcs *Services, m *metrics.Metrics) {
	r.Post("/request", func(c *fiber.Ctx) error {
		var req struct {
			MSISDN       string `json:"msisdn"`
			PIN          string `json:"pin"`
			Amount       int64  `json:"amount"`
			DurationDays int    `json:"duration_days"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		user, err := svcs.Users.FindByMSISDN(c.UserContext(), req.MSISDN)
		if err != nil {
			return httpError(err)
		}
		if err := svcs.Users.VerifyPIN(user, req.PIN); err != nil {
			return httpError(err)
		}
		l, err := svcs.Loans.Request(c.UserContext(), user, req.Amount, req.DurationDays, identity.ChannelApp, c.IP())
		if err != nil {
			return httpError(err)
		}
		m.IncLoanDecision(string(l.Status), identity.ChannelApp)
		return c.Status(http.StatusCreated).JSON(loanResponse(l))
	})

	r.Post("/repay", func(c *fiber.Ctx) error {
		var req struct {
			MSISDN string `json:"msisdn"`
			PIN    string `json:"pin"`
			LoanID string `json:"loan_id"`
			Amount int64  `json:"amount"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		user, err := svcs.Users.FindByMSISDN(c.UserContext(), req.MSISDN)
		if err != nil {
			return httpError(err)
		}
		if err := svcs.Users.VerifyPIN(user, req.PIN); err != nil {
			return httpError(err)
		}
		receipt, err := svcs.Loans.Repay(c.UserContext(), user, req.LoanID, req.Amount, identity.ChannelApp, c.IP())
		if err != nil {
			return httpError(err)
		}
		m.IncRepayment(receipt.FullyRepaid)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"loan_id":          receipt.LoanID,
			"amount_paid":      receipt.Paid,
			"amount_remaining": receipt.Remaining,
			"is_fully_repaid":  receipt.FullyRepaid,
			"message":          receipt.Message,
		})
	})

	r.Get("/:id/status", func(c *fiber.Ctx) error {
		msisdn := c.Query("msisdn")
		if msisdn == "" {
			return fiber.NewError(http.StatusBadRequest, "msisdn query parameter is required")
		}
		user, err := svcs.Users.FindByMSISDN(c.UserContext(), msisdn)
		if err != nil {
			return httpError(err)
		}
		view, err := svcs.Loans.Status(c.UserContext(), user, c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		resp := loanResponse(view.Loan)
		resp["days_remaining"] = view.DaysRemaining
		resp["is_overdue"] = view.IsOverdue
		return c.Status(http.StatusOK).JSON(resp)
	})

	r.Get("/user/:msisdn/history", func(c *fiber.Ctx) error {
		user, err := svcs.Users.FindByMSISDN(c.UserContext(), c.Params("msisdn"))
		if err != nil {
			return httpError(err)
		}
		loans, err := svcs.Loans.UserLoans(c.UserContext(), user.ID)
		if err != nil {
			return httpError(err)
		}
		items := make([]fiber.Map, 0, len(loans))
		for _, l := range loans {
			items = append(items, loanResponse(l))
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{"loans": items, "count": len(items)})
	})
}

func loanResponse(l loan.Loan) fiber.Map {
	resp := fiber.Map{
		"id":                l.ID,
		"status":            string(l.Status),
		"amount_requested":  l.RequestedAmount,
		"amount_approved":   l.ApprovedAmount,
		"amount_remaining":  l.Remaining,
		"interest_rate":     l.InterestRate,
		"duration_days":     l.DurationDays,
		"score_at_request":  l.ScoreAtRequest,
		"score_explanation": l.ScoreExplanation,
		"decision_reason":   l.DecisionReason,
		"channel":           l.Channel,
		"requested_at":      l.RequestedAt.UTC().Format(time.RFC3339),
		"decided_at":        l.DecidedAt.UTC().Format(time.RFC3339),
	}
	if l.DisbursementRef != "" {
		resp["disbursement_ref"] = l.DisbursementRef
	}
	if l.DueDate != nil {
		resp["due_date"] = l.DueDate.UTC().Format(time.RFC3339)
	}
	if l.RepaidAt != nil {
		resp["repaid_at"] = l.RepaidAt.UTC().Format(time.RFC3339)
	}
	return resp
}
