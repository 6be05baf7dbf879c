package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/lisalisi-cash/lisalisi_cash/internal/metrics"
)

// RegisterScoringRoutes wires the credit-offer endpoints. The public offer
// view never exposes the raw factor breakdown; the detailed view is meant
// for internal tooling.
func RegisterScoringRoutes(r fiber.Router, svcs *Services, m *metrics.Metrics) {
	r.Get("/scoring/offer/:msisdn", func(c *fiber.Ctx) error {
		user, err := svcs.Users.FindByMSISDN(c.UserContext(), c.Params("msisdn"))
		if err != nil {
			return httpError(err)
		}
		force := c.QueryBool("refresh", false)
		result, err := svcs.Engine.Compute(c.UserContext(), user, force)
		if err != nil {
			return httpError(err)
		}
		m.IncScoreComputation(!force)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"score":           result.Score,
			"score_version":   result.ScoreVersion,
			"max_loan_amount": result.MaxLoanAmount,
			"is_first_loan":   result.IsFirstLoan,
			"explanation":     result.Explanation,
		})
	})

	r.Get("/scoring/factors/:msisdn", func(c *fiber.Ctx) error {
		user, err := svcs.Users.FindByMSISDN(c.UserContext(), c.Params("msisdn"))
		if err != nil {
			return httpError(err)
		}
		result, err := svcs.Engine.Compute(c.UserContext(), user, false)
		if err != nil {
			return httpError(err)
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"score":         result.Score,
			"score_version": result.ScoreVersion,
			"factors":       result.Factors,
		})
	})
}
