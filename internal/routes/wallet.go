package routes

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RegisterWalletRoutes wires wallet read endpoints.
func RegisterWalletRoutes(r fiber.Router, svcs *Services) {
	r.Get("/wallet/:msisdn", func(c *fiber.Ctx) error {
		user, err := svcs.Users.FindByMSISDN(c.UserContext(), c.Params("msisdn"))
		if err != nil {
			return httpError(err)
		}
		w, err := svcs.Wallets.GetByUser(c.UserContext(), user.ID)
		if err != nil {
			return httpError(err)
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"id":              w.ID,
			"user_id":         w.UserID,
			"balance":         w.Balance,
			"savings_balance": w.SavingsBalance,
			"created_at":      w.CreatedAt.UTC().Format(time.RFC3339),
		})
	})
}
