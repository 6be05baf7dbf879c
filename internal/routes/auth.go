package routes

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lisalisi-cash/lisalisi_cash/internal/identity"
	"github.com/lisalisi-cash/lisalisi_cash/internal/metrics"
)

// RegisterAuthRoutes wires registration and PIN endpoints.
func RegisterAuthRoutes(r fiber.Router, svcs *Services, m *metrics.Metrics, pinLimiter fiber.Handler) {
	r.Post("/auth/register", func(c *fiber.Ctx) error {
		var req struct {
			MSISDN   string `json:"msisdn"`
			FullName string `json:"full_name"`
			Channel  string `json:"channel"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if req.MSISDN == "" {
			return fiber.NewError(http.StatusBadRequest, "msisdn is required")
		}
		channel := req.Channel
		if channel == "" {
			channel = identity.ChannelApp
		}
		user, err := svcs.Users.Register(c.UserContext(), req.MSISDN, req.FullName, channel)
		if err != nil {
			return httpError(err)
		}
		m.IncUserRegistered(channel)
		return c.Status(http.StatusCreated).JSON(userResponse(user))
	})

	r.Post("/auth/set-pin", func(c *fiber.Ctx) error {
		var req struct {
			MSISDN string `json:"msisdn"`
			PIN    string `json:"pin"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		user, err := svcs.Users.FindByMSISDN(c.UserContext(), req.MSISDN)
		if err != nil {
			return httpError(err)
		}
		if err := svcs.Users.SetPIN(c.UserContext(), user, req.PIN, identity.ChannelApp); err != nil {
			return httpError(err)
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{"message": "PIN set successfully"})
	})

	r.Post("/auth/verify-pin", pinLimiter, func(c *fiber.Ctx) error {
		var req struct {
			MSISDN string `json:"msisdn"`
			PIN    string `json:"pin"`
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
		svcs.Users.RecordUsage(c.UserContext(), user, identity.ChannelApp)
		return c.Status(http.StatusOK).JSON(fiber.Map{"valid": true, "user_id": user.ID})
	})

	r.Get("/auth/user/:msisdn", func(c *fiber.Ctx) error {
		user, err := svcs.Users.FindByMSISDN(c.UserContext(), c.Params("msisdn"))
		if err != nil {
			return httpError(err)
		}
		return c.Status(http.StatusOK).JSON(userResponse(user))
	})
}

func userResponse(u identity.User) fiber.Map {
	return fiber.Map{
		"id":               u.ID,
		"msisdn":           u.MSISDN,
		"full_name":        u.FullName,
		"has_pin":          u.HasPIN(),
		"ussd_usage_count": u.USSDUsageCount,
		"app_usage_count":  u.AppUsageCount,
		"created_at":       u.CreatedAt.UTC().Format(time.RFC3339),
	}
}
