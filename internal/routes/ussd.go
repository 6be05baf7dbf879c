package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/lisalisi-cash/lisalisi_cash/internal/metrics"
)

// RegisterUSSDRoutes wires the gateway callback. The gateway resends the
// whole key-press history on every request, so the endpoint is stateless.
func RegisterUSSDRoutes(r fiber.Router, svcs *Services, m *metrics.Metrics) {
	r.Post("/ussd", func(c *fiber.Ctx) error {
		var req struct {
			SessionID   string `json:"sessionId"`
			PhoneNumber string `json:"phoneNumber"`
			Text        string `json:"text"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if req.PhoneNumber == "" {
			return fiber.NewError(http.StatusBadRequest, "phoneNumber is required")
		}
		reply := svcs.USSD.Process(c.UserContext(), req.PhoneNumber, req.Text)
		m.IncUSSDRequest(reply.End)
		return c.Status(http.StatusOK).JSON(fiber.Map{"response": reply.Render()})
	})
}
