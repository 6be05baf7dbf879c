package routes

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lisalisi-cash/lisalisi_cash/internal/audit"
)

// RegisterAuditRoutes wires the audit trail read endpoints.
func RegisterAuditRoutes(r fiber.Router, svcs *Services) {
	r.Get("/audit/user/:msisdn/logs", func(c *fiber.Ctx) error {
		user, err := svcs.Users.FindByMSISDN(c.UserContext(), c.Params("msisdn"))
		if err != nil {
			return httpError(err)
		}
		limit := c.QueryInt("limit", 100)
		records, err := svcs.Audit.UserLogs(c.UserContext(), user.ID, limit)
		if err != nil {
			return httpError(err)
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"logs":  auditItems(records),
			"count": len(records),
		})
	})

	r.Get("/audit/loan/:id/trail", func(c *fiber.Ctx) error {
		records, err := svcs.Audit.LoanTrail(c.UserContext(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"loan_id": c.Params("id"),
			"trail":   auditItems(records),
			"count":   len(records),
		})
	})
}

func auditItems(records []audit.Record) []fiber.Map {
	items := make([]fiber.Map, 0, len(records))
	for _, rec := range records {
		item := fiber.Map{
			"id":         rec.ID,
			"event_kind": rec.EventKind,
			"data":       rec.Data,
			"channel":    rec.Channel,
			"created_at": rec.CreatedAt.UTC().Format(time.RFC3339),
		}
		if rec.UserID != "" {
			item["user_id"] = rec.UserID
		}
		if rec.IPAddress != "" {
			item["ip_address"] = rec.IPAddress
		}
		items = append(items, item)
	}
	return items
}
