package routes

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lisalisi-cash/lisalisi_cash/internal/consent"
	"github.com/lisalisi-cash/lisalisi_cash/internal/identity"
)

// RegisterConsentRoutes wires consent acceptance and status endpoints.
func RegisterConsentRoutes(r fiber.Router, svcs *Services) {
	r.Post("/consent/accept", func(c *fiber.Ctx) error {
		var req struct {
			MSISDN   string `json:"msisdn"`
			Kind     string `json:"consent_kind"`
			Version  string `json:"version"`
			Channel  string `json:"channel"`
			Accepted *bool  `json:"accepted"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		user, err := svcs.Users.FindByMSISDN(c.UserContext(), req.MSISDN)
		if err != nil {
			return httpError(err)
		}
		kind := consent.Kind(req.Kind)
		version := req.Version
		if version == "" {
			version = consent.VersionFor(kind)
		}
		channel := req.Channel
		if channel == "" {
			channel = identity.ChannelApp
		}
		accepted := true
		if req.Accepted != nil {
			accepted = *req.Accepted
		}
		record, err := svcs.Consents.Accept(c.UserContext(), user.ID, kind, version, channel, accepted)
		if err != nil {
			return httpError(err)
		}
		resp := fiber.Map{
			"consent_kind": string(record.Kind),
			"version":      record.Version,
			"accepted":     record.Accepted,
		}
		if !record.AcceptedAt.IsZero() {
			resp["accepted_at"] = record.AcceptedAt.UTC().Format(time.RFC3339)
		}
		return c.Status(http.StatusOK).JSON(resp)
	})

	r.Get("/consent/check/:msisdn", func(c *fiber.Ctx) error {
		user, err := svcs.Users.FindByMSISDN(c.UserContext(), c.Params("msisdn"))
		if err != nil {
			return httpError(err)
		}
		status, err := svcs.Consents.Status(c.UserContext(), user.ID)
		if err != nil {
			return httpError(err)
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"has_terms_consent":   status.HasTerms,
			"has_scoring_consent": status.HasScoring,
			"can_request_loan":    status.CanRequestLoan,
			"message":             status.Message,
		})
	})

	r.Get("/consent/text/:kind", func(c *fiber.Ctx) error {
		kind := consent.Kind(c.Params("kind"))
		text, err := consent.Text(kind)
		if err != nil {
			return httpError(err)
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"consent_kind": string(kind),
			"version":      consent.VersionFor(kind),
			"text":         text,
		})
	})
}
