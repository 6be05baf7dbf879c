package routes

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/lisalisi-cash/lisalisi_cash/internal/consent"
	"github.com/lisalisi-cash/lisalisi_cash/internal/identity"
	"github.com/lisalisi-cash/lisalisi_cash/internal/loan"
	"github.com/lisalisi-cash/lisalisi_cash/internal/scoring"
	"github.com/lisalisi-cash/lisalisi_cash/internal/wallet"
)

// httpError maps sentinel business errors onto HTTP statuses. Unknown errors
// come back as a generic 500 so internals never leak to the caller.
func httpError(err error) *fiber.Error {
	switch {
	case errors.Is(err, identity.ErrUserNotFound),
		errors.Is(err, loan.ErrLoanNotFound),
		errors.Is(err, consent.ErrConsentNotFound),
		errors.Is(err, wallet.ErrWalletNotFound),
		errors.Is(err, scoring.ErrSnapshotNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, identity.ErrPINMismatch),
		errors.Is(err, identity.ErrPINNotSet):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, identity.ErrUserExists):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, identity.ErrInvalidPIN),
		errors.Is(err, consent.ErrUnknownKind),
		errors.Is(err, loan.ErrInvalidAmount),
		errors.Is(err, loan.ErrInvalidDuration),
		errors.Is(err, loan.ErrConsentRequired),
		errors.Is(err, loan.ErrLoanAlreadyActive),
		errors.Is(err, loan.ErrAmountExceedsCeiling),
		errors.Is(err, loan.ErrAmountExceedsRemaining),
		errors.Is(err, loan.ErrInvalidLoanState):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
}
