package handler

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
)

// retryAfterSeconds is advertised on 503 responses for store failures
const retryAfterSeconds = "5"

// respondError maps a ledger error to its HTTP status. The "code" field lets
// clients tell apart the different 409 outcomes.
func respondError(c *fiber.Ctx, err error) error {
	status, code := fiber.StatusInternalServerError, "internal"
	msg := "internal server error"

	switch {
	case errors.Is(err, domain.ErrDuplicateAttendance):
		status, code, msg = fiber.StatusConflict, "duplicate_attendance", err.Error()
	case errors.Is(err, domain.ErrCapacityExceeded):
		status, code, msg = fiber.StatusConflict, "capacity_exceeded", err.Error()
	case errors.Is(err, domain.ErrPackageExpired):
		status, code, msg = fiber.StatusConflict, "package_expired", err.Error()
	case errors.Is(err, domain.ErrActivePackageExists):
		status, code, msg = fiber.StatusConflict, "active_package_exists", err.Error()
	case errors.Is(err, domain.ErrNothingToRelease):
		status, code, msg = fiber.StatusConflict, "nothing_to_release", err.Error()
	case errors.Is(err, domain.ErrFutureDate):
		status, code, msg = fiber.StatusBadRequest, "future_date", err.Error()
	case errors.Is(err, domain.ErrInvalidPackage),
		errors.Is(err, domain.ErrInvalidRange),
		errors.Is(err, domain.ErrInvalidID):
		status, code, msg = fiber.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status, code, msg = fiber.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, domain.ErrForbidden):
		status, code, msg = fiber.StatusForbidden, "forbidden", err.Error()
	case errors.Is(err, domain.ErrStore):
		c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
		status, code, msg = fiber.StatusServiceUnavailable, "store_unavailable", "ledger store unavailable, retry later"
	default:
		log.Printf("[Handler] %s %s: %v", c.Method(), c.Path(), err)
	}

	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"code":  code,
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
		"code":  "invalid_request",
	})
}
