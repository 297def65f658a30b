package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrDuplicateAttendance, fiber.StatusConflict, "duplicate_attendance"},
		{domain.ErrCapacityExceeded, fiber.StatusConflict, "capacity_exceeded"},
		{domain.ErrPackageExpired, fiber.StatusConflict, "package_expired"},
		{domain.ErrActivePackageExists, fiber.StatusConflict, "active_package_exists"},
		{domain.ErrFutureDate, fiber.StatusBadRequest, "future_date"},
		{domain.ErrInvalidRange, fiber.StatusBadRequest, "invalid_request"},
		{domain.ErrLessonNotFound, fiber.StatusNotFound, "not_found"},
		{domain.ErrForbidden, fiber.StatusForbidden, "forbidden"},
		{domain.StoreError("insert lesson", errors.New("connection reset")), fiber.StatusServiceUnavailable, "store_unavailable"},
		{fmt.Errorf("wrapped: %w", domain.ErrPackageNotFound), fiber.StatusNotFound, "not_found"},
		{errors.New("boom"), fiber.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return respondError(c, tt.err) })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.code, body["code"])

			if tt.status == fiber.StatusServiceUnavailable {
				assert.Equal(t, retryAfterSeconds, resp.Header.Get("Retry-After"))
				// Store internals are not leaked to callers
				assert.NotContains(t, body["error"], "connection reset")
			}
		})
	}
}
