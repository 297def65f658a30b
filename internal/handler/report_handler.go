package handler

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/service"
)

type ReportHandler struct {
	reports *service.WeeklyReportService
}

func NewReportHandler(reports *service.WeeklyReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// TriggerWeeklyReports POST|GET /v1/cron/weekly-reports?as_of=YYYY-MM-DD
// Guarded by middleware.CronSecret.
func (h *ReportHandler) TriggerWeeklyReports(c *fiber.Ctx) error {
	var (
		result *domain.BatchResult
		err    error
	)
	if raw := c.Query("as_of"); raw != "" {
		day, parseErr := domain.ParseDay(raw)
		if parseErr != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"ok":    false,
				"error": "as_of must be YYYY-MM-DD",
			})
		}
		result, err = h.reports.GenerateWeeklyReportsForDay(c.UserContext(), day)
	} else {
		result, err = h.reports.GenerateWeeklyReports(c.UserContext(), time.Time{})
	}
	if err != nil {
		log.Printf("[WeeklyReports] Trigger failed: %v", err)
		status := fiber.StatusInternalServerError
		if errors.Is(err, domain.ErrStore) {
			c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"ok":    false,
			"error": "weekly report run failed",
		})
	}

	return c.JSON(fiber.Map{
		"ok":         true,
		"generated":  result.Succeeded,
		"total":      result.Total,
		"failed":     result.Failed,
		"run_id":     result.RunID,
		"week_start": result.WeekStart.Format(domain.DateLayout),
	})
}

// ListMemberReports GET /v1/members/:id/weekly-reports?limit=N
func (h *ReportHandler) ListMemberReports(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", service.DefaultReportListLimit)
	if limit <= 0 {
		return badRequest(c, "limit must be positive")
	}

	reports, err := h.reports.ListWeeklyReports(c.UserContext(), c.Params("id"), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reports)
}
