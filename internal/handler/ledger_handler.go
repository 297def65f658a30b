package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/service"
)

// RequestedByHeader names the account asking for an undo
const RequestedByHeader = "X-Requested-By"

type LedgerHandler struct {
	attendance *service.AttendanceService
}

func NewLedgerHandler(attendance *service.AttendanceService) *LedgerHandler {
	return &LedgerHandler{attendance: attendance}
}

// parseOptionalDay parses a YYYY-MM-DD value; empty gives the zero time
func parseOptionalDay(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return domain.ParseDay(value)
}

// --- Packages ---

// CreatePackage POST /v1/packages
func (h *LedgerHandler) CreatePackage(c *fiber.Ctx) error {
	var req struct {
		OwnerID       string   `json:"owner_id"`
		TotalLessons  int      `json:"total_lessons"`
		UsedLessons   int      `json:"used_lessons"`
		StartDate     string   `json:"start_date"`
		ExpireDate    string   `json:"expire_date"`
		Price         *float64 `json:"price"`
		PaymentStatus string   `json:"payment_status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	start, err := parseOptionalDay(req.StartDate)
	if err != nil {
		return badRequest(c, "start_date must be YYYY-MM-DD")
	}
	expire, err := parseOptionalDay(req.ExpireDate)
	if err != nil {
		return badRequest(c, "expire_date must be YYYY-MM-DD")
	}

	pkg := &domain.LessonPackage{
		OwnerID:       req.OwnerID,
		TotalLessons:  req.TotalLessons,
		UsedLessons:   req.UsedLessons,
		StartDate:     start,
		ExpireDate:    expire,
		Price:         req.Price,
		PaymentStatus: req.PaymentStatus,
	}
	if err := h.attendance.CreatePackage(c.UserContext(), pkg); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(pkg)
}

// GetPackage GET /v1/packages/:id
func (h *LedgerHandler) GetPackage(c *fiber.Ctx) error {
	summary, err := h.attendance.GetPackageSummary(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}

// --- Lessons ---

// RecordLesson POST /v1/packages/:id/lessons
func (h *LedgerHandler) RecordLesson(c *fiber.Ctx) error {
	var req struct {
		OwnerID    string `json:"owner_id"`
		Date       string `json:"date"` // YYYY-MM-DD, defaults to today
		Notes      string `json:"notes"`
		ClientID   string `json:"client_id"`
		RecordedBy string `json:"recorded_by"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.OwnerID == "" {
		return badRequest(c, "owner_id is required")
	}

	date, err := parseOptionalDay(req.Date)
	if err != nil {
		return badRequest(c, "date must be YYYY-MM-DD")
	}

	result, err := h.attendance.RecordAttendance(c.UserContext(), domain.AttendanceInput{
		PackageID:  c.Params("id"),
		OwnerID:    req.OwnerID,
		Date:       date,
		Notes:      req.Notes,
		ClientID:   req.ClientID,
		RecordedBy: req.RecordedBy,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// UndoLesson DELETE /v1/lessons/:id
func (h *LedgerHandler) UndoLesson(c *fiber.Ctx) error {
	requestedBy := c.Get(RequestedByHeader)
	if requestedBy == "" {
		return badRequest(c, RequestedByHeader+" header is required")
	}

	summary, err := h.attendance.UndoAttendance(c.UserContext(), c.Params("id"), requestedBy)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}

// UndoPackageLesson DELETE /v1/packages/:id/lessons/:lessonId
func (h *LedgerHandler) UndoPackageLesson(c *fiber.Ctx) error {
	requestedBy := c.Get(RequestedByHeader)
	if requestedBy == "" {
		return badRequest(c, RequestedByHeader+" header is required")
	}

	summary, err := h.attendance.UndoAttendanceInPackage(c.UserContext(), c.Params("id"), c.Params("lessonId"), requestedBy)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}

// ListMemberLessons GET /v1/members/:id/lessons?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *LedgerHandler) ListMemberLessons(c *fiber.Ctx) error {
	from, err := parseOptionalDay(c.Query("from"))
	if err != nil {
		return badRequest(c, "from must be YYYY-MM-DD")
	}
	to, err := parseOptionalDay(c.Query("to"))
	if err != nil {
		return badRequest(c, "to must be YYYY-MM-DD")
	}

	lessons, err := h.attendance.ListLessons(c.UserContext(), c.Params("id"), from, to)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(lessons)
}
