package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	notifyTimeout = 5 * time.Second

	// DefaultLessonWindow is how many days ListLessons covers without a from
	DefaultLessonWindow = 90
)

// AttendanceConfig holds the knobs of the attendance recorder
type AttendanceConfig struct {
	Location   *time.Location   // Studio zone; "today" is evaluated here
	AppBaseURL string           // Prefix for notification deep links
	Now        func() time.Time // Defaults to time.Now
}

// AttendanceService records and undoes lessons against lesson packages
type AttendanceService struct {
	store   domain.LedgerStore
	sink    domain.NotificationSink
	metrics *telemetry.LedgerMetrics
	loc     *time.Location
	baseURL string
	now     func() time.Time
}

func NewAttendanceService(
	store domain.LedgerStore,
	sink domain.NotificationSink,
	metrics *telemetry.LedgerMetrics,
	cfg AttendanceConfig,
) *AttendanceService {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &AttendanceService{
		store:   store,
		sink:    sink,
		metrics: metrics,
		loc:     loc,
		baseURL: cfg.AppBaseURL,
		now:     now,
	}
}

func (s *AttendanceService) today() time.Time {
	return domain.CalendarDay(s.now(), s.loc)
}

// --- Packages ---

// CreatePackage opens a new package for a member. A member holds at most one
// active package at a time.
func (s *AttendanceService) CreatePackage(ctx context.Context, pkg *domain.LessonPackage) error {
	if pkg.StartDate.IsZero() {
		pkg.StartDate = s.today()
	} else {
		pkg.StartDate = domain.DayOf(pkg.StartDate)
	}
	if !pkg.ExpireDate.IsZero() {
		pkg.ExpireDate = domain.DayOf(pkg.ExpireDate)
	}
	if pkg.PaymentStatus == "" {
		pkg.PaymentStatus = domain.PaymentStatusUnpaid
	}
	pkg.Status = domain.PackageStatusActive

	if err := pkg.Validate(); err != nil {
		return err
	}
	// A package handed over fully used starts out completed.
	pkg.Status = domain.NextStatus(pkg)

	if pkg.Status == domain.PackageStatusActive {
		exists, err := s.store.HasActivePackage(ctx, pkg.OwnerID)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrActivePackageExists
		}
	}

	return s.store.CreatePackage(ctx, pkg)
}

// GetPackageSummary returns a package with its remaining credits and level
func (s *AttendanceService) GetPackageSummary(ctx context.Context, packageID string) (*domain.PackageSummary, error) {
	pkg, err := s.store.GetPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}
	remaining := domain.Remaining(pkg)
	return &domain.PackageSummary{
		Package:   pkg,
		Remaining: remaining,
		Level:     domain.Classify(remaining),
	}, nil
}

// --- Lessons ---

// RecordAttendance commits one lesson for in.OwnerID on in.Date (today when
// zero) against in.PackageID. The lesson insert and the credit decrement are one unit in
// the store; the low-credit notification runs only after that unit commits
// and never fails the call.
func (s *AttendanceService) RecordAttendance(ctx context.Context, in domain.AttendanceInput) (*domain.AttendanceResult, error) {
	tracer := otel.Tracer("attendance")
	ctx, span := tracer.Start(ctx, "AttendanceService.RecordAttendance",
		trace.WithAttributes(
			attribute.String("package.id", in.PackageID),
			attribute.String("member.id", in.OwnerID),
		),
	)
	defer span.End()

	if in.PackageID == "" || in.OwnerID == "" {
		return nil, domain.ErrInvalidID
	}

	day := s.today()
	if !in.Date.IsZero() {
		day = domain.DayOf(in.Date)
	}
	if day.After(s.today()) {
		return nil, domain.ErrFutureDate
	}

	recordedBy := in.RecordedBy
	if recordedBy == "" {
		recordedBy = in.OwnerID
	}

	lesson, pkg, err := s.store.InsertLesson(ctx, domain.NewLesson{
		PackageID:  in.PackageID,
		OwnerID:    in.OwnerID,
		Date:       day,
		Notes:      in.Notes,
		ClientID:   in.ClientID,
		RecordedBy: recordedBy,
	})
	if err != nil {
		if errors.Is(err, domain.ErrStore) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "store failure")
			log.Printf("[Attendance] Failed to record lesson for member %s on %s: %v",
				in.OwnerID, day.Format(domain.DateLayout), err)
		}
		return nil, err
	}

	remaining := domain.Remaining(pkg)
	level := domain.Classify(remaining)
	span.SetAttributes(
		attribute.Int("package.remaining", remaining),
		attribute.String("credit.level", string(level)),
	)
	s.metrics.LessonRecorded(ctx, string(level))

	if level == domain.CreditLevelLow {
		s.notifyLowCredit(ctx, pkg, remaining)
	}

	return &domain.AttendanceResult{
		LessonID:  lesson.ID,
		ClientID:  lesson.ClientID,
		Remaining: remaining,
		Level:     level,
		Status:    pkg.Status,
	}, nil
}

func (s *AttendanceService) notifyLowCredit(ctx context.Context, pkg *domain.LessonPackage, remaining int) {
	if s.sink == nil {
		return
	}

	// The lesson is already committed; a cancelled request must not drop the notice.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	n := domain.Notification{
		RecipientIDs: []string{pkg.OwnerID},
		Title:        "Lesson credits running low",
		Message:      lowCreditMessage(remaining),
		CreatedAt:    s.now().UTC(),
	}
	if s.baseURL != "" {
		n.LinkURL = s.baseURL + "/packages/" + pkg.ID
	}

	if err := s.sink.Send(ctx, n); err != nil {
		log.Printf("[Attendance] Low-credit notification for member %s failed: %v", pkg.OwnerID, err)
		return
	}
	s.metrics.LowCreditNotified(ctx, remaining)
}

func lowCreditMessage(remaining int) string {
	if remaining == 1 {
		return "You have 1 lesson left in your package. Talk to your trainer about renewing."
	}
	return fmt.Sprintf("You have %d lessons left in your package.", remaining)
}

// resolveLesson finds a lesson by its id, falling back to the client-side ULID
// an optimistic UI may still be holding.
func (s *AttendanceService) resolveLesson(ctx context.Context, id string) (*domain.Lesson, error) {
	lesson, err := s.store.GetLesson(ctx, id)
	if err == nil {
		return lesson, nil
	}
	if !errors.Is(err, domain.ErrLessonNotFound) && !errors.Is(err, domain.ErrInvalidID) {
		return nil, err
	}
	byClient, errClient := s.store.GetLessonByClientID(ctx, id)
	if errClient != nil {
		return nil, err
	}
	return byClient, nil
}

// UndoAttendance removes a lesson and gives its credit back. Only the
// account that recorded the lesson may undo it.
func (s *AttendanceService) UndoAttendance(ctx context.Context, lessonID, requestedBy string) (*domain.PackageSummary, error) {
	return s.undo(ctx, "", lessonID, requestedBy)
}

// UndoAttendanceInPackage is UndoAttendance scoped to one package; a lesson
// of a different package reads as not found.
func (s *AttendanceService) UndoAttendanceInPackage(ctx context.Context, packageID, lessonID, requestedBy string) (*domain.PackageSummary, error) {
	return s.undo(ctx, packageID, lessonID, requestedBy)
}

func (s *AttendanceService) undo(ctx context.Context, packageID, lessonID, requestedBy string) (*domain.PackageSummary, error) {
	tracer := otel.Tracer("attendance")
	ctx, span := tracer.Start(ctx, "AttendanceService.UndoAttendance",
		trace.WithAttributes(attribute.String("lesson.id", lessonID)),
	)
	defer span.End()

	if lessonID == "" {
		return nil, domain.ErrInvalidID
	}

	lesson, err := s.resolveLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if packageID != "" && lesson.PackageID != packageID {
		return nil, domain.ErrLessonNotFound
	}
	if requestedBy == "" || lesson.RecordedBy != requestedBy {
		return nil, domain.ErrForbidden
	}

	pkg, err := s.store.DeleteLesson(ctx, lesson.ID)
	if err != nil {
		if errors.Is(err, domain.ErrStore) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "store failure")
			log.Printf("[Attendance] Failed to undo lesson %s: %v", lesson.ID, err)
		}
		return nil, err
	}
	s.metrics.LessonUndone(ctx)

	remaining := domain.Remaining(pkg)
	return &domain.PackageSummary{
		Package:   pkg,
		Remaining: remaining,
		Level:     domain.Classify(remaining),
	}, nil
}

// ListLessons returns a member's lessons with from <= date <= to, oldest
// first. A zero to means today; a zero from means DefaultLessonWindow days
// before to.
func (s *AttendanceService) ListLessons(ctx context.Context, ownerID string, from, to time.Time) ([]*domain.Lesson, error) {
	if ownerID == "" {
		return nil, domain.ErrInvalidID
	}
	if to.IsZero() {
		to = s.today()
	}
	to = domain.DayOf(to)
	if from.IsZero() {
		from = to.AddDate(0, 0, -(DefaultLessonWindow - 1))
	}
	from = domain.DayOf(from)
	if to.Before(from) {
		return nil, domain.ErrInvalidRange
	}
	return s.store.ListLessons(ctx, ownerID, from, to)
}
