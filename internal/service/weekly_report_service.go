package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/telemetry"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultReportConcurrency   = 8
	DefaultReportMemberTimeout = 30 * time.Second
	DefaultReportRunTimeout    = 10 * time.Minute
	DefaultReportListLimit     = 12
	MaxReportListLimit         = 52
)

// WeeklyReportConfig bounds a weekly report run
type WeeklyReportConfig struct {
	Concurrency   int
	MemberTimeout time.Duration
	RunTimeout    time.Duration
	Location      *time.Location
	Now           func() time.Time
}

// WeeklyReportService derives one engagement report per active member per week
type WeeklyReportService struct {
	store   domain.LedgerStore
	members domain.MemberRepository
	streaks *StreakCalculator
	metrics *telemetry.LedgerMetrics
	cfg     WeeklyReportConfig
}

func NewWeeklyReportService(
	store domain.LedgerStore,
	members domain.MemberRepository,
	metrics *telemetry.LedgerMetrics,
	cfg WeeklyReportConfig,
) *WeeklyReportService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultReportConcurrency
	}
	if cfg.MemberTimeout <= 0 {
		cfg.MemberTimeout = DefaultReportMemberTimeout
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultReportRunTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &WeeklyReportService{
		store:   store,
		members: members,
		streaks: NewStreakCalculator(store),
		metrics: metrics,
		cfg:     cfg,
	}
}

// GenerateWeeklyReports builds the report of the week containing asOf (the
// current week when asOf is zero) for every active member. Members are
// processed independently with bounded concurrency: one member's failure is
// logged with its id and counted, never aborting the others. Running it twice
// for the same week overwrites the reports in place.
//
// The returned error is non-nil only when the roster itself cannot be read.
func (s *WeeklyReportService) GenerateWeeklyReports(ctx context.Context, asOf time.Time) (*domain.BatchResult, error) {
	if asOf.IsZero() {
		asOf = s.cfg.Now()
	}
	return s.run(ctx, domain.CalendarDay(asOf, s.cfg.Location))
}

// GenerateWeeklyReportsForDay is GenerateWeeklyReports for the week holding
// a calendar day given as such (for example a parsed ?as_of= value).
func (s *WeeklyReportService) GenerateWeeklyReportsForDay(ctx context.Context, day time.Time) (*domain.BatchResult, error) {
	return s.run(ctx, domain.DayOf(day))
}

func (s *WeeklyReportService) run(ctx context.Context, day time.Time) (*domain.BatchResult, error) {
	started := time.Now()
	weekStart, weekEnd := domain.WeekBounds(day)

	tracer := otel.Tracer("weekly-reports")
	ctx, span := tracer.Start(ctx, "WeeklyReportService.GenerateWeeklyReports",
		trace.WithAttributes(attribute.String("week.start", weekStart.Format(domain.DateLayout))),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	owners, err := s.members.ListActiveOwners(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list active members: %w", err)
	}

	result := &domain.BatchResult{
		RunID:     ulid.Make().String(),
		WeekStart: weekStart,
		WeekEnd:   weekEnd,
		Total:     len(owners),
	}
	log.Printf("[WeeklyReports] Run %s: week %s, %d active members",
		result.RunID, weekStart.Format(domain.DateLayout), len(owners))

	var (
		succeeded atomic.Int64
		mu        sync.Mutex
		failed    []string
	)

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, ownerID := range owners {
		g.Go(func() error {
			if err := s.generateForMember(ctx, ownerID, weekStart, weekEnd); err != nil {
				log.Printf("[WeeklyReports] Run %s: member %s failed: %v", result.RunID, ownerID, err)
				mu.Lock()
				failed = append(failed, ownerID)
				mu.Unlock()
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(failed)
	result.Succeeded = int(succeeded.Load())
	result.Failed = failed

	elapsed := time.Since(started)
	s.metrics.BatchFinished(ctx, result.Succeeded, len(failed), elapsed)
	span.SetAttributes(
		attribute.Int("reports.generated", result.Succeeded),
		attribute.Int("reports.total", result.Total),
	)
	log.Printf("[WeeklyReports] Run %s finished in %s: %d/%d generated",
		result.RunID, elapsed.Round(time.Millisecond), result.Succeeded, result.Total)

	return result, nil
}

func (s *WeeklyReportService) generateForMember(ctx context.Context, ownerID string, weekStart, weekEnd time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.MemberTimeout)
	defer cancel()

	// Members still queued when the run deadline passes fail here.
	if err := ctx.Err(); err != nil {
		return err
	}

	count, err := s.store.CountLessons(ctx, ownerID, weekStart, weekEnd)
	if err != nil {
		return fmt.Errorf("count lessons: %w", err)
	}

	streak := 0
	if count > 0 {
		streak, err = s.streaks.ComputeStreak(ctx, ownerID, weekStart)
		if err != nil {
			return fmt.Errorf("compute streak: %w", err)
		}
	}

	report := &domain.WeeklyReport{
		OwnerID:          ownerID,
		WeekStart:        weekStart,
		WeekEnd:          weekEnd,
		LessonsCount:     count,
		TotalHours:       float64(count) * domain.HoursPerLesson,
		ConsecutiveWeeks: streak,
		Message:          ComposeWeeklyMessage(count, streak),
		GeneratedAt:      s.cfg.Now().UTC(),
	}
	if err := s.store.UpsertWeeklyReport(ctx, report); err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

// ListWeeklyReports returns a member's most recent reports, newest first
func (s *WeeklyReportService) ListWeeklyReports(ctx context.Context, ownerID string, limit int) ([]*domain.WeeklyReport, error) {
	if ownerID == "" {
		return nil, domain.ErrInvalidID
	}
	if limit <= 0 {
		limit = DefaultReportListLimit
	}
	if limit > MaxReportListLimit {
		limit = MaxReportListLimit
	}
	return s.store.ListWeeklyReports(ctx, ownerID, limit)
}
