package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
	"github.com/oklog/ulid/v2"
)

type ownerDay struct {
	ownerID string
	day     time.Time
}

type ownerWeek struct {
	ownerID   string
	weekStart time.Time
}

// MemoryLedgerStore is a process-local domain.LedgerStore and
// domain.MemberRepository. One mutex serialises every operation, which gives
// each call the same all-or-nothing behaviour as a database transaction. It
// backs local development (LEDGER_BACKEND=memory) and the service tests.
type MemoryLedgerStore struct {
	mu       sync.Mutex
	packages map[string]*domain.LessonPackage
	lessons  map[string]*domain.Lesson
	byDay    map[ownerDay]string
	reports  map[ownerWeek]*domain.WeeklyReport
	members  map[string]bool
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		packages: make(map[string]*domain.LessonPackage),
		lessons:  make(map[string]*domain.Lesson),
		byDay:    make(map[ownerDay]string),
		reports:  make(map[ownerWeek]*domain.WeeklyReport),
		members:  make(map[string]bool),
	}
}

// SetMemberActive adds or updates a member on the roster
func (s *MemoryLedgerStore) SetMemberActive(memberID string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[memberID] = active
}

func (s *MemoryLedgerStore) ListActiveOwners(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.members))
	for id, active := range s.members {
		if active {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryLedgerStore) CreatePackage(ctx context.Context, pkg *domain.LessonPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pkg.Status == domain.PackageStatusActive {
		for _, existing := range s.packages {
			if existing.OwnerID == pkg.OwnerID && existing.Status == domain.PackageStatusActive {
				return domain.ErrActivePackageExists
			}
		}
	}

	pkg.ID = ulid.Make().String()
	pkg.CreatedAt = time.Now().UTC()
	pkg.UpdatedAt = pkg.CreatedAt

	stored := *pkg
	s.packages[pkg.ID] = &stored
	return nil
}

func (s *MemoryLedgerStore) GetPackage(ctx context.Context, id string) (*domain.LessonPackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pkg, ok := s.packages[id]
	if !ok {
		return nil, domain.ErrPackageNotFound
	}
	out := *pkg
	return &out, nil
}

func (s *MemoryLedgerStore) HasActivePackage(ctx context.Context, ownerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pkg := range s.packages {
		if pkg.OwnerID == ownerID && pkg.Status == domain.PackageStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryLedgerStore) InsertLesson(ctx context.Context, in domain.NewLesson) (*domain.Lesson, *domain.LessonPackage, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, domain.StoreError("insert lesson", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pkg, ok := s.packages[in.PackageID]
	if !ok {
		return nil, nil, domain.ErrPackageNotFound
	}
	if pkg.OwnerID != in.OwnerID {
		return nil, nil, domain.ErrForbidden
	}

	key := ownerDay{ownerID: in.OwnerID, day: in.Date}
	if _, taken := s.byDay[key]; taken {
		return nil, nil, domain.ErrDuplicateAttendance
	}
	if in.ClientID != "" {
		for _, l := range s.lessons {
			if l.ClientID == in.ClientID {
				return nil, nil, domain.ErrDuplicateAttendance
			}
		}
	}

	next, err := domain.Consume(pkg)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	lesson := &domain.Lesson{
		ID:         ulid.Make().String(),
		PackageID:  in.PackageID,
		OwnerID:    in.OwnerID,
		Date:       in.Date,
		Notes:      in.Notes,
		ClientID:   in.ClientID,
		RecordedBy: in.RecordedBy,
		CreatedAt:  now,
	}
	next.UpdatedAt = now

	s.lessons[lesson.ID] = lesson
	s.byDay[key] = lesson.ID
	s.packages[pkg.ID] = next

	outLesson, outPkg := *lesson, *next
	return &outLesson, &outPkg, nil
}

func (s *MemoryLedgerStore) GetLesson(ctx context.Context, id string) (*domain.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lessons[id]
	if !ok {
		return nil, domain.ErrLessonNotFound
	}
	out := *l
	return &out, nil
}

func (s *MemoryLedgerStore) GetLessonByClientID(ctx context.Context, clientID string) (*domain.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if clientID == "" {
		return nil, domain.ErrLessonNotFound
	}
	for _, l := range s.lessons {
		if l.ClientID == clientID {
			out := *l
			return &out, nil
		}
	}
	return nil, domain.ErrLessonNotFound
}

func (s *MemoryLedgerStore) DeleteLesson(ctx context.Context, id string) (*domain.LessonPackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lessons[id]
	if !ok {
		return nil, domain.ErrLessonNotFound
	}
	pkg, ok := s.packages[l.PackageID]
	if !ok {
		return nil, domain.ErrPackageNotFound
	}

	next, err := domain.Release(pkg)
	if err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()

	delete(s.lessons, id)
	delete(s.byDay, ownerDay{ownerID: l.OwnerID, day: l.Date})
	s.packages[pkg.ID] = next

	out := *next
	return &out, nil
}

func (s *MemoryLedgerStore) CountLessons(ctx context.Context, ownerID string, from, to time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.StoreError("count lessons", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, l := range s.lessons {
		if l.OwnerID == ownerID && !l.Date.Before(from) && !l.Date.After(to) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryLedgerStore) ListLessons(ctx context.Context, ownerID string, from, to time.Time) ([]*domain.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lessons := make([]*domain.Lesson, 0)
	for _, l := range s.lessons {
		if l.OwnerID == ownerID && !l.Date.Before(from) && !l.Date.After(to) {
			out := *l
			lessons = append(lessons, &out)
		}
	}
	sort.Slice(lessons, func(i, j int) bool {
		return lessons[i].Date.Before(lessons[j].Date)
	})
	return lessons, nil
}

func (s *MemoryLedgerStore) UpsertWeeklyReport(ctx context.Context, report *domain.WeeklyReport) error {
	if err := ctx.Err(); err != nil {
		return domain.StoreError("upsert weekly report", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now().UTC()
	}

	key := ownerWeek{ownerID: report.OwnerID, weekStart: report.WeekStart}
	if existing, ok := s.reports[key]; ok {
		report.ID = existing.ID
	} else {
		report.ID = ulid.Make().String()
	}

	stored := *report
	s.reports[key] = &stored
	return nil
}

func (s *MemoryLedgerStore) ListWeeklyReports(ctx context.Context, ownerID string, limit int) ([]*domain.WeeklyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports := make([]*domain.WeeklyReport, 0)
	for key, r := range s.reports {
		if key.ownerID == ownerID {
			out := *r
			reports = append(reports, &out)
		}
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].WeekStart.After(reports[j].WeekStart)
	})
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}
