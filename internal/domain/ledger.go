package domain

import (
	"context"
	"time"
)

// NewLesson is what the recorder asks the store to commit
type NewLesson struct {
	PackageID  string
	OwnerID    string
	Date       time.Time
	Notes      string
	ClientID   string
	RecordedBy string
}

// LedgerStore is the persistence boundary of the lesson-credit ledger.
//
// InsertLesson and DeleteLesson are each one atomic unit: the lesson row and
// the owning package's used_lessons counter change together or not at all.
// Implementations enforce the (owner, date) uniqueness and the capacity rule
// themselves so that concurrent writers on different processes cannot both
// succeed. Storage failures are reported wrapped in ErrStore.
type LedgerStore interface {
	// Packages
	CreatePackage(ctx context.Context, pkg *LessonPackage) error
	GetPackage(ctx context.Context, id string) (*LessonPackage, error)
	HasActivePackage(ctx context.Context, ownerID string) (bool, error)

	// InsertLesson checks, in order: package exists (ErrPackageNotFound),
	// owner matches (ErrForbidden), no lesson on that day for that owner
	// (ErrDuplicateAttendance), CanConsume. It then inserts the lesson and
	// applies Consume to the package. Returns the committed lesson and the
	// package as it is after the write.
	InsertLesson(ctx context.Context, in NewLesson) (*Lesson, *LessonPackage, error)
	GetLesson(ctx context.Context, id string) (*Lesson, error)
	GetLessonByClientID(ctx context.Context, clientID string) (*Lesson, error)
	// DeleteLesson removes the lesson and applies Release to its package.
	DeleteLesson(ctx context.Context, id string) (*LessonPackage, error)
	// CountLessons counts lessons of ownerID with from <= date <= to.
	CountLessons(ctx context.Context, ownerID string, from, to time.Time) (int, error)
	ListLessons(ctx context.Context, ownerID string, from, to time.Time) ([]*Lesson, error)

	// Weekly reports
	UpsertWeeklyReport(ctx context.Context, report *WeeklyReport) error
	ListWeeklyReports(ctx context.Context, ownerID string, limit int) ([]*WeeklyReport, error)
}

// LessonCounter is the read-only slice of the store the streak walk needs
type LessonCounter interface {
	CountLessons(ctx context.Context, ownerID string, from, to time.Time) (int, error)
}

// WeeklyReportReader serves report reads, possibly from a cache
type WeeklyReportReader interface {
	ListWeeklyReports(ctx context.Context, ownerID string, limit int) ([]*WeeklyReport, error)
}
