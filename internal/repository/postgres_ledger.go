package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

const pgUniqueViolation = "23505"

// DBTX is satisfied by both the pool and an open transaction
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresLedgerStore implements domain.LedgerStore on PostgreSQL. Lesson
// writes lock the package row (SELECT ... FOR UPDATE) for the duration of the
// transaction; the lessons_owner_date_key constraint backs the per-day rule
// across packages.
type PostgresLedgerStore struct {
	pool *pgxpool.Pool
}

func NewPostgresLedgerStore(pool *pgxpool.Pool) *PostgresLedgerStore {
	return &PostgresLedgerStore{pool: pool}
}

// NewPostgresPool opens a pgx pool sized for the report worker pool
func NewPostgresPool(ctx context.Context, dbURL string, maxConns int32) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

const packageColumns = `id, owner_id, total_lessons, used_lessons, start_date, expire_date, status, price, payment_status, created_at, updated_at`

func scanPackage(row pgx.Row) (*domain.LessonPackage, error) {
	var (
		pkg    domain.LessonPackage
		expire *time.Time
	)
	err := row.Scan(
		&pkg.ID,
		&pkg.OwnerID,
		&pkg.TotalLessons,
		&pkg.UsedLessons,
		&pkg.StartDate,
		&expire,
		&pkg.Status,
		&pkg.Price,
		&pkg.PaymentStatus,
		&pkg.CreatedAt,
		&pkg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if expire != nil {
		pkg.ExpireDate = *expire
	}
	return &pkg, nil
}

func (r *PostgresLedgerStore) CreatePackage(ctx context.Context, pkg *domain.LessonPackage) error {
	pkg.ID = ulid.Make().String()

	var expire *time.Time
	if !pkg.ExpireDate.IsZero() {
		expire = &pkg.ExpireDate
	}

	query := `
		INSERT INTO lesson_packages (id, owner_id, total_lessons, used_lessons, start_date, expire_date, status, price, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		pkg.ID,
		pkg.OwnerID,
		pkg.TotalLessons,
		pkg.UsedLessons,
		pkg.StartDate,
		expire,
		pkg.Status,
		pkg.Price,
		pkg.PaymentStatus,
	).Scan(&pkg.CreatedAt, &pkg.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrActivePackageExists
		}
		return domain.StoreError("create lesson package", err)
	}
	return nil
}

func (r *PostgresLedgerStore) GetPackage(ctx context.Context, id string) (*domain.LessonPackage, error) {
	return getPackage(ctx, r.pool, id, false)
}

func getPackage(ctx context.Context, db DBTX, id string, forUpdate bool) (*domain.LessonPackage, error) {
	query := `SELECT ` + packageColumns + ` FROM lesson_packages WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	pkg, err := scanPackage(db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPackageNotFound
		}
		return nil, domain.StoreError("get lesson package", err)
	}
	return pkg, nil
}

func (r *PostgresLedgerStore) HasActivePackage(ctx context.Context, ownerID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM lesson_packages WHERE owner_id = $1 AND status = 'active')`,
		ownerID,
	).Scan(&exists)
	if err != nil {
		return false, domain.StoreError("count active packages", err)
	}
	return exists, nil
}

// InsertLesson records a lesson and consumes one credit in one transaction
func (r *PostgresLedgerStore) InsertLesson(ctx context.Context, in domain.NewLesson) (*domain.Lesson, *domain.LessonPackage, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, domain.StoreError("begin", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	pkg, err := getPackage(ctx, tx, in.PackageID, true)
	if err != nil {
		return nil, nil, err
	}
	if pkg.OwnerID != in.OwnerID {
		return nil, nil, domain.ErrForbidden
	}

	var taken bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM lessons WHERE owner_id = $1 AND lesson_date = $2)`,
		in.OwnerID, in.Date,
	).Scan(&taken); err != nil {
		return nil, nil, domain.StoreError("check lesson day", err)
	}
	if taken {
		return nil, nil, domain.ErrDuplicateAttendance
	}

	next, err := domain.Consume(pkg)
	if err != nil {
		return nil, nil, err
	}

	lesson := &domain.Lesson{
		ID:         ulid.Make().String(),
		PackageID:  in.PackageID,
		OwnerID:    in.OwnerID,
		Date:       in.Date,
		Notes:      in.Notes,
		ClientID:   in.ClientID,
		RecordedBy: in.RecordedBy,
	}

	var clientID *string
	if in.ClientID != "" {
		clientID = &in.ClientID
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO lessons (id, package_id, owner_id, lesson_date, notes, client_id, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, lesson.ID, lesson.PackageID, lesson.OwnerID, lesson.Date, lesson.Notes, clientID, lesson.RecordedBy,
	).Scan(&lesson.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, nil, domain.ErrDuplicateAttendance
		}
		return nil, nil, domain.StoreError("insert lesson", err)
	}

	if err := writeCounter(ctx, tx, next); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, nil, domain.ErrDuplicateAttendance
		}
		return nil, nil, domain.StoreError("commit lesson", err)
	}
	return lesson, next, nil
}

func writeCounter(ctx context.Context, db DBTX, next *domain.LessonPackage) error {
	err := db.QueryRow(ctx, `
		UPDATE lesson_packages
		SET used_lessons = $2, status = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, next.ID, next.UsedLessons, next.Status).Scan(&next.UpdatedAt)
	if err != nil {
		return domain.StoreError("update package counter", err)
	}
	return nil
}

const lessonColumns = `id, package_id, owner_id, lesson_date, notes, COALESCE(client_id, ''), recorded_by, created_at`

func scanLesson(row pgx.Row) (*domain.Lesson, error) {
	var lesson domain.Lesson
	err := row.Scan(
		&lesson.ID,
		&lesson.PackageID,
		&lesson.OwnerID,
		&lesson.Date,
		&lesson.Notes,
		&lesson.ClientID,
		&lesson.RecordedBy,
		&lesson.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *PostgresLedgerStore) GetLesson(ctx context.Context, id string) (*domain.Lesson, error) {
	return r.findLesson(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id = $1`, id)
}

func (r *PostgresLedgerStore) GetLessonByClientID(ctx context.Context, clientID string) (*domain.Lesson, error) {
	if clientID == "" {
		return nil, domain.ErrLessonNotFound
	}
	return r.findLesson(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE client_id = $1`, clientID)
}

func (r *PostgresLedgerStore) findLesson(ctx context.Context, query string, arg string) (*domain.Lesson, error) {
	lesson, err := scanLesson(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLessonNotFound
		}
		return nil, domain.StoreError("get lesson", err)
	}
	return lesson, nil
}

// DeleteLesson removes a lesson and releases its credit in one transaction
func (r *PostgresLedgerStore) DeleteLesson(ctx context.Context, id string) (*domain.LessonPackage, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, domain.StoreError("begin", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var packageID string
	err = tx.QueryRow(ctx, `SELECT package_id FROM lessons WHERE id = $1 FOR UPDATE`, id).Scan(&packageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLessonNotFound
		}
		return nil, domain.StoreError("lock lesson", err)
	}

	pkg, err := getPackage(ctx, tx, packageID, true)
	if err != nil {
		return nil, err
	}

	next, err := domain.Release(pkg)
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return nil, domain.StoreError("delete lesson", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrLessonNotFound
	}

	if err := writeCounter(ctx, tx, next); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.StoreError("commit undo", err)
	}
	return next, nil
}

func (r *PostgresLedgerStore) CountLessons(ctx context.Context, ownerID string, from, to time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM lessons WHERE owner_id = $1 AND lesson_date BETWEEN $2 AND $3`,
		ownerID, from, to,
	).Scan(&n)
	if err != nil {
		return 0, domain.StoreError("count lessons", err)
	}
	return n, nil
}

func (r *PostgresLedgerStore) ListLessons(ctx context.Context, ownerID string, from, to time.Time) ([]*domain.Lesson, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+lessonColumns+`
		FROM lessons
		WHERE owner_id = $1 AND lesson_date BETWEEN $2 AND $3
		ORDER BY lesson_date ASC
	`, ownerID, from, to)
	if err != nil {
		return nil, domain.StoreError("list lessons", err)
	}
	defer rows.Close()

	lessons := make([]*domain.Lesson, 0)
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, domain.StoreError("scan lesson", err)
		}
		lessons = append(lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("list lessons", err)
	}
	return lessons, nil
}

// UpsertWeeklyReport writes the report for (owner, week_start), replacing any
// earlier run for the same week
func (r *PostgresLedgerStore) UpsertWeeklyReport(ctx context.Context, report *domain.WeeklyReport) error {
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now().UTC()
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO weekly_reports (id, owner_id, week_start, week_end, lessons_count, total_hours, consecutive_weeks, message, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (owner_id, week_start) DO UPDATE SET
			week_end = EXCLUDED.week_end,
			lessons_count = EXCLUDED.lessons_count,
			total_hours = EXCLUDED.total_hours,
			consecutive_weeks = EXCLUDED.consecutive_weeks,
			message = EXCLUDED.message,
			generated_at = EXCLUDED.generated_at
		RETURNING id
	`,
		ulid.Make().String(),
		report.OwnerID,
		report.WeekStart,
		report.WeekEnd,
		report.LessonsCount,
		report.TotalHours,
		report.ConsecutiveWeeks,
		report.Message,
		report.GeneratedAt,
	).Scan(&report.ID)
	if err != nil {
		return domain.StoreError("upsert weekly report", err)
	}
	return nil
}

func (r *PostgresLedgerStore) ListWeeklyReports(ctx context.Context, ownerID string, limit int) ([]*domain.WeeklyReport, error) {
	query := `
		SELECT id, owner_id, week_start, week_end, lessons_count, total_hours, consecutive_weeks, message, generated_at
		FROM weekly_reports
		WHERE owner_id = $1
		ORDER BY week_start DESC
	`
	args := []any{ownerID}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.StoreError("list weekly reports", err)
	}
	defer rows.Close()

	reports := make([]*domain.WeeklyReport, 0)
	for rows.Next() {
		var report domain.WeeklyReport
		if err := rows.Scan(
			&report.ID,
			&report.OwnerID,
			&report.WeekStart,
			&report.WeekEnd,
			&report.LessonsCount,
			&report.TotalHours,
			&report.ConsecutiveWeeks,
			&report.Message,
			&report.GeneratedAt,
		); err != nil {
			return nil, domain.StoreError("scan weekly report", err)
		}
		reports = append(reports, &report)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("list weekly reports", err)
	}
	return reports, nil
}

// PostgresMemberRepository implements domain.MemberRepository
type PostgresMemberRepository struct {
	db DBTX
}

func NewPostgresMemberRepository(db DBTX) *PostgresMemberRepository {
	return &PostgresMemberRepository{db: db}
}

// Create inserts a member; used by seeding and tests
func (r *PostgresMemberRepository) Create(ctx context.Context, member *domain.Member) error {
	if member.ID == "" {
		member.ID = ulid.Make().String()
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO members (id, name, email, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, member.ID, member.Name, member.Email, member.IsActive).Scan(&member.CreatedAt, &member.UpdatedAt)
}

func (r *PostgresMemberRepository) ListActiveOwners(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM members WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, domain.StoreError("list active members", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.StoreError("scan member", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("list active members", err)
	}
	return ids, nil
}
