package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var errPackageChanged = errors.New("lesson package changed concurrently")

// MongoLedgerStore implements domain.LedgerStore on MongoDB.
// Lesson writes run in multi-document transactions, so the server must be a
// replica set. The unique (owner_id, date) index backs the per-day rule when
// two transactions race.
type MongoLedgerStore struct {
	client   *mongo.Client
	packages *mongo.Collection
	lessons  *mongo.Collection
	reports  *mongo.Collection
}

func NewMongoLedgerStore(db *mongo.Database) *MongoLedgerStore {
	store := &MongoLedgerStore{
		client:   db.Client(),
		packages: db.Collection("lesson_packages"),
		lessons:  db.Collection("lessons"),
		reports:  db.Collection("weekly_reports"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.ensureIndexes(ctx); err != nil {
		log.Printf("Warning: failed to create ledger indexes: %v", err)
	}
	return store
}

func (r *MongoLedgerStore) ensureIndexes(ctx context.Context) error {
	// At most one active package per member
	if _, err := r.packages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "owner_id", Value: 1}},
			Options: options.Index().
				SetName("one_active_package_per_owner").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": domain.PackageStatusActive}),
		},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("lesson_packages indexes: %w", err)
	}

	if _, err := r.lessons.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetName("one_lesson_per_owner_day").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "client_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{Keys: bson.D{{Key: "package_id", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("lessons indexes: %w", err)
	}

	if _, err := r.reports.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "week_start", Value: 1}},
		Options: options.Index().SetName("one_report_per_owner_week").SetUnique(true),
	}); err != nil {
		return fmt.Errorf("weekly_reports indexes: %w", err)
	}
	return nil
}

// --- Packages ---

func (r *MongoLedgerStore) CreatePackage(ctx context.Context, pkg *domain.LessonPackage) error {
	pkg.CreatedAt = time.Now().UTC()
	pkg.UpdatedAt = pkg.CreatedAt

	result, err := r.packages.InsertOne(ctx, pkg)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrActivePackageExists
		}
		return domain.StoreError("create lesson package", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		pkg.ID = oid.Hex()
	}
	return nil
}

func (r *MongoLedgerStore) GetPackage(ctx context.Context, id string) (*domain.LessonPackage, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrPackageNotFound
	}

	var pkg domain.LessonPackage
	err = r.packages.FindOne(ctx, bson.M{"_id": oid}).Decode(&pkg)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrPackageNotFound
		}
		return nil, domain.StoreError("get lesson package", err)
	}
	return &pkg, nil
}

func (r *MongoLedgerStore) HasActivePackage(ctx context.Context, ownerID string) (bool, error) {
	n, err := r.packages.CountDocuments(ctx, bson.M{
		"owner_id": ownerID,
		"status":   domain.PackageStatusActive,
	})
	if err != nil {
		return false, domain.StoreError("count active packages", err)
	}
	return n > 0, nil
}

// --- Lessons ---

// InsertLesson records a lesson and consumes one credit in one transaction
func (r *MongoLedgerStore) InsertLesson(ctx context.Context, in domain.NewLesson) (*domain.Lesson, *domain.LessonPackage, error) {
	pkgOID, err := primitive.ObjectIDFromHex(in.PackageID)
	if err != nil {
		return nil, nil, domain.ErrPackageNotFound
	}

	session, err := r.client.StartSession()
	if err != nil {
		return nil, nil, domain.StoreError("start session", err)
	}
	defer session.EndSession(ctx)

	var (
		lesson *domain.Lesson
		after  *domain.LessonPackage
	)

	// The callback may run more than once on transient transaction errors,
	// so it only assigns the outer results on its success path.
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var pkg domain.LessonPackage
		if err := r.packages.FindOne(sc, bson.M{"_id": pkgOID}).Decode(&pkg); err != nil {
			if err == mongo.ErrNoDocuments {
				return nil, domain.ErrPackageNotFound
			}
			return nil, err
		}
		if pkg.OwnerID != in.OwnerID {
			return nil, domain.ErrForbidden
		}

		taken, err := r.lessons.CountDocuments(sc, bson.M{"owner_id": in.OwnerID, "date": in.Date})
		if err != nil {
			return nil, err
		}
		if taken > 0 {
			return nil, domain.ErrDuplicateAttendance
		}

		next, err := domain.Consume(&pkg)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		l := &domain.Lesson{
			PackageID:  in.PackageID,
			OwnerID:    in.OwnerID,
			Date:       in.Date,
			Notes:      in.Notes,
			ClientID:   in.ClientID,
			RecordedBy: in.RecordedBy,
			CreatedAt:  now,
		}
		res, err := r.lessons.InsertOne(sc, l)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, domain.ErrDuplicateAttendance
			}
			return nil, err
		}
		if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
			l.ID = oid.Hex()
		}

		if err := r.writeCounter(sc, pkgOID, pkg.UsedLessons, next, now); err != nil {
			return nil, err
		}

		lesson, after = l, next
		return nil, nil
	})
	if err != nil {
		return nil, nil, ledgerError("insert lesson", err)
	}
	return lesson, after, nil
}

func (r *MongoLedgerStore) GetLesson(ctx context.Context, id string) (*domain.Lesson, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrLessonNotFound
	}
	return r.findLesson(ctx, bson.M{"_id": oid})
}

func (r *MongoLedgerStore) GetLessonByClientID(ctx context.Context, clientID string) (*domain.Lesson, error) {
	if clientID == "" {
		return nil, domain.ErrLessonNotFound
	}
	return r.findLesson(ctx, bson.M{"client_id": clientID})
}

func (r *MongoLedgerStore) findLesson(ctx context.Context, filter bson.M) (*domain.Lesson, error) {
	var lesson domain.Lesson
	err := r.lessons.FindOne(ctx, filter).Decode(&lesson)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrLessonNotFound
		}
		return nil, domain.StoreError("get lesson", err)
	}
	return &lesson, nil
}

// DeleteLesson removes a lesson and releases its credit in one transaction
func (r *MongoLedgerStore) DeleteLesson(ctx context.Context, id string) (*domain.LessonPackage, error) {
	lessonOID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrLessonNotFound
	}

	session, err := r.client.StartSession()
	if err != nil {
		return nil, domain.StoreError("start session", err)
	}
	defer session.EndSession(ctx)

	var after *domain.LessonPackage
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var lesson domain.Lesson
		if err := r.lessons.FindOne(sc, bson.M{"_id": lessonOID}).Decode(&lesson); err != nil {
			if err == mongo.ErrNoDocuments {
				return nil, domain.ErrLessonNotFound
			}
			return nil, err
		}

		pkgOID, err := primitive.ObjectIDFromHex(lesson.PackageID)
		if err != nil {
			return nil, domain.ErrPackageNotFound
		}
		var pkg domain.LessonPackage
		if err := r.packages.FindOne(sc, bson.M{"_id": pkgOID}).Decode(&pkg); err != nil {
			if err == mongo.ErrNoDocuments {
				return nil, domain.ErrPackageNotFound
			}
			return nil, err
		}

		next, err := domain.Release(&pkg)
		if err != nil {
			return nil, err
		}

		res, err := r.lessons.DeleteOne(sc, bson.M{"_id": lessonOID})
		if err != nil {
			return nil, err
		}
		if res.DeletedCount == 0 {
			return nil, domain.ErrLessonNotFound
		}

		if err := r.writeCounter(sc, pkgOID, pkg.UsedLessons, next, time.Now().UTC()); err != nil {
			return nil, err
		}
		after = next
		return nil, nil
	})
	if err != nil {
		return nil, ledgerError("delete lesson", err)
	}
	return after, nil
}

// writeCounter stores the new counter, guarded on the value read inside the
// same transaction. A concurrent writer surfaces as a write conflict that
// WithTransaction retries.
func (r *MongoLedgerStore) writeCounter(sc mongo.SessionContext, pkgOID primitive.ObjectID, readUsed int, next *domain.LessonPackage, now time.Time) error {
	res, err := r.packages.UpdateOne(sc,
		bson.M{"_id": pkgOID, "used_lessons": readUsed},
		bson.M{"$set": bson.M{
			"used_lessons": next.UsedLessons,
			"status":       next.Status,
			"updated_at":   now,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errPackageChanged
	}
	next.UpdatedAt = now
	return nil
}

func (r *MongoLedgerStore) CountLessons(ctx context.Context, ownerID string, from, to time.Time) (int, error) {
	n, err := r.lessons.CountDocuments(ctx, bson.M{
		"owner_id": ownerID,
		"date": bson.M{
			"$gte": from,
			"$lte": to,
		},
	})
	if err != nil {
		return 0, domain.StoreError("count lessons", err)
	}
	return int(n), nil
}

func (r *MongoLedgerStore) ListLessons(ctx context.Context, ownerID string, from, to time.Time) ([]*domain.Lesson, error) {
	filter := bson.M{
		"owner_id": ownerID,
		"date": bson.M{
			"$gte": from,
			"$lte": to,
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})

	cursor, err := r.lessons.Find(ctx, filter, opts)
	if err != nil {
		return nil, domain.StoreError("list lessons", err)
	}
	defer cursor.Close(ctx)

	lessons := []*domain.Lesson{}
	if err := cursor.All(ctx, &lessons); err != nil {
		return nil, domain.StoreError("decode lessons", err)
	}
	return lessons, nil
}

// --- Weekly reports ---

// UpsertWeeklyReport writes the report for (owner, week_start), replacing any
// earlier run for the same week
func (r *MongoLedgerStore) UpsertWeeklyReport(ctx context.Context, report *domain.WeeklyReport) error {
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now().UTC()
	}

	filter := bson.M{"owner_id": report.OwnerID, "week_start": report.WeekStart}
	update := bson.M{
		"$set": bson.M{
			"week_end":          report.WeekEnd,
			"lessons_count":     report.LessonsCount,
			"total_hours":       report.TotalHours,
			"consecutive_weeks": report.ConsecutiveWeeks,
			"message":           report.Message,
			"generated_at":      report.GeneratedAt,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After).
		SetProjection(bson.M{"_id": 1})

	// Both the insert and the overwrite path report the row's id
	var stored struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := r.reports.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored); err != nil {
		return domain.StoreError("upsert weekly report", err)
	}
	report.ID = stored.ID.Hex()
	return nil
}

func (r *MongoLedgerStore) ListWeeklyReports(ctx context.Context, ownerID string, limit int) ([]*domain.WeeklyReport, error) {
	opts := options.Find().SetSort(bson.D{{Key: "week_start", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.reports.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, domain.StoreError("list weekly reports", err)
	}
	defer cursor.Close(ctx)

	reports := []*domain.WeeklyReport{}
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, domain.StoreError("decode weekly reports", err)
	}
	return reports, nil
}

// ledgerError passes ledger rule violations through untouched and marks
// everything else as a retryable store failure.
func ledgerError(op string, err error) error {
	if domain.IsClientError(err) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrForbidden) ||
		errors.Is(err, domain.ErrNothingToRelease) {
		return err
	}
	return domain.StoreError(op, err)
}
