package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoMemberRepository implements domain.MemberRepository
type MongoMemberRepository struct {
	collection *mongo.Collection
}

func NewMongoMemberRepository(db *mongo.Database) *MongoMemberRepository {
	coll := db.Collection("members")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "is_active", Value: 1}},
	})

	return &MongoMemberRepository{
		collection: coll,
	}
}

// Create inserts a member. Roster management is owned by the portal; this is
// used by seeding and tests.
func (r *MongoMemberRepository) Create(ctx context.Context, member *domain.Member) error {
	member.CreatedAt = time.Now().UTC()
	member.UpdatedAt = member.CreatedAt

	result, err := r.collection.InsertOne(ctx, member)
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		member.ID = oid.Hex()
	}
	return nil
}

// ListActiveOwners returns the ids of every active member
func (r *MongoMemberRepository) ListActiveOwners(ctx context.Context) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"is_active": true}, opts)
	if err != nil {
		return nil, domain.StoreError("list active members", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, domain.StoreError("decode active members", err)
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID.Hex())
	}
	return ids, nil
}
