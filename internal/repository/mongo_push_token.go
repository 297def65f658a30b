package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoPushTokenRepository stores FCM device tokens per member
type MongoPushTokenRepository struct {
	collection *mongo.Collection
}

func NewMongoPushTokenRepository(db *mongo.Database) *MongoPushTokenRepository {
	collection := db.Collection("push_tokens")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "token", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "member_id", Value: 1}},
	})

	return &MongoPushTokenRepository{collection: collection}
}

// Register attaches a device token to a member. Re-registering a token moves
// it to the new member.
func (r *MongoPushTokenRepository) Register(ctx context.Context, memberID, token string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"token": token},
		bson.M{
			"$set":         bson.M{"member_id": memberID},
			"$setOnInsert": bson.M{"created_at": time.Now().UTC()},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *MongoPushTokenRepository) GetTokens(ctx context.Context, memberIDs []string) ([]string, error) {
	if len(memberIDs) == 0 {
		return nil, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"member_id": bson.M{"$in": memberIDs}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Token string `bson:"token"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	tokens := make([]string, 0, len(rows))
	for _, row := range rows {
		tokens = append(tokens, row.Token)
	}
	return tokens, nil
}

// RemoveTokens drops tokens FCM reported as unregistered
func (r *MongoPushTokenRepository) RemoveTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	_, err := r.collection.DeleteMany(ctx, bson.M{"token": bson.M{"$in": tokens}})
	return err
}
