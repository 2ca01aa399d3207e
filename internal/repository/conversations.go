package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fathima-sithara/realtime-service/internal/models"
)

type ConversationRepo struct {
	coll *mongo.Collection
}

func NewConversationRepo(db *mongo.Database) *ConversationRepo {
	return &ConversationRepo{coll: db.Collection(conversationsCollection)}
}

// Upsert writes the preview fields for the room and, when incrementFor
// is non-empty, bumps that member's unread counter in the same atomic
// update. Concurrent upserts on one room accumulate increments while
// the last writer wins the preview.
func (r *ConversationRepo) Upsert(ctx context.Context, roomID string, members []string, last models.LastMessage, at time.Time, incrementFor string) error {
	update := bson.M{
		"$set": bson.M{
			"members":         members,
			"last_message":    last,
			"last_message_at": at,
		},
	}
	if incrementFor != "" {
		update["$inc"] = bson.M{"unread_count." + incrementFor: 1}
	}
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": roomID},
		update,
		options.Update().SetUpsert(true),
	)
	return err
}

// ClearUnread sets userID's counter for the room to exactly zero.
func (r *ConversationRepo) ClearUnread(ctx context.Context, roomID, userID string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{"$set": bson.M{"unread_count." + userID: 0}},
	)
	return err
}

// ListForUser returns the user's conversation summaries, most recent
// activity first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID string) ([]*models.ConversationSummary, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{"members": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.ConversationSummary
	for cur.Next(ctx) {
		var c models.ConversationSummary
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, cur.Err()
}
