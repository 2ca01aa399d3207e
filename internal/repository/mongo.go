package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	messagesCollection      = "messages"
	conversationsCollection = "conversations"
	usersCollection         = "users"
)

func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates the indexes the query paths depend on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(messagesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "read_at", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = db.Collection(conversationsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "members", Value: 1}, {Key: "last_message_at", Value: -1}}},
	})
	return err
}
