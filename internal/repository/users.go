package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserRepo persists the advisory presence fields on the user directory.
// Writes are best-effort from the presence tracker's point of view.
type UserRepo struct {
	coll *mongo.Collection
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{coll: db.Collection(usersCollection)}
}

func (r *UserRepo) SetOnline(ctx context.Context, userID string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"is_online": true}},
	)
	return err
}

func (r *UserRepo) SetOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"is_online": false, "last_seen": lastSeen}},
	)
	return err
}
