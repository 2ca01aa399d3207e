package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fathima-sithara/realtime-service/internal/models"
)

type MessageRepo struct {
	coll *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{coll: db.Collection(messagesCollection)}
}

type messageDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	RoomID      string             `bson:"room_id"`
	Sender      string             `bson:"sender"`
	Ciphertext  string             `bson:"ciphertext"`
	Nonce       string             `bson:"nonce"`
	Kind        models.MessageKind `bson:"kind"`
	CreatedAt   time.Time          `bson:"created_at"`
	DeliveredAt *time.Time         `bson:"delivered_at"`
	ReadAt      *time.Time         `bson:"read_at"`
}

func (d *messageDoc) toModel() *models.Message {
	return &models.Message{
		ID:          d.ID.Hex(),
		RoomID:      d.RoomID,
		Sender:      d.Sender,
		Ciphertext:  d.Ciphertext,
		Nonce:       d.Nonce,
		Kind:        d.Kind,
		CreatedAt:   d.CreatedAt,
		DeliveredAt: d.DeliveredAt,
		ReadAt:      d.ReadAt,
	}
}

func (r *MessageRepo) Insert(ctx context.Context, m *models.Message) (*models.Message, error) {
	doc := messageDoc{
		RoomID:      m.RoomID,
		Sender:      m.Sender,
		Ciphertext:  m.Ciphertext,
		Nonce:       m.Nonce,
		Kind:        m.Kind,
		CreatedAt:   m.CreatedAt,
		DeliveredAt: m.DeliveredAt,
		ReadAt:      m.ReadAt,
	}
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	m.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return m, nil
}

// MarkRoomRead stamps read_at on every unread message in the room not
// sent by readerID. Returns the number of messages updated.
func (r *MessageRepo) MarkRoomRead(ctx context.Context, roomID, readerID string, at time.Time) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{
			"room_id": roomID,
			"sender":  bson.M{"$ne": readerID},
			"read_at": nil,
		},
		bson.M{"$set": bson.M{"read_at": at}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ListByRoom returns up to limit messages created before the given time
// (all messages when before is zero), in ascending creation order.
func (r *MessageRepo) ListByRoom(ctx context.Context, roomID string, limit int64, before time.Time) ([]*models.Message, error) {
	filter := bson.M{"room_id": roomID}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Message
	for cur.Next(ctx) {
		var doc messageDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toModel())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	// newest-first fetch, chronological return
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
