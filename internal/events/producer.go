package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fathima-sithara/realtime-service/internal/models"
)

// MessageSentEvent is published after a message has been durably
// written. Ciphertext stays opaque end to end.
type MessageSentEvent struct {
	MessageID string    `json:"message_id"`
	RoomID    string    `json:"room_id"`
	Sender    string    `json:"sender"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &Producer{writer: w}
}

func (p *Producer) MessageSent(ctx context.Context, m *models.Message) error {
	ev := MessageSentEvent{
		MessageID: m.ID,
		RoomID:    m.RoomID,
		Sender:    m.Sender,
		Kind:      string(m.Kind),
		CreatedAt: m.CreatedAt,
		Read:      m.ReadAt != nil,
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(m.RoomID),
		Value: b,
		Time:  m.CreatedAt,
	})
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
