// Package relay validates, persists and fans out encrypted messages
// between the two members of a room, and keeps the denormalized
// conversation summary in step.
package relay

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-service/internal/apperr"
	"github.com/fathima-sithara/realtime-service/internal/metrics"
	"github.com/fathima-sithara/realtime-service/internal/models"
	"github.com/fathima-sithara/realtime-service/internal/room"
	"github.com/fathima-sithara/realtime-service/internal/roompresence"
)

// The server never sees plaintext, so the list preview is a constant.
const encryptedPreview = "Encrypted message"

type MessageStore interface {
	Insert(ctx context.Context, m *models.Message) (*models.Message, error)
	MarkRoomRead(ctx context.Context, roomID, readerID string, at time.Time) (int64, error)
}

type SummaryStore interface {
	Upsert(ctx context.Context, roomID string, members []string, last models.LastMessage, at time.Time, incrementFor string) error
	ClearUnread(ctx context.Context, roomID, userID string) error
}

// EventPublisher forwards message-sent events to the event bus,
// best-effort.
type EventPublisher interface {
	MessageSent(ctx context.Context, m *models.Message) error
}

type Broadcaster interface {
	ToUser(userID, event string, data any)
	ToConns(connIDs []string, event string, data any)
}

type Service struct {
	rooms    *roompresence.Tracker
	messages MessageStore
	convs    SummaryStore
	events   EventPublisher
	b        Broadcaster
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewService(rooms *roompresence.Tracker, messages MessageStore, convs SummaryStore, b Broadcaster, log *zap.SugaredLogger) *Service {
	return &Service{
		rooms:    rooms,
		messages: messages,
		convs:    convs,
		b:        b,
		log:      log,
		now:      time.Now,
	}
}

// SetEventPublisher attaches an optional event bus producer.
func (s *Service) SetEventPublisher(p EventPublisher) { s.events = p }

// Send persists an encrypted message and fans it out. The receiver's
// room presence at the moment of the send decides read state and
// whether their unread counter grows. Nothing is broadcast unless the
// message write succeeded.
func (s *Service) Send(ctx context.Context, roomID, senderID, ciphertext, nonce string, kind models.MessageKind) (*models.Message, error) {
	if roomID == "" || ciphertext == "" || nonce == "" {
		return nil, fmt.Errorf("%w: room_id, ciphertext and nonce are required", apperr.ErrBadRequest)
	}
	a, b, err := room.Parse(roomID)
	if err != nil {
		return nil, err
	}
	receiverID, err := room.Other(roomID, senderID)
	if err != nil {
		return nil, err
	}

	// point-in-time presence snapshot; no locks held past here
	receiverPresent := s.rooms.IsPresent(roomID, receiverID)

	now := s.now().UTC()
	m := &models.Message{
		RoomID:      roomID,
		Sender:      senderID,
		Ciphertext:  ciphertext,
		Nonce:       nonce,
		Kind:        kind,
		CreatedAt:   now,
		DeliveredAt: &now,
	}
	if receiverPresent {
		m.ReadAt = &now
	}

	saved, err := s.messages.Insert(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}

	incrementFor := ""
	if !receiverPresent {
		incrementFor = receiverID
	}
	last := models.LastMessage{Text: encryptedPreview, Sender: senderID}
	if err := s.convs.Upsert(ctx, roomID, []string{a, b}, last, now, incrementFor); err != nil {
		// message is durable; summary self-corrects on the next write
		s.log.Errorw("conversation summary upsert failed", "room_id", roomID, "err", err)
	}

	if s.events != nil {
		if err := s.events.MessageSent(ctx, saved); err != nil {
			s.log.Warnw("message-sent event publish failed", "message_id", saved.ID, "err", err)
		}
	}

	s.b.ToConns(s.rooms.ConnectionsExcept(roomID, senderID), models.EventReceiveMessage, saved)
	if receiverPresent {
		s.b.ToConns(s.rooms.Connections(roomID), models.EventMessagesSeen, models.SeenEvent{RoomID: roomID, SeenBy: receiverID})
	}

	update := models.ConversationUpdatedEvent{
		RoomID:        roomID,
		LastMessage:   encryptedPreview,
		LastMessageAt: now,
		Sender:        senderID,
	}
	s.b.ToUser(a, models.EventConversationUpdated, update)
	s.b.ToUser(b, models.EventConversationUpdated, update)

	metrics.MessagesRelayed.Inc()
	return saved, nil
}

// JoinRoom registers the connection in the room and settles read state:
// everything the other member sent while this user was away is marked
// read, their unread counter is cleared, and the room is told who saw
// the messages.
func (s *Service) JoinRoom(ctx context.Context, roomID, userID, connID string) error {
	if _, _, err := room.Parse(roomID); err != nil {
		return err
	}
	if !room.IsMember(roomID, userID) {
		return fmt.Errorf("%w: %s is not a member of %s", apperr.ErrForbidden, userID, roomID)
	}

	s.rooms.Join(roomID, userID, connID)

	now := s.now().UTC()
	if _, err := s.messages.MarkRoomRead(ctx, roomID, userID, now); err != nil {
		// read receipts catch up on the next join
		s.log.Errorw("mark room read failed", "room_id", roomID, "user_id", userID, "err", err)
		return nil
	}
	if err := s.convs.ClearUnread(ctx, roomID, userID); err != nil {
		s.log.Errorw("clear unread failed", "room_id", roomID, "user_id", userID, "err", err)
	}

	s.b.ToConns(s.rooms.Connections(roomID), models.EventMessagesSeen, models.SeenEvent{RoomID: roomID, SeenBy: userID})
	return nil
}

// LeaveRoom removes the connection from the room.
func (s *Service) LeaveRoom(roomID, userID, connID string) {
	s.rooms.Leave(roomID, userID, connID)
}

// DropConnection cleans up room presence for a dropped connection.
func (s *Service) DropConnection(connID string) {
	s.rooms.DropConnection(connID)
}
