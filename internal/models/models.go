package models

import "time"

type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindFile  MessageKind = "file"
)

// ParseKind maps a client-supplied kind onto the known set, defaulting
// to text.
func ParseKind(s string) MessageKind {
	switch MessageKind(s) {
	case KindImage:
		return KindImage
	case KindFile:
		return KindFile
	default:
		return KindText
	}
}

// Message is an end-to-end encrypted payload relayed between the two
// members of a room. Ciphertext and nonce are opaque base64 strings;
// the service never decrypts them.
type Message struct {
	ID          string      `bson:"_id,omitempty" json:"id"`
	RoomID      string      `bson:"room_id" json:"room_id"`
	Sender      string      `bson:"sender" json:"sender"`
	Ciphertext  string      `bson:"ciphertext" json:"ciphertext"`
	Nonce       string      `bson:"nonce" json:"nonce"`
	Kind        MessageKind `bson:"kind" json:"kind"`
	CreatedAt   time.Time   `bson:"created_at" json:"created_at"`
	DeliveredAt *time.Time  `bson:"delivered_at" json:"delivered_at"`
	ReadAt      *time.Time  `bson:"read_at" json:"read_at"`
}

type LastMessage struct {
	Text   string `bson:"text" json:"text"`
	Sender string `bson:"sender" json:"sender"`
}

// ConversationSummary is the denormalized per-room record backing the
// conversation list. Keyed by room id; unread counts accumulate per
// member and are cleared only by an explicit mark-read.
type ConversationSummary struct {
	RoomID        string           `bson:"_id" json:"room_id"`
	Members       []string         `bson:"members" json:"members"`
	LastMessage   LastMessage      `bson:"last_message" json:"last_message"`
	LastMessageAt time.Time        `bson:"last_message_at" json:"last_message_at"`
	UnreadCount   map[string]int64 `bson:"unread_count" json:"unread_count"`
}
