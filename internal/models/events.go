package models

import "time"

// Wire event names, service -> client.
const (
	EventUserOnline          = "user-online"
	EventUserOffline         = "user-offline"
	EventUserLastSeen        = "user-last-seen"
	EventOnlineUsers         = "online-users"
	EventReceiveMessage      = "receive-message"
	EventMessagesSeen        = "messages-seen"
	EventConversationUpdated = "conversation-updated"
	EventError               = "error"
)

// Wire event names, client -> service.
const (
	EventJoinRoom       = "join-room"
	EventLeaveRoom      = "leave-room"
	EventSendMessage    = "send-message"
	EventGetOnlineUsers = "get-online-users"
)

type SeenEvent struct {
	RoomID string `json:"room_id"`
	SeenBy string `json:"seen_by"`
}

type LastSeenEvent struct {
	UserID   string    `json:"user_id"`
	LastSeen time.Time `json:"last_seen"`
}

type ConversationUpdatedEvent struct {
	RoomID        string    `json:"room_id"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	Sender        string    `json:"sender"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
