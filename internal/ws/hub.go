package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-service/internal/metrics"
)

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub indexes live clients by connection id and by user id so an event
// can target one socket, every socket of a user, or everyone.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Client
	users map[string]map[string]*Client // userID -> connID -> client

	// publish mirrors broadcasts to other instances (optional)
	publish func(ctx context.Context, channel string, payload []byte) error
	log     *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		conns: make(map[string]*Client),
		users: make(map[string]map[string]*Client),
		log:   log,
	}
}

// SetPublish attaches the cross-instance publish hook.
func (h *Hub) SetPublish(fn func(ctx context.Context, channel string, payload []byte) error) {
	h.publish = fn
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID] = c
	set, ok := h.users[c.UserID]
	if !ok {
		set = make(map[string]*Client)
		h.users[c.UserID] = set
	}
	set[c.ID] = c
	metrics.ConnectionsActive.Inc()
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.conns[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c.ID)
	if set, ok := h.users[c.UserID]; ok {
		delete(set, c.ID)
		if len(set) == 0 {
			delete(h.users, c.UserID)
		}
	}
	h.mu.Unlock()
	metrics.ConnectionsActive.Dec()
	c.shutdown()
}

// ToConn delivers an event to a single connection.
func (h *Hub) ToConn(connID, event string, data any) {
	b, err := encode(event, data)
	if err != nil {
		h.log.Errorw("encode event failed", "event", event, "err", err)
		return
	}
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if ok {
		c.enqueue(b)
	}
}

// ToConns delivers an event to each listed connection.
func (h *Hub) ToConns(connIDs []string, event string, data any) {
	if len(connIDs) == 0 {
		return
	}
	b, err := encode(event, data)
	if err != nil {
		h.log.Errorw("encode event failed", "event", event, "err", err)
		return
	}
	h.mu.RLock()
	for _, id := range connIDs {
		if c, ok := h.conns[id]; ok {
			c.enqueue(b)
		}
	}
	h.mu.RUnlock()
}

// ToUser delivers an event to every connection of the user.
func (h *Hub) ToUser(userID, event string, data any) {
	b, err := encode(event, data)
	if err != nil {
		h.log.Errorw("encode event failed", "event", event, "err", err)
		return
	}
	h.mu.RLock()
	for _, c := range h.users[userID] {
		c.enqueue(b)
	}
	h.mu.RUnlock()
	h.mirror("user:"+userID, b)
}

// ToAll delivers an event to every live connection.
func (h *Hub) ToAll(event string, data any) {
	b, err := encode(event, data)
	if err != nil {
		h.log.Errorw("encode event failed", "event", event, "err", err)
		return
	}
	h.mu.RLock()
	for _, c := range h.conns {
		c.enqueue(b)
	}
	h.mu.RUnlock()
	h.mirror("all", b)
}

func (h *Hub) mirror(channel string, payload []byte) {
	if h.publish == nil {
		return
	}
	if err := h.publish(context.Background(), channel, payload); err != nil {
		h.log.Warnw("cross-instance publish failed", "channel", channel, "err", err)
	}
}

func encode(event string, data any) ([]byte, error) {
	return json.Marshal(envelope{Event: event, Data: data})
}
