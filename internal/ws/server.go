package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fathima-sithara/realtime-service/internal/auth"
	"github.com/fathima-sithara/realtime-service/internal/config"
	"github.com/fathima-sithara/realtime-service/internal/models"
	"github.com/fathima-sithara/realtime-service/internal/presence"
	"github.com/fathima-sithara/realtime-service/internal/relay"
)

type Server struct {
	hub      *Hub
	jv       *auth.Validator
	presence *presence.Tracker
	relay    *relay.Service
	cfg      *config.Config
	log      *zap.SugaredLogger
}

func NewServer(cfg *config.Config, hub *Hub, jv *auth.Validator, pt *presence.Tracker, rs *relay.Service, log *zap.SugaredLogger) *Server {
	return &Server{hub: hub, jv: jv, presence: pt, relay: rs, cfg: cfg, log: log}
}

func (s *Server) Hub() *Hub { return s.hub }

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinRoomPayload struct {
	RoomID string `json:"room_id"`
}

type sendMessagePayload struct {
	RoomID     string `json:"room_id"`
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
	Kind       string `json:"kind"`
}

// Handle authenticates the upgrade and runs the connection until it
// drops. Identity is resolved before any state is touched; a token
// that does not validate closes the socket immediately.
func (s *Server) Handle() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		token := conn.Query("token")
		if token == "" {
			_ = conn.Close()
			return
		}
		userID, err := s.jv.Validate(token)
		if err != nil {
			s.log.Infow("websocket auth rejected", "err", err)
			_ = conn.Close()
			return
		}

		limiter := rate.NewLimiter(rate.Limit(s.cfg.WS.SendRatePerSecond), s.cfg.WS.SendBurst)
		c := newClient(userID, conn, limiter)

		s.hub.Register(c)
		s.presence.AddConnection(userID, c.ID)
		go c.writePump(s.cfg.PingInterval, s.cfg.WriteDeadline)

		s.readPump(c)

		// disconnect: room cleanup first, then presence, then the hub
		s.relay.DropConnection(c.ID)
		s.presence.RemoveConnection(userID, c.ID)
		s.hub.Unregister(c)
	}
}

func (s *Server) readPump(c *Client) {
	defer func() { _ = c.conn.Close() }()
	c.conn.SetReadLimit(s.cfg.WS.MaxMessageSizeBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadDeadline))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			continue
		}
		s.dispatch(c, in)
	}
}

func (s *Server) dispatch(c *Client, in inbound) {
	ctx := context.Background()
	switch in.Event {
	case models.EventJoinRoom:
		var p joinRoomPayload
		if err := json.Unmarshal(in.Data, &p); err != nil {
			return
		}
		if err := s.relay.JoinRoom(ctx, p.RoomID, c.UserID, c.ID); err != nil {
			s.sendError(c, err)
		}

	case models.EventLeaveRoom:
		var p joinRoomPayload
		if err := json.Unmarshal(in.Data, &p); err != nil {
			return
		}
		s.relay.LeaveRoom(p.RoomID, c.UserID, c.ID)

	case models.EventSendMessage:
		var p sendMessagePayload
		if err := json.Unmarshal(in.Data, &p); err != nil {
			return
		}
		if !c.limiter.Allow() {
			s.hub.ToConn(c.ID, models.EventError, models.ErrorEvent{Message: "rate limited"})
			return
		}
		if _, err := s.relay.Send(ctx, p.RoomID, c.UserID, p.Ciphertext, p.Nonce, models.ParseKind(p.Kind)); err != nil {
			s.sendError(c, err)
		}

	case models.EventGetOnlineUsers:
		s.hub.ToConn(c.ID, models.EventOnlineUsers, s.presence.ListOnlineUsers())
	}
}

func (s *Server) sendError(c *Client, err error) {
	s.log.Infow("client event rejected", "user_id", c.UserID, "err", err)
	s.hub.ToConn(c.ID, models.EventError, models.ErrorEvent{Message: err.Error()})
}
