package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-service/internal/apperr"
	"github.com/fathima-sithara/realtime-service/internal/auth"
	"github.com/fathima-sithara/realtime-service/internal/models"
	"github.com/fathima-sithara/realtime-service/internal/room"
	"github.com/fathima-sithara/realtime-service/internal/ws"
)

type ConversationStore interface {
	ListForUser(ctx context.Context, userID string) ([]*models.ConversationSummary, error)
	ClearUnread(ctx context.Context, roomID, userID string) error
}

type MessageStore interface {
	ListByRoom(ctx context.Context, roomID string, limit int64, before time.Time) ([]*models.Message, error)
}

type PresenceSource interface {
	ListOnlineUsers() []string
}

type Server struct {
	convs ConversationStore
	msgs  MessageStore
	pres  PresenceSource
	jv    *auth.Validator
	log   *zap.SugaredLogger
}

// NewServer wires the REST surface and the websocket upgrade endpoint.
func NewServer(wsrv *ws.Server, convs ConversationStore, msgs MessageStore, pres PresenceSource, jv *auth.Validator, rl *IPRateLimiter, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New()
	app.Use(fiberlogger.New())
	s := &Server{convs: convs, msgs: msgs, pres: pres, jv: jv, log: log}

	v1 := app.Group("/v1")

	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	v1.Get("/ws", websocket.New(wsrv.Handle()))

	protected := v1.Group("/", s.requireAuth, rl.Handler())
	protected.Get("/conversations", s.listConversations)
	protected.Get("/rooms/:room_id/messages", s.getRoomMessages)
	protected.Post("/rooms/:room_id/read", s.clearUnread)
	protected.Get("/users/online", s.onlineUsers)

	return app
}

func (s *Server) requireAuth(c *fiber.Ctx) error {
	token, err := auth.ParseBearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": apperr.ErrUnauthorized.Error()})
	}
	userID, err := s.jv.Validate(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": apperr.ErrUnauthorized.Error()})
	}
	c.Locals("user_id", userID)
	return c.Next()
}

func (s *Server) listConversations(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	convs, err := s.convs.ListForUser(c.Context(), userID)
	if err != nil {
		s.log.Errorw("list conversations failed", "user_id", userID, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": apperr.ErrInternal.Error()})
	}
	if convs == nil {
		convs = []*models.ConversationSummary{}
	}
	return c.JSON(fiber.Map{"status": "success", "conversations": convs})
}

func (s *Server) getRoomMessages(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	roomID := c.Params("room_id")
	if err := s.requireMember(roomID, userID); err != nil {
		return s.reject(c, err)
	}

	limit := int64(c.QueryInt("limit", 50))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var before time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "before must be RFC3339"})
		}
		before = t
	}

	msgs, err := s.msgs.ListByRoom(c.Context(), roomID, limit, before)
	if err != nil {
		s.log.Errorw("list messages failed", "room_id", roomID, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": apperr.ErrInternal.Error()})
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	return c.JSON(fiber.Map{"status": "success", "messages": msgs})
}

func (s *Server) clearUnread(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	roomID := c.Params("room_id")
	if err := s.requireMember(roomID, userID); err != nil {
		return s.reject(c, err)
	}
	if err := s.convs.ClearUnread(c.Context(), roomID, userID); err != nil {
		s.log.Errorw("clear unread failed", "room_id", roomID, "user_id", userID, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": apperr.ErrInternal.Error()})
	}
	return c.JSON(fiber.Map{"status": "success"})
}

func (s *Server) onlineUsers(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "success", "users": s.pres.ListOnlineUsers()})
}

func (s *Server) requireMember(roomID, userID string) error {
	if _, _, err := room.Parse(roomID); err != nil {
		return err
	}
	if !room.IsMember(roomID, userID) {
		return apperr.ErrForbidden
	}
	return nil
}

func (s *Server) reject(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, apperr.ErrInvalidRoom):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, apperr.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": apperr.ErrForbidden.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": apperr.ErrInternal.Error()})
	}
}
