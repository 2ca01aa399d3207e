package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-service/internal/auth"
	"github.com/fathima-sithara/realtime-service/internal/config"
	"github.com/fathima-sithara/realtime-service/internal/models"
	"github.com/fathima-sithara/realtime-service/internal/presence"
	"github.com/fathima-sithara/realtime-service/internal/relay"
	"github.com/fathima-sithara/realtime-service/internal/roompresence"
	"github.com/fathima-sithara/realtime-service/internal/ws"
)

const testSecret = "test-secret"

type fakeConvs struct {
	summaries []*models.ConversationSummary
	clears    []string
	listErr   error
}

func (f *fakeConvs) ListForUser(_ context.Context, _ string) ([]*models.ConversationSummary, error) {
	return f.summaries, f.listErr
}

func (f *fakeConvs) ClearUnread(_ context.Context, roomID, userID string) error {
	f.clears = append(f.clears, roomID+"/"+userID)
	return nil
}

type fakeMsgs struct {
	messages []*models.Message
}

func (f *fakeMsgs) ListByRoom(_ context.Context, _ string, _ int64, _ time.Time) ([]*models.Message, error) {
	return f.messages, nil
}

type fakeMessageStore struct{}

func (fakeMessageStore) Insert(_ context.Context, m *models.Message) (*models.Message, error) {
	return m, nil
}

func (fakeMessageStore) MarkRoomRead(_ context.Context, _, _ string, _ time.Time) (int64, error) {
	return 0, nil
}

type fakeSummaryStore struct{}

func (fakeSummaryStore) Upsert(_ context.Context, _ string, _ []string, _ models.LastMessage, _ time.Time, _ string) error {
	return nil
}

func (fakeSummaryStore) ClearUnread(_ context.Context, _, _ string) error { return nil }

type noopDirectory struct{}

func (noopDirectory) SetOnline(_ context.Context, _ string) error               { return nil }
func (noopDirectory) SetOffline(_ context.Context, _ string, _ time.Time) error { return nil }

func newTestApp(t *testing.T, convs ConversationStore, msgs MessageStore) *fiber.App {
	// Generous limit so ordinary tests never trip the limiter.
	return newTestAppRate(t, convs, msgs, 60000)
}

func newTestAppRate(t *testing.T, convs ConversationStore, msgs MessageStore, perMinute int) *fiber.App {
	t.Helper()
	log := zap.NewNop().Sugar()
	jv, err := auth.NewValidator(testSecret)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.WS.SendRatePerSecond = 10
	cfg.WS.SendBurst = 10
	cfg.WS.MaxMessageSizeBytes = 65536
	cfg.PingInterval = 25 * time.Second
	cfg.WriteDeadline = 10 * time.Second
	cfg.ReadDeadline = 60 * time.Second

	hub := ws.NewHub(log)
	tracker := presence.NewTracker(500*time.Millisecond, noopDirectory{}, hub, log)
	svc := relay.NewService(roompresence.NewTracker(), fakeMessageStore{}, fakeSummaryStore{}, hub, log)
	wsSrv := ws.NewServer(cfg, hub, jv, tracker, svc, log)
	rl := NewIPRateLimiter(perMinute, log)

	return NewServer(wsSrv, convs, msgs, tracker, jv, rl, log)
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	claims := auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, &fakeConvs{}, &fakeMsgs{})

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRESTRequiresAuth(t *testing.T) {
	app := newTestApp(t, &fakeConvs{}, &fakeMsgs{})

	for _, path := range []string{"/v1/conversations", "/v1/rooms/a_b/messages", "/v1/users/online"} {
		res, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode, path)
	}
}

func TestListConversations(t *testing.T) {
	convs := &fakeConvs{summaries: []*models.ConversationSummary{
		{RoomID: "alice_bob", Members: []string{"alice", "bob"}},
	}}
	app := newTestApp(t, convs, &fakeMsgs{})

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set(fiber.HeaderAuthorization, bearer(t, "alice"))
	res, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var out struct {
		Conversations []*models.ConversationSummary `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Conversations, 1)
	assert.Equal(t, "alice_bob", out.Conversations[0].RoomID)
}

func TestRoomMessagesMembershipEnforced(t *testing.T) {
	app := newTestApp(t, &fakeConvs{}, &fakeMsgs{})

	req := httptest.NewRequest(http.MethodGet, "/v1/rooms/alice_bob/messages", nil)
	req.Header.Set(fiber.HeaderAuthorization, bearer(t, "mallory"))
	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/v1/rooms/notaroom/messages", nil)
	req.Header.Set(fiber.HeaderAuthorization, bearer(t, "alice"))
	res, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestRoomMessagesOK(t *testing.T) {
	msgs := &fakeMsgs{messages: []*models.Message{
		{ID: "m1", RoomID: "alice_bob", Sender: "alice", Ciphertext: "ct1", Nonce: "n1"},
	}}
	app := newTestApp(t, &fakeConvs{}, msgs)

	req := httptest.NewRequest(http.MethodGet, "/v1/rooms/alice_bob/messages", nil)
	req.Header.Set(fiber.HeaderAuthorization, bearer(t, "bob"))
	res, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var out struct {
		Messages []*models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Messages, 1)
	// ciphertext and nonce come back untouched
	assert.Equal(t, "ct1", out.Messages[0].Ciphertext)
	assert.Equal(t, "n1", out.Messages[0].Nonce)
}

func TestClearUnread(t *testing.T) {
	convs := &fakeConvs{}
	app := newTestApp(t, convs, &fakeMsgs{})

	req := httptest.NewRequest(http.MethodPost, "/v1/rooms/alice_bob/read", nil)
	req.Header.Set(fiber.HeaderAuthorization, bearer(t, "bob"))
	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []string{"alice_bob/bob"}, convs.clears)
}

func TestRESTRateLimited(t *testing.T) {
	// 60/min yields a refill of one token per second; the burst of 5
	// is exhausted well before any refill lands.
	app := newTestAppRate(t, &fakeConvs{}, &fakeMsgs{}, 60)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/users/online", nil)
		req.Header.Set(fiber.HeaderAuthorization, bearer(t, "alice"))
		res, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode, "request %d", i)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/users/online", nil)
	req.Header.Set(fiber.HeaderAuthorization, bearer(t, "alice"))
	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
}

func TestOnlineUsers(t *testing.T) {
	app := newTestApp(t, &fakeConvs{}, &fakeMsgs{})

	req := httptest.NewRequest(http.MethodGet, "/v1/users/online", nil)
	req.Header.Set(fiber.HeaderAuthorization, bearer(t, "alice"))
	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
