// Package presence derives each user's online/offline state from their
// set of live connections, with a grace window before an offline
// transition so connection flaps never surface.
package presence

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/fathima-sithara/realtime-service/internal/models"
)

const shardCount = 32

// Directory persists the advisory is_online/last_seen fields. Failures
// are logged and never block a presence transition.
type Directory interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string, lastSeen time.Time) error
}

// Mirror replicates presence into a shared store for other instances.
type Mirror interface {
	MirrorOnline(ctx context.Context, userID string) error
	MirrorOffline(ctx context.Context, userID string, lastSeen time.Time) error
}

type Broadcaster interface {
	ToAll(event string, data any)
}

// entry tracks one user's live connections. A user with an entry is
// observably online; an empty conns set with an armed timer is the
// pending-offline state.
type entry struct {
	conns map[string]struct{}
	timer *time.Timer
}

// shard holds the entries for the users hashed onto it. Transitions for
// a user only contend with users on the same shard.
type shard struct {
	mu    sync.Mutex
	users map[string]*entry
}

type Tracker struct {
	shards [shardCount]*shard

	grace  time.Duration
	dir    Directory
	mirror Mirror
	cb     *gobreaker.CircuitBreaker
	b      Broadcaster
	log    *zap.SugaredLogger
}

func NewTracker(grace time.Duration, dir Directory, b Broadcaster, log *zap.SugaredLogger) *Tracker {
	t := &Tracker{
		grace: grace,
		dir:   dir,
		b:     b,
		log:   log,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "presence-directory",
			Timeout: 30 * time.Second,
		}),
	}
	for i := range t.shards {
		t.shards[i] = &shard{users: make(map[string]*entry)}
	}
	return t
}

func (t *Tracker) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return t.shards[h.Sum32()%shardCount]
}

// SetMirror attaches an optional presence mirror (e.g. Redis).
func (t *Tracker) SetMirror(m Mirror) { t.mirror = m }

// AddConnection records a new live connection for the user. The first
// connection (or the first after a completed offline) persists
// is_online and broadcasts user-online; a reconnect during the grace
// window only cancels the pending timer.
func (t *Tracker) AddConnection(userID, connID string) {
	s := t.shardFor(userID)
	s.mu.Lock()
	e, wasOnline := s.users[userID]
	if !wasOnline {
		e = &entry{conns: make(map[string]struct{})}
		s.users[userID] = e
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.conns[connID] = struct{}{}
	s.mu.Unlock()

	if wasOnline {
		return
	}
	t.persistOnline(userID)
	t.b.ToAll(models.EventUserOnline, userID)
}

// RemoveConnection drops a connection. When the last one goes, the
// offline timer is armed; any previously armed timer is replaced so at
// most one exists per user.
func (t *Tracker) RemoveConnection(userID, connID string) {
	s := t.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.users[userID]
	if !ok {
		return
	}
	delete(e.conns, connID)
	if len(e.conns) > 0 {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(t.grace, func() { t.finalizeOffline(userID) })
}

// finalizeOffline runs when the grace window elapses. It re-checks the
// connection set so a reconnect that raced the timer wins.
func (t *Tracker) finalizeOffline(userID string) {
	s := t.shardFor(userID)
	s.mu.Lock()
	e, ok := s.users[userID]
	if !ok || len(e.conns) > 0 {
		s.mu.Unlock()
		return
	}
	e.timer = nil
	delete(s.users, userID)
	s.mu.Unlock()

	lastSeen := time.Now().UTC()
	t.persistOffline(userID, lastSeen)
	t.b.ToAll(models.EventUserOffline, userID)
	t.b.ToAll(models.EventUserLastSeen, models.LastSeenEvent{UserID: userID, LastSeen: lastSeen})
}

// IsOnline reports the externally observable state: true from the first
// connection until the grace window elapses with none left.
func (t *Tracker) IsOnline(userID string) bool {
	s := t.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[userID]
	return ok
}

// ListOnlineUsers returns a point-in-time snapshot of online user ids.
// Each shard is snapshotted in turn, so the list is not a single atomic
// cut across shards.
func (t *Tracker) ListOnlineUsers() []string {
	var out []string
	for _, s := range t.shards {
		s.mu.Lock()
		for uid := range s.users {
			out = append(out, uid)
		}
		s.mu.Unlock()
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func (t *Tracker) persistOnline(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := t.cb.Execute(func() (interface{}, error) {
		return nil, t.dir.SetOnline(ctx, userID)
	}); err != nil {
		t.log.Warnw("failed to persist online flag", "user_id", userID, "err", err)
	}
	if t.mirror != nil {
		if err := t.mirror.MirrorOnline(ctx, userID); err != nil {
			t.log.Warnw("presence mirror online failed", "user_id", userID, "err", err)
		}
	}
}

func (t *Tracker) persistOffline(userID string, lastSeen time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := t.cb.Execute(func() (interface{}, error) {
		return nil, t.dir.SetOffline(ctx, userID, lastSeen)
	}); err != nil {
		t.log.Warnw("failed to persist offline flag", "user_id", userID, "err", err)
	}
	if t.mirror != nil {
		if err := t.mirror.MirrorOffline(ctx, userID, lastSeen); err != nil {
			t.log.Warnw("presence mirror offline failed", "user_id", userID, "err", err)
		}
	}
}
