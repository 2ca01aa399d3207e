// Package redisstore mirrors presence into Redis and exposes pub/sub so
// sibling instances can route broadcasts to their own sockets.
// Keys:
//
//	<prefix>:presence:<userID> -> json {status,last_seen}
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
	prefix string
}

func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "rt"
	}
	return &Store{client: client, prefix: prefix}
}

type presenceDoc struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

func (s *Store) presenceKey(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

func (s *Store) MirrorOnline(ctx context.Context, userID string) error {
	b, _ := json.Marshal(presenceDoc{Status: "online", LastSeen: time.Now().Unix()})
	return s.client.Set(ctx, s.presenceKey(userID), b, 0).Err()
}

func (s *Store) MirrorOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	b, _ := json.Marshal(presenceDoc{Status: "offline", LastSeen: lastSeen.Unix()})
	return s.client.Set(ctx, s.presenceKey(userID), b, 0).Err()
}

// Publish forwards an already-encoded event envelope to a channel so
// other instances can deliver it to their local connections.
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	return s.client.Publish(ctx, s.prefix+":"+channel, payload).Err()
}

func (s *Store) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	prefixed := make([]string, len(channels))
	for i, c := range channels {
		prefixed[i] = s.prefix + ":" + c
	}
	return s.client.Subscribe(ctx, prefixed...)
}
