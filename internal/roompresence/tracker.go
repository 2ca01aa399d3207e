// Package roompresence tracks which connections have a room's view
// open. A user is present in a room while at least one of their
// connections is joined to it; presence here drives read receipts.
package roompresence

import (
	"hash/fnv"
	"sync"
)

const shardCount = 16

// shard holds room -> user -> connection-id sets for the rooms hashed
// onto it. Empty users and rooms are pruned to bound memory.
type shard struct {
	mu    sync.RWMutex
	rooms map[string]map[string]map[string]struct{}
}

type Tracker struct {
	shards [shardCount]*shard

	// joined maps a connection to the single room it is in, so a
	// disconnect cleans up without scanning every room.
	joinedMu sync.Mutex
	joined   map[string]joinedRoom
}

type joinedRoom struct {
	roomID string
	userID string
}

func NewTracker() *Tracker {
	t := &Tracker{joined: make(map[string]joinedRoom)}
	for i := range t.shards {
		t.shards[i] = &shard{rooms: make(map[string]map[string]map[string]struct{})}
	}
	return t
}

func (t *Tracker) shardFor(roomID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(roomID))
	return t.shards[h.Sum32()%shardCount]
}

// Join adds the connection to the room. A connection is in at most one
// room; joining a new room leaves the previous one first.
func (t *Tracker) Join(roomID, userID, connID string) {
	t.joinedMu.Lock()
	prev, had := t.joined[connID]
	t.joined[connID] = joinedRoom{roomID: roomID, userID: userID}
	t.joinedMu.Unlock()
	if had && prev.roomID != roomID {
		t.remove(prev.roomID, prev.userID, connID)
	}

	s := t.shardFor(roomID)
	s.mu.Lock()
	defer s.mu.Unlock()
	users, ok := s.rooms[roomID]
	if !ok {
		users = make(map[string]map[string]struct{})
		s.rooms[roomID] = users
	}
	conns, ok := users[userID]
	if !ok {
		conns = make(map[string]struct{})
		users[userID] = conns
	}
	conns[connID] = struct{}{}
}

// Leave removes the connection from the room, pruning empty entries.
func (t *Tracker) Leave(roomID, userID, connID string) {
	t.joinedMu.Lock()
	if j, ok := t.joined[connID]; ok && j.roomID == roomID {
		delete(t.joined, connID)
	}
	t.joinedMu.Unlock()
	t.remove(roomID, userID, connID)
}

// DropConnection removes a dropped connection from whatever room it was
// joined to. A connection that never joined a room is a no-op.
func (t *Tracker) DropConnection(connID string) {
	t.joinedMu.Lock()
	j, ok := t.joined[connID]
	if ok {
		delete(t.joined, connID)
	}
	t.joinedMu.Unlock()
	if !ok {
		return
	}
	t.remove(j.roomID, j.userID, connID)
}

func (t *Tracker) remove(roomID, userID, connID string) {
	s := t.shardFor(roomID)
	s.mu.Lock()
	defer s.mu.Unlock()
	users, ok := s.rooms[roomID]
	if !ok {
		return
	}
	conns, ok := users[userID]
	if !ok {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(users, userID)
	}
	if len(users) == 0 {
		delete(s.rooms, roomID)
	}
}

// IsPresent reports whether the user has at least one connection joined
// to the room.
func (t *Tracker) IsPresent(roomID, userID string) bool {
	s := t.shardFor(roomID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	users, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	return len(users[userID]) > 0
}

// Connections returns every connection id joined to the room.
func (t *Tracker) Connections(roomID string) []string {
	return t.connections(roomID, "")
}

// ConnectionsExcept returns the room's connection ids excluding every
// connection of the given user.
func (t *Tracker) ConnectionsExcept(roomID, userID string) []string {
	return t.connections(roomID, userID)
}

func (t *Tracker) connections(roomID, exceptUser string) []string {
	s := t.shardFor(roomID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	users, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	var out []string
	for uid, conns := range users {
		if exceptUser != "" && uid == exceptUser {
			continue
		}
		for cid := range conns {
			out = append(out, cid)
		}
	}
	return out
}
