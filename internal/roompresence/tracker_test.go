package roompresence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinMakesPresent(t *testing.T) {
	tr := NewTracker()
	tr.Join("a_b", "a", "c1")

	assert.True(t, tr.IsPresent("a_b", "a"))
	assert.False(t, tr.IsPresent("a_b", "b"))
	assert.False(t, tr.IsPresent("other", "a"))
}

func TestPresentWhileAnyConnectionRemains(t *testing.T) {
	tr := NewTracker()
	tr.Join("a_b", "a", "c1")
	tr.Join("a_b", "a", "c2")

	tr.Leave("a_b", "a", "c1")
	assert.True(t, tr.IsPresent("a_b", "a"))

	tr.Leave("a_b", "a", "c2")
	assert.False(t, tr.IsPresent("a_b", "a"))
}

func TestLeavePrunesEmptyRoom(t *testing.T) {
	tr := NewTracker()
	tr.Join("a_b", "a", "c1")
	tr.Leave("a_b", "a", "c1")

	s := tr.shardFor("a_b")
	s.mu.RLock()
	_, ok := s.rooms["a_b"]
	s.mu.RUnlock()
	assert.False(t, ok)
}

func TestDropConnectionCleansUp(t *testing.T) {
	tr := NewTracker()
	tr.Join("a_b", "a", "c1")
	tr.Join("a_b", "b", "c2")

	tr.DropConnection("c1")

	assert.False(t, tr.IsPresent("a_b", "a"))
	assert.True(t, tr.IsPresent("a_b", "b"))
}

func TestDropConnectionNeverJoined(t *testing.T) {
	tr := NewTracker()
	tr.DropConnection("ghost")
	assert.False(t, tr.IsPresent("a_b", "a"))
}

func TestJoinSecondRoomLeavesFirst(t *testing.T) {
	tr := NewTracker()
	tr.Join("a_b", "a", "c1")
	tr.Join("a_c", "a", "c1")

	assert.False(t, tr.IsPresent("a_b", "a"))
	assert.True(t, tr.IsPresent("a_c", "a"))
}

func TestConnections(t *testing.T) {
	tr := NewTracker()
	tr.Join("a_b", "a", "c1")
	tr.Join("a_b", "a", "c2")
	tr.Join("a_b", "b", "c3")

	assert.ElementsMatch(t, []string{"c1", "c2", "c3"}, tr.Connections("a_b"))
	assert.ElementsMatch(t, []string{"c3"}, tr.ConnectionsExcept("a_b", "a"))
	assert.Empty(t, tr.Connections("empty"))
}
