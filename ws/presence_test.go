package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ktao/dmhub/convo"
)

func newTestHandler(uid int32, sid string) *Handler {
	return &Handler{
		uid:      uid,
		sid:      sid,
		dataChan: make(chan *ServerMsg, 64),
	}
}

func TestRegisterDeregister(t *testing.T) {
	r := NewRegistry()
	h := newTestHandler(1, "s1")

	assert.False(t, r.IsOnline(1))

	r.Register(h)
	assert.True(t, r.IsOnline(1))
	assert.Equal(t, 1, r.numSessions())

	// idempotent per sid
	r.Register(h)
	assert.Equal(t, 1, r.numSessions())

	assert.True(t, r.Deregister(h))
	assert.False(t, r.IsOnline(1))
	assert.False(t, r.Deregister(h))
}

func TestMultiSessionPresence(t *testing.T) {
	r := NewRegistry()
	h1 := newTestHandler(1, "s1")
	h2 := newTestHandler(1, "s2")

	r.Register(h1)
	r.Register(h2)
	assert.True(t, r.IsOnline(1))
	assert.Len(t, r.User(1), 2)

	// Online until the last session goes away.
	r.Deregister(h1)
	assert.True(t, r.IsOnline(1))
	r.Deregister(h2)
	assert.False(t, r.IsOnline(1))
}

func TestSubscribeUnsubscribe(t *testing.T) {
	r := NewRegistry()
	h := newTestHandler(1, "s1")
	r.Register(h)

	key := convo.KeyOf(1, 2)
	r.Subscribe(h, key)
	assert.Len(t, r.Room(key), 1)

	// Another conversation is unaffected.
	assert.Empty(t, r.Room(convo.KeyOf(1, 3)))

	r.Unsubscribe(h, key)
	assert.Empty(t, r.Room(key))
}

func TestSubscribeRequiresRegistration(t *testing.T) {
	r := NewRegistry()
	h := newTestHandler(1, "s1")

	key := convo.KeyOf(1, 2)
	r.Subscribe(h, key)
	assert.Empty(t, r.Room(key))
}

func TestDeregisterCleansSubscriptions(t *testing.T) {
	r := NewRegistry()
	h := newTestHandler(1, "s1")
	peer := newTestHandler(2, "s2")
	r.Register(h)
	r.Register(peer)

	key := convo.KeyOf(1, 2)
	r.Subscribe(h, key)
	r.Subscribe(peer, key)
	assert.Len(t, r.Room(key), 2)

	r.Deregister(h)
	assert.Len(t, r.Room(key), 1)
	assert.Equal(t, "s2", r.Room(key)[0].sid)
}

func TestRoomSnapshotKeying(t *testing.T) {
	r := NewRegistry()
	h := newTestHandler(1, "s1")
	r.Register(h)

	// Both participants address the same room.
	r.Subscribe(h, convo.KeyOf(2, 1))
	assert.Len(t, r.Room(convo.KeyOf(1, 2)), 1)
}
