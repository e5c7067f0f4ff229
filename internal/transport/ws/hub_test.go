package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn(id string) *Connection {
	return &Connection{
		ID:     id,
		UserID: "user-" + id,
		Send:   make(chan []byte, 16),
	}
}

func receive(t *testing.T, conn *Connection) *Message {
	t.Helper()
	select {
	case data := <-conn.Send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return &msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func assertNoMessage(t *testing.T, conn *Connection) {
	t.Helper()
	select {
	case data := <-conn.Send:
		t.Fatalf("unexpected message: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()

	a := newTestConn("a")
	b := newTestConn("b")
	outsider := newTestConn("c")

	hub.Register(a)
	hub.Register(b)
	hub.Register(outsider)
	hub.Join(a, "ROOM")
	hub.Join(b, "ROOM")
	hub.Join(outsider, "OTHER")

	hub.BroadcastToRoom("ROOM", "session:state", map[string]string{"topic": "bio"})

	for _, conn := range []*Connection{a, b} {
		msg := receive(t, conn)
		assert.Equal(t, "session:state", msg.Type)
		assert.JSONEq(t, `{"topic":"bio"}`, string(msg.Payload))
	}
	assertNoMessage(t, outsider)
}

func TestHubSendToConn(t *testing.T) {
	hub := NewHub()

	a := newTestConn("a")
	b := newTestConn("b")
	hub.Register(a)
	hub.Register(b)
	hub.Join(a, "ROOM")
	hub.Join(b, "ROOM")

	hub.SendToConn("a", "mg:win", nil)

	msg := receive(t, a)
	assert.Equal(t, "mg:win", msg.Type)
	assertNoMessage(t, b)
}

func TestHubMembership(t *testing.T) {
	t.Run("join moves a connection between rooms", func(t *testing.T) {
		hub := NewHub()
		a := newTestConn("a")
		hub.Register(a)

		hub.Join(a, "R1")
		assert.Equal(t, 1, hub.RoomSize("R1"))

		hub.Join(a, "R2")
		assert.Equal(t, 0, hub.RoomSize("R1"))
		assert.Equal(t, 1, hub.RoomSize("R2"))
		assert.Equal(t, "R2", a.RoomCode)
	})

	t.Run("leave removes room membership only", func(t *testing.T) {
		hub := NewHub()
		a := newTestConn("a")
		hub.Register(a)
		hub.Join(a, "R1")

		hub.Leave(a)

		assert.Equal(t, 0, hub.RoomSize("R1"))

		// Still registered: private sends keep working.
		hub.SendToConn("a", "ack", map[string]bool{"ok": true})
		msg := receive(t, a)
		assert.Equal(t, "ack", msg.Type)
	})

	t.Run("unregister drops the connection and its room", func(t *testing.T) {
		hub := NewHub()
		a := newTestConn("a")
		b := newTestConn("b")
		hub.Register(a)
		hub.Register(b)
		hub.Join(a, "R1")
		hub.Join(b, "R1")

		hub.Unregister(a)

		assert.Equal(t, 1, hub.RoomSize("R1"))

		hub.BroadcastToRoom("R1", "session:state", nil)
		msg := receive(t, b)
		assert.Equal(t, "session:state", msg.Type)
	})
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	a := &Connection{ID: "a", Send: make(chan []byte, 1)}
	hub.Register(a)
	hub.Join(a, "R1")

	// Nobody reads the connection, so only the first message fits; the
	// second is dropped rather than blocking the hub.
	hub.BroadcastToRoom("R1", "first", nil)
	hub.BroadcastToRoom("R1", "second", nil)
	time.Sleep(100 * time.Millisecond)

	msg := receive(t, a)
	require.Equal(t, "first", msg.Type)
	assertNoMessage(t, a)
}
