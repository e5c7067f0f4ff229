package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// Message is the WebSocket envelope format.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	AckID   string          `json:"ackId,omitempty"`
}

// Connection represents one WebSocket connection. Room membership is
// established after the handshake, when the connection creates or joins a
// room.
type Connection struct {
	ID       string
	UserID   string
	Name     string
	Avatar   string
	RoomCode string
	Send     chan []byte
	Hub      *Hub
}

// BroadcastMessage is a queued fan-out request.
type BroadcastMessage struct {
	RoomCode string
	ToConn   string // non-empty targets a single connection
	Message  *Message
}

// Hub tracks which connections belong to which room and fans messages out
// to them. It is constructed once at startup and passed by reference to
// every handler; fan-out is serialized through its run loop, and sends
// never block (messages drop when a connection's buffer is full).
//
// Disconnection only removes the connection from its room; session data is
// never touched, so a participant can rejoin under the same userId.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Connection            // connID -> connection
	rooms map[string]map[string]*Connection // roomCode -> connID -> connection

	broadcast chan *BroadcastMessage
}

// NewHub creates the hub and starts its fan-out loop.
func NewHub() *Hub {
	h := &Hub{
		conns:     make(map[string]*Connection),
		rooms:     make(map[string]map[string]*Connection),
		broadcast: make(chan *BroadcastMessage, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for msg := range h.broadcast {
		data, err := json.Marshal(msg.Message)
		if err != nil {
			log.Printf("failed to marshal %s message: %v", msg.Message.Type, err)
			continue
		}

		h.mu.RLock()
		if msg.ToConn != "" {
			if conn, ok := h.conns[msg.ToConn]; ok {
				conn.trySend(data)
			}
		} else if members, ok := h.rooms[msg.RoomCode]; ok {
			for _, conn := range members {
				conn.trySend(data)
			}
		}
		h.mu.RUnlock()
	}
}

func (c *Connection) trySend(data []byte) {
	select {
	case c.Send <- data:
	default:
		// Drop when the buffer is full.
	}
}

// Register adds a freshly upgraded connection.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.mu.Unlock()
	log.Printf("connection %s registered (user %s)", conn.ID, conn.UserID)
}

// Unregister drops the connection and its room membership.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	if existing, ok := h.conns[conn.ID]; ok && existing == conn {
		delete(h.conns, conn.ID)
		h.removeFromRoom(conn)
		close(conn.Send)
		log.Printf("connection %s unregistered", conn.ID)
	}
	h.mu.Unlock()
}

// Join moves the connection into a room, leaving any previous one.
func (h *Hub) Join(conn *Connection, roomCode string) {
	h.mu.Lock()
	h.removeFromRoom(conn)
	if h.rooms[roomCode] == nil {
		h.rooms[roomCode] = make(map[string]*Connection)
	}
	h.rooms[roomCode][conn.ID] = conn
	conn.RoomCode = roomCode
	h.mu.Unlock()
}

// Leave removes the connection from its current room.
func (h *Hub) Leave(conn *Connection) {
	h.mu.Lock()
	h.removeFromRoom(conn)
	h.mu.Unlock()
}

// removeFromRoom is called with the lock held.
func (h *Hub) removeFromRoom(conn *Connection) {
	if conn.RoomCode == "" {
		return
	}
	if members, ok := h.rooms[conn.RoomCode]; ok {
		delete(members, conn.ID)
		if len(members) == 0 {
			delete(h.rooms, conn.RoomCode)
		}
	}
	conn.RoomCode = ""
}

// RoomSize reports how many connections are joined to a room.
func (h *Hub) RoomSize(roomCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomCode])
}

// BroadcastToRoom sends a message to every connection in a room
// (implements service.Broadcaster).
func (h *Hub) BroadcastToRoom(roomCode string, msgType string, payload interface{}) {
	h.enqueue(&BroadcastMessage{
		RoomCode: roomCode,
		Message:  newMessage(msgType, payload),
	})
}

// SendToConn sends a message to a single connection (implements
// service.Broadcaster).
func (h *Hub) SendToConn(connID string, msgType string, payload interface{}) {
	h.enqueue(&BroadcastMessage{
		ToConn:  connID,
		Message: newMessage(msgType, payload),
	})
}

func (h *Hub) enqueue(msg *BroadcastMessage) {
	select {
	case h.broadcast <- msg:
	default:
		log.Printf("broadcast queue full, dropping %s for room %s", msg.Message.Type, msg.RoomCode)
	}
}

func newMessage(msgType string, payload interface{}) *Message {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("failed to marshal payload for %s: %v", msgType, err)
		} else {
			raw = data
		}
	}
	return &Message{Type: msgType, Payload: raw}
}
