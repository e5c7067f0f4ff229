package service

// Broadcaster interface for WebSocket fan-out (avoids import cycle with
// the transport package).
type Broadcaster interface {
	// BroadcastToRoom delivers to every connection joined to the room.
	BroadcastToRoom(roomCode string, msgType string, payload interface{})
	// SendToConn delivers privately to one connection.
	SendToConn(connID string, msgType string, payload interface{})
}

// Outbound event names, shared across services.
const (
	EventState       = "session:state"
	EventEnded       = "session:ended"
	EventLocked      = "session:locked"
	EventLeaderboard = "leaderboard:update"
	EventMCQResult   = "mcq:result"
	EventMGResults   = "mg:results"
	EventMGWin       = "mg:win"
)
