package ws

import (
	"classpulse/internal/model"
	"classpulse/internal/service"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// Join payloads carry base64 avatars.
	maxMessageSize = 256 << 10
)

// Inbound event names.
const (
	evtCreate       = "teacher:create"
	evtEnd          = "teacher:end"
	evtSetTopic     = "session:setTopic"
	evtSetActivity  = "session:setActivity"
	evtSetLocked    = "session:setLocked"
	evtJoin         = "student:join"
	evtMCQPublish   = "mcq:publish"
	evtMCQAnswer    = "mcq:answer"
	evtWord         = "wc:word"
	evtWordFilter   = "wc:setFilter"
	evtReviewsOpen  = "reviews:open"
	evtReviewSubmit = "reviews:submit"
	evtQAAsk        = "qa:ask"
	evtQAMark       = "qa:markAnswered"
	evtFBPrompt     = "fb:setPrompt"
	evtFBSubmit     = "fb:submit"
	evtMGNew        = "mg:new"
	evtMGStart      = "mg:start"
	evtMGHit        = "mg:hit"
	evtXPSet        = "xp:set"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced at the REST layer
	},
}

// eventPayload covers every inbound event. Numeric fields stay untyped so
// malformed values can be coerced instead of failing the whole envelope.
type eventPayload struct {
	Code         string      `json:"code"`
	Topic        string      `json:"topic"`
	Activity     string      `json:"activity"`
	Locked       bool        `json:"locked"`
	Name         string      `json:"name"`
	Avatar       string      `json:"avatar"`
	Question     string      `json:"question"`
	Options      []string    `json:"options"`
	CorrectIndex interface{} `json:"correctIndex"`
	Index        interface{} `json:"index"`
	Word         string      `json:"word"`
	On           bool        `json:"on"`
	Scale        interface{} `json:"scale"`
	Style        string      `json:"style"`
	Value        interface{} `json:"value"`
	Text         string      `json:"text"`
	Answered     bool        `json:"answered"`
	Prompt       string      `json:"prompt"`
	RoundID      string      `json:"roundId"`
	GoAt         interface{} `json:"goAt"`
	Time         interface{} `json:"time"`
	XP           interface{} `json:"xp"`
}

type ackPayload struct {
	AckID  string `json:"ackId"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	UserID string `json:"userId,omitempty"`
}

// Handler upgrades connections and dispatches room events to the services.
type Handler struct {
	hub            *Hub
	sessionSvc     *service.SessionService
	participantSvc *service.ParticipantService
	activitySvc    *service.ActivityService
	minigameSvc    *service.MinigameService
}

// NewHandler creates a new WebSocket handler.
func NewHandler(
	hub *Hub,
	sessionSvc *service.SessionService,
	participantSvc *service.ParticipantService,
	activitySvc *service.ActivityService,
	minigameSvc *service.MinigameService,
) *Handler {
	return &Handler{
		hub:            hub,
		sessionSvc:     sessionSvc,
		participantSvc: participantSvc,
		activitySvc:    activitySvc,
		minigameSvc:    minigameSvc,
	}
}

// ServeWS handles GET /ws. Identity is self-asserted: userId, name and
// avatar ride in as query parameters; a missing userId gets a generated
// one, mirroring connections identified by their socket id.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = uuid.New().String()
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	conn := &Connection{
		ID:     uuid.New().String(),
		UserID: userID,
		Name:   r.URL.Query().Get("name"),
		Avatar: r.URL.Query().Get("avatar"),
		Send:   make(chan []byte, 256),
		Hub:    h.hub,
	}

	h.hub.Register(conn)

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.hub.Unregister(conn)
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("dropping unparseable message from %s: %v", conn.ID, err)
			continue
		}
		h.dispatch(conn, &msg)
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch routes one inbound event. Participant events fail silently;
// presenter commands that carry an ackId get an explicit result back.
func (h *Handler) dispatch(conn *Connection, msg *Message) {
	ctx := context.Background()

	var p eventPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			log.Printf("dropping %s with unparseable payload: %v", msg.Type, err)
			return
		}
	}

	switch msg.Type {
	case evtCreate:
		h.hub.Join(conn, p.Code)
		if _, err := h.sessionSvc.Create(ctx, p.Code, p.Topic); err != nil {
			h.hub.Leave(conn)
			h.ack(conn, msg, err)
			return
		}
		h.ack(conn, msg, nil)

	case evtEnd:
		h.ack(conn, msg, h.sessionSvc.End(ctx, p.Code))

	case evtSetTopic:
		h.logErr(msg.Type, h.sessionSvc.SetTopic(ctx, p.Code, p.Topic))

	case evtSetActivity:
		h.logErr(msg.Type, h.sessionSvc.SetActivity(ctx, p.Code, model.Activity(p.Activity)))

	case evtSetLocked:
		h.logErr(msg.Type, h.sessionSvc.SetLocked(ctx, p.Code, p.Locked))

	case evtJoin:
		name := p.Name
		if name == "" {
			name = conn.Name
		}
		avatar := p.Avatar
		if avatar == "" {
			avatar = conn.Avatar
		}
		h.hub.Join(conn, p.Code)
		if _, err := h.participantSvc.Join(ctx, conn.ID, p.Code, conn.UserID, name, avatar); err != nil {
			h.hub.Leave(conn)
			h.ack(conn, msg, err)
			return
		}
		h.ackJoined(conn, msg)

	case evtMCQPublish:
		h.logErr(msg.Type, h.sessionSvc.PublishMCQ(ctx, p.Code, p.Question, p.Options, asIntPtr(p.CorrectIndex)))

	case evtMCQAnswer:
		h.logErr(msg.Type, h.activitySvc.AnswerMCQ(ctx, conn.ID, p.Code, conn.UserID, asInt(p.Index, 0)))

	case evtWord:
		h.logErr(msg.Type, h.activitySvc.SubmitWord(ctx, p.Code, conn.UserID, p.Word))

	case evtWordFilter:
		h.logErr(msg.Type, h.sessionSvc.SetWordFilter(ctx, p.Code, p.On))

	case evtReviewsOpen:
		h.logErr(msg.Type, h.sessionSvc.OpenReviews(ctx, p.Code, asInt(p.Scale, model.DefaultReviewScale), model.ReviewStyle(p.Style)))

	case evtReviewSubmit:
		h.logErr(msg.Type, h.activitySvc.SubmitReview(ctx, p.Code, conn.UserID, asInt(p.Value, 1)))

	case evtQAAsk:
		h.logErr(msg.Type, h.activitySvc.AskQuestion(ctx, p.Code, conn.UserID, p.Text))

	case evtQAMark:
		h.logErr(msg.Type, h.activitySvc.MarkAnswered(ctx, p.Code, asInt(p.Index, -1), p.Answered))

	case evtFBPrompt:
		h.logErr(msg.Type, h.sessionSvc.SetFeedbackPrompt(ctx, p.Code, p.Prompt))

	case evtFBSubmit:
		h.logErr(msg.Type, h.activitySvc.SubmitFeedback(ctx, p.Code, conn.UserID, p.Text))

	case evtMGNew:
		h.logErr(msg.Type, h.minigameSvc.NewRound(ctx, p.Code, p.RoundID))

	case evtMGStart:
		h.logErr(msg.Type, h.minigameSvc.Start(ctx, p.Code, asInt64(p.GoAt, time.Now().UnixMilli())))

	case evtMGHit:
		name := p.Name
		if name == "" {
			name = conn.Name
		}
		avatar := p.Avatar
		if avatar == "" {
			avatar = conn.Avatar
		}
		h.logErr(msg.Type, h.minigameSvc.Hit(ctx, conn.ID, p.Code, p.RoundID, conn.UserID, name, avatar,
			asFloat(p.Time, service.SentinelTime)))

	case evtXPSet:
		h.logErr(msg.Type, h.activitySvc.SetXP(ctx, p.Code, conn.UserID, asInt(p.XP, 0)))

	default:
		log.Printf("ignoring unknown event %q from %s", msg.Type, conn.ID)
	}
}

func (h *Handler) ack(conn *Connection, msg *Message, err error) {
	if msg.AckID == "" {
		if err != nil {
			log.Printf("%s failed: %v", msg.Type, err)
		}
		return
	}
	res := ackPayload{AckID: msg.AckID, OK: err == nil}
	if err != nil {
		res.Error = err.Error()
	}
	h.hub.SendToConn(conn.ID, "ack", res)
}

// ackJoined confirms a join and echoes the resolved userId back.
func (h *Handler) ackJoined(conn *Connection, msg *Message) {
	if msg.AckID == "" {
		return
	}
	h.hub.SendToConn(conn.ID, "ack", ackPayload{
		AckID:  msg.AckID,
		OK:     true,
		UserID: conn.UserID,
	})
}

func (h *Handler) logErr(event string, err error) {
	if err != nil {
		log.Printf("%s failed: %v", event, err)
	}
}
