package service

import (
	"classpulse/internal/model"
	"context"
	"encoding/json"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// fakeRepo is an in-memory stand-in for the Mongo repository. Each method
// mirrors the matching update's filter semantics so silent-rejection paths
// behave the same way they do against the real store.
type fakeRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{sessions: make(map[string]*model.Session)}
}

func cloneSession(s *model.Session) *model.Session {
	if s == nil {
		return nil
	}
	data, _ := json.Marshal(s)
	var c model.Session
	_ = json.Unmarshal(data, &c)
	return &c
}

func (f *fakeRepo) Create(ctx context.Context, session *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.Code] = cloneSession(session)
	return nil
}

func (f *fakeRepo) GetByCode(ctx context.Context, code string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneSession(f.sessions[code]), nil
}

func (f *fakeRepo) GetActive(ctx context.Context, code string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[code]
	if s == nil || !s.Active {
		return nil, nil
	}
	return cloneSession(s), nil
}

func (f *fakeRepo) SetFields(ctx context.Context, code string, fields bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[code]
	if s == nil {
		return nil
	}
	for k, v := range fields {
		switch k {
		case "topic":
			s.Topic = v.(string)
		case "activity":
			s.Activity = v.(model.Activity)
		case "locked":
			s.Locked = v.(bool)
		case "profanityFilter":
			s.ProfanityFilter = v.(bool)
		case "fbPrompt":
			s.FBPrompt = v.(string)
		case "mcq":
			s.MCQ = v.(model.MCQ)
		case "reviews":
			s.Reviews = v.(model.Reviews)
		}
	}
	return nil
}

func (f *fakeRepo) End(ctx context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[code]
	if s == nil {
		return false, nil
	}
	s.Active = false
	s.Activity = model.ActivityNone
	return true, nil
}

func (f *fakeRepo) UpsertParticipant(ctx context.Context, code string, p model.Participant) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[code]
	if s == nil || !s.Active {
		return false, nil
	}
	if existing := s.Participant(p.UserID); existing != nil {
		existing.Name = p.Name
		existing.Avatar = p.Avatar
		return false, nil
	}
	p.XP = 0
	s.Leaderboard = append(s.Leaderboard, p)
	return true, nil
}

func (f *fakeRepo) AddXP(ctx context.Context, code, userID string, delta int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[code]
	if s == nil || !s.Active {
		return false, nil
	}
	p := s.Participant(userID)
	if p == nil {
		return false, nil
	}
	p.XP += delta
	return true, nil
}

func (f *fakeRepo) SetXP(ctx context.Context, code, userID string, xp int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[code]
	if s == nil || !s.Active {
		return false, nil
	}
	p := s.Participant(userID)
	if p == nil {
		return false, nil
	}
	p.XP = xp
	return true, nil
}

func (f *fakeRepo) IncAnswerCount(ctx context.Context, code string, index int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[code]
	if s == nil || !s.Active || index < 0 || index >= len(s.MCQ.Counts) {
		return false, nil
	}
	s.MCQ.Counts[index]++
	return true, nil
}

func (f *fakeRepo) IncWord(ctx context.Context, code, word string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[code]
	if s == nil || !s.Active {
		return nil
	}
	if s.WordCloud == nil {
		s.WordCloud = map[string]int{}
	}
	s.WordCloud[word]++
	return nil
}

func (f *fakeRepo) IncReviewBucket(ctx context.Context, code string, index int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[code]
	if s == nil || !s.Active || index < 0 || index >= len(s.Reviews.Buckets) {
		return false, nil
	}
	s.Reviews.Buckets[index]++
	return true, nil
}

func (f *fakeRepo) PushQuestion(ctx context.Context, code string, item model.QAItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[code]
	if s == nil || !s.Active {
		return nil
	}
	s.QA = append(s.QA, item)
	return nil
}

func (f *fakeRepo) SetQuestionAnswered(ctx context.Context, code string, index int, answered bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[code]
	if s == nil || index < 0 || index >= len(s.QA) {
		return false, nil
	}
	s.QA[index].Answered = answered
	return true, nil
}

func (f *fakeRepo) PushFeedback(ctx context.Context, code string, item model.FeedbackItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[code]
	if s == nil || !s.Active {
		return nil
	}
	s.Feedback = append(s.Feedback, item)
	return nil
}

func (f *fakeRepo) ArmRound(ctx context.Context, code, roundID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[code]
	if s == nil {
		return nil
	}
	s.Activity = model.ActivityMinigame
	s.Minigame.Status = model.RoundArmed
	s.Minigame.RoundID = roundID
	s.Minigame.GoAt = nil
	return nil
}

func (f *fakeRepo) StartRound(ctx context.Context, code string, goAt int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[code]
	if s == nil || s.Minigame.Status != model.RoundArmed {
		return false, nil
	}
	s.Minigame.Status = model.RoundGo
	s.Minigame.GoAt = &goAt
	return true, nil
}

func (f *fakeRepo) EnsureRound(ctx context.Context, code, roundID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[code]
	if s == nil || !s.Active || s.Minigame.RoundID != roundID || s.Minigame.Status != model.RoundGo {
		return nil
	}
	if s.Minigame.Round(roundID) != nil {
		return nil
	}
	s.Minigame.LastResults = append(s.Minigame.LastResults, model.MinigameRound{
		RoundID: roundID,
		Results: []model.HitResult{},
	})
	return nil
}

func (f *fakeRepo) PushHit(ctx context.Context, code, roundID string, result model.HitResult) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[code]
	if s == nil || !s.Active || s.Minigame.RoundID != roundID || s.Minigame.Status != model.RoundGo {
		return false, nil
	}
	round := s.Minigame.Round(roundID)
	if round == nil {
		return false, nil
	}
	for _, r := range round.Results {
		if r.ID == result.ID {
			return false, nil
		}
	}
	round.Results = append(round.Results, result)
	return true, nil
}

// sentMsg is one recorded broadcast or private send.
type sentMsg struct {
	Room    string
	Conn    string
	Type    string
	Payload interface{}
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	msgs []sentMsg
}

func (b *fakeBroadcaster) BroadcastToRoom(roomCode string, msgType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, sentMsg{Room: roomCode, Type: msgType, Payload: payload})
}

func (b *fakeBroadcaster) SendToConn(connID string, msgType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, sentMsg{Conn: connID, Type: msgType, Payload: payload})
}

func (b *fakeBroadcaster) ofType(msgType string) []sentMsg {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []sentMsg
	for _, m := range b.msgs {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func (b *fakeBroadcaster) lastOfType(msgType string) *sentMsg {
	msgs := b.ofType(msgType)
	if len(msgs) == 0 {
		return nil
	}
	return &msgs[len(msgs)-1]
}

func (b *fakeBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = nil
}
