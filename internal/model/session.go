package model

import "time"

// Activity identifies which interaction mode is currently live in a room.
type Activity string

const (
	ActivityNone      Activity = ""
	ActivityMCQ       Activity = "mcq"
	ActivityWordCloud Activity = "wordcloud"
	ActivityReviews   Activity = "reviews"
	ActivityQA        Activity = "qa"
	ActivityFeedback  Activity = "feedback"
	ActivityMinigame  Activity = "minigame"
)

// ValidActivity reports whether a is one of the known activity tags.
func ValidActivity(a Activity) bool {
	switch a {
	case ActivityNone, ActivityMCQ, ActivityWordCloud, ActivityReviews,
		ActivityQA, ActivityFeedback, ActivityMinigame:
		return true
	}
	return false
}

// ReviewStyle selects the visual style of a review prompt.
type ReviewStyle string

const (
	ReviewStars ReviewStyle = "stars"
	ReviewEmoji ReviewStyle = "emoji"
)

// RoundStatus is the mini-game round state. Rounds progress armed -> go;
// re-arming starts a fresh round under a new round id.
type RoundStatus string

const (
	RoundIdle  RoundStatus = "idle"
	RoundArmed RoundStatus = "armed"
	RoundGo    RoundStatus = "go"
)

// Participant is one joined student, ranked by cumulative XP.
type Participant struct {
	UserID string `json:"userId" bson:"userId"`
	Name   string `json:"name" bson:"name"`
	Avatar string `json:"avatar" bson:"avatar"` // base64 PNG from canvas
	XP     int    `json:"xp" bson:"xp"`
}

// MCQOption is a single answer choice.
type MCQOption struct {
	Text string `json:"text" bson:"text"`
}

// MCQ holds the currently published multiple-choice question.
// Invariant: Counts is always sized to Options.
type MCQ struct {
	Question     string      `json:"question" bson:"question"`
	Options      []MCQOption `json:"options" bson:"options"`
	CorrectIndex *int        `json:"correctIndex" bson:"correctIndex"`
	Counts       []int       `json:"counts" bson:"counts"`
}

// Reviews tallies star/emoji votes. Buckets[i] counts votes of value i+1.
type Reviews struct {
	Scale   int         `json:"scale" bson:"scale"` // 3..5
	Style   ReviewStyle `json:"style" bson:"style"`
	Buckets []int       `json:"buckets" bson:"buckets"`
}

// QAItem is one submitted question. Append-only except the Answered flag.
type QAItem struct {
	Text       string `json:"text" bson:"text"`
	FromUserID string `json:"fromUserId" bson:"fromUserId"`
	Answered   bool   `json:"answered" bson:"answered"`
	Up         int    `json:"up" bson:"up"`
}

// FeedbackItem is one open-feedback submission.
type FeedbackItem struct {
	Text       string `json:"text" bson:"text"`
	FromUserID string `json:"fromUserId" bson:"fromUserId"`
}

// HitResult is one participant's reaction-time entry within a round.
type HitResult struct {
	ID     string  `json:"id" bson:"id"`
	Name   string  `json:"name" bson:"name"`
	Avatar string  `json:"avatar" bson:"avatar"`
	Time   float64 `json:"time" bson:"time"`
}

// MinigameRound is the accumulated result list for one round id.
type MinigameRound struct {
	RoundID string      `json:"roundId" bson:"roundId"`
	Results []HitResult `json:"results" bson:"results"`
}

// Minigame is the reaction-dash state for a room. LastResults accumulates
// one entry per round that received at least one hit.
type Minigame struct {
	Status      RoundStatus     `json:"status" bson:"status"`
	RoundID     string          `json:"roundId" bson:"roundId"`
	GoAt        *int64          `json:"goAt" bson:"goAt"`
	LastResults []MinigameRound `json:"lastResults" bson:"lastResults"`
}

// Session is the root aggregate for one live room, keyed by its code.
// It is the sole unit of consistency: handlers mutate it through atomic
// field-level store operations and broadcast a fresh copy afterwards.
type Session struct {
	ID     string `json:"id,omitempty" bson:"_id,omitempty"`
	Code   string `json:"code" bson:"code"`
	Topic  string `json:"topic" bson:"topic"`
	Active bool   `json:"isActive" bson:"isActive"`
	Locked bool   `json:"locked" bson:"locked"`

	Activity Activity `json:"activity" bson:"activity"`

	MCQ MCQ `json:"mcq" bson:"mcq"`

	ProfanityFilter bool           `json:"profanityFilter" bson:"profanityFilter"`
	WordCloud       map[string]int `json:"wordcloud" bson:"wordcloud"`

	Reviews Reviews `json:"reviews" bson:"reviews"`

	QA       []QAItem       `json:"qa" bson:"qa"`
	Feedback []FeedbackItem `json:"feedback" bson:"feedback"`
	FBPrompt string         `json:"fbPrompt" bson:"fbPrompt"`

	Minigame Minigame `json:"minigame" bson:"minigame"`

	Leaderboard []Participant `json:"leaderboard" bson:"leaderboard"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// DefaultReviewScale applies when a session is created or a reviews
// activity opens without a usable scale.
const DefaultReviewScale = 5

// NewSession builds a fresh active session with default sub-state.
func NewSession(code, topic string) *Session {
	now := time.Now()
	return &Session{
		Code:            code,
		Topic:           topic,
		Active:          true,
		Activity:        ActivityNone,
		ProfanityFilter: true,
		WordCloud:       map[string]int{},
		Reviews: Reviews{
			Scale:   DefaultReviewScale,
			Style:   ReviewStars,
			Buckets: make([]int, DefaultReviewScale),
		},
		QA:       []QAItem{},
		Feedback: []FeedbackItem{},
		Minigame: Minigame{
			Status:      RoundIdle,
			LastResults: []MinigameRound{},
		},
		Leaderboard: []Participant{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Participant returns the leaderboard entry for userID, or nil.
func (s *Session) Participant(userID string) *Participant {
	for i := range s.Leaderboard {
		if s.Leaderboard[i].UserID == userID {
			return &s.Leaderboard[i]
		}
	}
	return nil
}

// Round returns the accumulated round for roundID, or nil.
func (m *Minigame) Round(roundID string) *MinigameRound {
	for i := range m.LastResults {
		if m.LastResults[i].RoundID == roundID {
			return &m.LastResults[i]
		}
	}
	return nil
}
