package service

import (
	"classpulse/internal/cache"
	"classpulse/internal/model"
	"classpulse/internal/repository"
	"classpulse/internal/sanitize"
	"context"
	"log"
	"strings"
)

// ActivityService handles participant submissions for the live activities.
// Failures on participant-originated events are silent: no state change,
// no broadcast, no error detail leaks back to the submitter.
type ActivityService struct {
	repo        repository.SessionRepo
	leaderboard cache.LeaderboardCache
	broadcaster Broadcaster
}

// NewActivityService creates a new activity service.
func NewActivityService(repo repository.SessionRepo, leaderboard cache.LeaderboardCache) *ActivityService {
	return &ActivityService{
		repo:        repo,
		leaderboard: leaderboard,
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events.
func (s *ActivityService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// AnswerMCQ records one vote for an option and scores the participant.
// The correctness verdict goes privately to the submitting connection.
func (s *ActivityService) AnswerMCQ(ctx context.Context, connID, code, userID string, index int) error {
	session, err := s.repo.GetActive(ctx, code)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	ok, err := s.repo.IncAnswerCount(ctx, code, index)
	if err != nil {
		return err
	}
	if !ok {
		// Option index outside the published ballot.
		return nil
	}

	correct := session.MCQ.CorrectIndex != nil && index == *session.MCQ.CorrectIndex
	xp := XPMCQAnswer
	if correct {
		xp += XPMCQCorrect
	}
	s.award(ctx, code, userID, xp)

	if err := s.refresh(ctx, code, true); err != nil {
		return err
	}
	if s.broadcaster != nil {
		s.broadcaster.SendToConn(connID, EventMCQResult, map[string]bool{"correct": correct})
	}
	return nil
}

// SubmitWord adds one occurrence of a word to the cloud. Words that trip
// the profanity filter are dropped without acknowledgement.
func (s *ActivityService) SubmitWord(ctx context.Context, code, userID, word string) error {
	session, err := s.repo.GetActive(ctx, code)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	w := strings.ToLower(sanitize.Clean(word, 40))
	// Words become Mongo field names under wordcloud.*, so path
	// characters cannot be kept.
	w = strings.NewReplacer(".", "", "$", "").Replace(w)
	if w == "" {
		return nil
	}
	if session.ProfanityFilter && sanitize.HasProfanity(w) {
		return nil
	}

	if err := s.repo.IncWord(ctx, code, w); err != nil {
		return err
	}
	s.award(ctx, code, userID, XPWord)
	return s.refresh(ctx, code, true)
}

// SubmitReview clamps the vote into [1, scale] and buckets it. A vote of 0
// lands in bucket 1; scale+1 lands in the top bucket.
func (s *ActivityService) SubmitReview(ctx context.Context, code, userID string, value int) error {
	session, err := s.repo.GetActive(ctx, code)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	scale := session.Reviews.Scale
	if scale < 1 {
		scale = model.DefaultReviewScale
	}
	if value < 1 {
		value = 1
	}
	if value > scale {
		value = scale
	}

	if _, err := s.repo.IncReviewBucket(ctx, code, value-1); err != nil {
		return err
	}
	s.award(ctx, code, userID, XPReview)
	return s.refresh(ctx, code, true)
}

// AskQuestion appends a Q&A item.
func (s *ActivityService) AskQuestion(ctx context.Context, code, userID, text string) error {
	session, err := s.repo.GetActive(ctx, code)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	item := model.QAItem{
		Text:       sanitize.Clean(text, 200),
		FromUserID: userID,
	}
	if err := s.repo.PushQuestion(ctx, code, item); err != nil {
		return err
	}
	s.award(ctx, code, userID, XPQuestion)
	return s.refresh(ctx, code, true)
}

// MarkAnswered flags a question. Presenters can tidy the list after the
// session ended, so this works regardless of active state and awards
// nothing.
func (s *ActivityService) MarkAnswered(ctx context.Context, code string, index int, answered bool) error {
	ok, err := s.repo.SetQuestionAnswered(ctx, code, index, answered)
	if err != nil || !ok {
		return err
	}
	session, err := s.repo.GetByCode(ctx, code)
	if err != nil || session == nil {
		return err
	}
	broadcastState(s.broadcaster, session)
	return nil
}

// SubmitFeedback appends a feedback item.
func (s *ActivityService) SubmitFeedback(ctx context.Context, code, userID, text string) error {
	session, err := s.repo.GetActive(ctx, code)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	item := model.FeedbackItem{
		Text:       sanitize.Clean(text, 200),
		FromUserID: userID,
	}
	if err := s.repo.PushFeedback(ctx, code, item); err != nil {
		return err
	}
	s.award(ctx, code, userID, XPFeedback)
	return s.refresh(ctx, code, true)
}

// SetXP replaces a participant's XP outright. Zero or unparseable values
// keep the current XP, matching the client sync protocol.
func (s *ActivityService) SetXP(ctx context.Context, code, userID string, xp int) error {
	if xp == 0 {
		return nil
	}
	ok, err := s.repo.SetXP(ctx, code, userID, xp)
	if err != nil || !ok {
		return err
	}
	if s.leaderboard != nil {
		if err := s.leaderboard.SetScore(ctx, code, userID, xp); err != nil {
			log.Printf("leaderboard mirror set failed for room %s: %v", code, err)
		}
	}
	session, err := s.repo.GetActive(ctx, code)
	if err != nil || session == nil {
		return err
	}
	broadcastLeaderboard(ctx, s.broadcaster, s.leaderboard, session)
	return nil
}

// award grants XP to the acting participant, skipping silently when they
// never joined. The Redis mirror follows successful grants.
func (s *ActivityService) award(ctx context.Context, code, userID string, xp int) {
	granted, err := s.repo.AddXP(ctx, code, userID, xp)
	if err != nil {
		log.Printf("xp grant failed for %s in room %s: %v", userID, code, err)
		return
	}
	if granted {
		mirrorXPIncr(ctx, s.leaderboard, code, userID, xp)
	}
}

// refresh reloads the session and rebroadcasts state and, when asked, the
// leaderboard view.
func (s *ActivityService) refresh(ctx context.Context, code string, withLeaderboard bool) error {
	session, err := s.repo.GetActive(ctx, code)
	if err != nil || session == nil {
		return err
	}
	broadcastState(s.broadcaster, session)
	if withLeaderboard {
		broadcastLeaderboard(ctx, s.broadcaster, s.leaderboard, session)
	}
	return nil
}
