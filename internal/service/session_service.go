package service

import (
	"classpulse/internal/cache"
	"classpulse/internal/model"
	"classpulse/internal/repository"
	"classpulse/internal/sanitize"
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
)

// SessionService owns the session lifecycle and presenter-driven activity
// transitions. Transitions are whole-field replaces: they are presenter-
// singular and tolerate last-writer-wins.
type SessionService struct {
	repo        repository.SessionRepo
	sessions    cache.SessionCache
	leaderboard cache.LeaderboardCache
	broadcaster Broadcaster
}

// NewSessionService creates a new session service.
func NewSessionService(repo repository.SessionRepo, sessions cache.SessionCache, leaderboard cache.LeaderboardCache) *SessionService {
	return &SessionService{
		repo:        repo,
		sessions:    sessions,
		leaderboard: leaderboard,
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events.
func (s *SessionService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Create replaces any session with the same code and starts a fresh one.
func (s *SessionService) Create(ctx context.Context, code, topic string) (*model.Session, error) {
	if code == "" {
		return nil, fmt.Errorf("code required")
	}
	session := model.NewSession(code, sanitize.Clean(topic, 140))
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.invalidate(ctx, code)
	if s.leaderboard != nil {
		if err := s.leaderboard.Clear(ctx, code); err != nil {
			log.Printf("failed to clear leaderboard mirror for room %s: %v", code, err)
		}
	}
	broadcastState(s.broadcaster, session)
	return session, nil
}

// End deactivates the session and clears the live activity. Participant
// mutations for the code become no-ops afterwards; reads stay valid for
// the leaderboard export.
func (s *SessionService) End(ctx context.Context, code string) error {
	if _, err := s.repo.End(ctx, code); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	s.invalidate(ctx, code)
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToRoom(code, EventEnded, nil)
	}
	return nil
}

// SetTopic updates the display topic.
func (s *SessionService) SetTopic(ctx context.Context, code, topic string) error {
	err := s.repo.SetFields(ctx, code, bson.M{"topic": sanitize.Clean(topic, 160)})
	if err != nil {
		return err
	}
	return s.rebroadcast(ctx, code)
}

// SetActivity swaps the live activity tag. Word cloud and Q&A keep their
// accumulated data across switches; ballot activities get reset through
// their own open/publish operations.
func (s *SessionService) SetActivity(ctx context.Context, code string, activity model.Activity) error {
	if !model.ValidActivity(activity) {
		return fmt.Errorf("unknown activity %q", activity)
	}
	if err := s.repo.SetFields(ctx, code, bson.M{"activity": activity}); err != nil {
		return err
	}
	return s.rebroadcast(ctx, code)
}

// SetLocked toggles the join lock. Locking only blocks newcomers.
func (s *SessionService) SetLocked(ctx context.Context, code string, locked bool) error {
	if err := s.repo.SetFields(ctx, code, bson.M{"locked": locked}); err != nil {
		return err
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToRoom(code, EventLocked, map[string]bool{"locked": locked})
	}
	return nil
}

// PublishMCQ opens a multiple-choice ballot, resetting counts to the new
// option list.
func (s *SessionService) PublishMCQ(ctx context.Context, code, question string, options []string, correctIndex *int) error {
	opts := make([]model.MCQOption, len(options))
	for i, t := range options {
		opts[i] = model.MCQOption{Text: sanitize.Clean(t, 120)}
	}
	mcq := model.MCQ{
		Question:     sanitize.Clean(question, 300),
		Options:      opts,
		CorrectIndex: correctIndex,
		Counts:       make([]int, len(opts)),
	}
	err := s.repo.SetFields(ctx, code, bson.M{
		"activity": model.ActivityMCQ,
		"mcq":      mcq,
	})
	if err != nil {
		return err
	}
	return s.rebroadcast(ctx, code)
}

// OpenReviews opens a star/emoji review ballot with fresh buckets. Scale is
// clamped into [3,5]; unknown styles fall back to stars.
func (s *SessionService) OpenReviews(ctx context.Context, code string, scale int, style model.ReviewStyle) error {
	if scale < 3 || scale > 5 {
		scale = model.DefaultReviewScale
	}
	if style != model.ReviewEmoji {
		style = model.ReviewStars
	}
	reviews := model.Reviews{
		Scale:   scale,
		Style:   style,
		Buckets: make([]int, scale),
	}
	err := s.repo.SetFields(ctx, code, bson.M{
		"activity": model.ActivityReviews,
		"reviews":  reviews,
	})
	if err != nil {
		return err
	}
	return s.rebroadcast(ctx, code)
}

// SetFeedbackPrompt opens the feedback activity with a new prompt.
func (s *SessionService) SetFeedbackPrompt(ctx context.Context, code, prompt string) error {
	err := s.repo.SetFields(ctx, code, bson.M{
		"activity": model.ActivityFeedback,
		"fbPrompt": sanitize.Clean(prompt, 200),
	})
	if err != nil {
		return err
	}
	return s.rebroadcast(ctx, code)
}

// SetWordFilter toggles the word-cloud profanity filter.
func (s *SessionService) SetWordFilter(ctx context.Context, code string, on bool) error {
	if err := s.repo.SetFields(ctx, code, bson.M{"profanityFilter": on}); err != nil {
		return err
	}
	return s.rebroadcast(ctx, code)
}

// Snapshot returns the session for admin reads, cached briefly in Redis.
func (s *SessionService) Snapshot(ctx context.Context, code string) (*model.Session, error) {
	if s.sessions != nil {
		if cached, err := s.sessions.Get(ctx, code); err == nil && cached != nil {
			return cached, nil
		}
	}
	session, err := s.repo.GetByCode(ctx, code)
	if err != nil || session == nil {
		return session, err
	}
	if s.sessions != nil {
		if err := s.sessions.Set(ctx, session); err != nil {
			log.Printf("failed to cache session %s: %v", code, err)
		}
	}
	return session, nil
}

// FullLeaderboard returns every participant ranked by XP descending, or
// (nil, nil) when the session is absent.
func (s *SessionService) FullLeaderboard(ctx context.Context, code string) ([]model.Participant, error) {
	session, err := s.repo.GetByCode(ctx, code)
	if err != nil || session == nil {
		return nil, err
	}
	return Rank(session.Leaderboard), nil
}

// rebroadcast reloads the session and pushes the full state to the room.
func (s *SessionService) rebroadcast(ctx context.Context, code string) error {
	session, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("session %s not found", code)
	}
	broadcastState(s.broadcaster, session)
	return nil
}

func (s *SessionService) invalidate(ctx context.Context, code string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Delete(ctx, code); err != nil {
		log.Printf("failed to invalidate session cache for %s: %v", code, err)
	}
}
