package service

import (
	"classpulse/internal/model"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionFixture(t *testing.T) (*SessionService, *fakeRepo, *fakeBroadcaster) {
	t.Helper()
	repo := newFakeRepo()
	b := &fakeBroadcaster{}
	svc := NewSessionService(repo, nil, nil)
	svc.SetBroadcaster(b)
	return svc, repo, b
}

func TestSessionCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an active session with defaults", func(t *testing.T) {
		svc, repo, b := newSessionFixture(t)

		session, err := svc.Create(ctx, "ABC1", "Biology")
		require.NoError(t, err)

		assert.True(t, session.Active)
		assert.False(t, session.Locked)
		assert.Equal(t, model.ActivityNone, session.Activity)
		assert.Equal(t, 5, session.Reviews.Scale)
		assert.Equal(t, model.ReviewStars, session.Reviews.Style)
		assert.Equal(t, []int{0, 0, 0, 0, 0}, session.Reviews.Buckets)
		assert.True(t, session.ProfanityFilter)

		stored, err := repo.GetByCode(ctx, "ABC1")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.NotNil(t, b.lastOfType(EventState))
	})

	t.Run("rejects a missing code", func(t *testing.T) {
		svc, _, _ := newSessionFixture(t)

		_, err := svc.Create(ctx, "", "Biology")
		assert.Error(t, err)
	})

	t.Run("replaces a prior session with the same code", func(t *testing.T) {
		svc, repo, _ := newSessionFixture(t)

		_, err := svc.Create(ctx, "ABC1", "Old")
		require.NoError(t, err)

		repo.sessions["ABC1"].Leaderboard = []model.Participant{{UserID: "u1", XP: 30}}

		_, err = svc.Create(ctx, "ABC1", "New")
		require.NoError(t, err)

		stored, _ := repo.GetByCode(ctx, "ABC1")
		assert.Equal(t, "New", stored.Topic)
		assert.Empty(t, stored.Leaderboard)
	})
}

func TestSessionEnd(t *testing.T) {
	ctx := context.Background()
	svc, repo, b := newSessionFixture(t)

	_, err := svc.Create(ctx, "ABC1", "Biology")
	require.NoError(t, err)

	require.NoError(t, svc.End(ctx, "ABC1"))

	stored, _ := repo.GetByCode(ctx, "ABC1")
	assert.False(t, stored.Active)
	assert.Equal(t, model.ActivityNone, stored.Activity)
	assert.NotNil(t, b.lastOfType(EventEnded))

	t.Run("ending an absent session is a no-op", func(t *testing.T) {
		assert.NoError(t, svc.End(ctx, "NOPE"))
	})
}

func TestActivityTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("publish mcq resets counts to options", func(t *testing.T) {
		svc, repo, _ := newSessionFixture(t)
		_, err := svc.Create(ctx, "ABC1", "Bio")
		require.NoError(t, err)

		correct := 1
		require.NoError(t, svc.PublishMCQ(ctx, "ABC1", "Q?", []string{"a", "b", "c"}, &correct))

		stored, _ := repo.GetByCode(ctx, "ABC1")
		assert.Equal(t, model.ActivityMCQ, stored.Activity)
		assert.Len(t, stored.MCQ.Options, 3)
		assert.Equal(t, []int{0, 0, 0}, stored.MCQ.Counts)
		require.NotNil(t, stored.MCQ.CorrectIndex)
		assert.Equal(t, 1, *stored.MCQ.CorrectIndex)
	})

	t.Run("reviews open clamps scale and sizes buckets", func(t *testing.T) {
		svc, repo, _ := newSessionFixture(t)
		_, err := svc.Create(ctx, "ABC1", "Bio")
		require.NoError(t, err)

		require.NoError(t, svc.OpenReviews(ctx, "ABC1", 4, model.ReviewEmoji))
		stored, _ := repo.GetByCode(ctx, "ABC1")
		assert.Equal(t, 4, stored.Reviews.Scale)
		assert.Equal(t, model.ReviewEmoji, stored.Reviews.Style)
		assert.Len(t, stored.Reviews.Buckets, 4)

		// Out-of-range scale falls back to the default.
		require.NoError(t, svc.OpenReviews(ctx, "ABC1", 9, "banana"))
		stored, _ = repo.GetByCode(ctx, "ABC1")
		assert.Equal(t, model.DefaultReviewScale, stored.Reviews.Scale)
		assert.Equal(t, model.ReviewStars, stored.Reviews.Style)
		assert.Len(t, stored.Reviews.Buckets, model.DefaultReviewScale)
	})

	t.Run("reopening reviews clears accumulated buckets", func(t *testing.T) {
		svc, repo, _ := newSessionFixture(t)
		_, err := svc.Create(ctx, "ABC1", "Bio")
		require.NoError(t, err)

		repo.sessions["ABC1"].Reviews.Buckets = []int{1, 2, 3, 4, 5}
		require.NoError(t, svc.OpenReviews(ctx, "ABC1", 5, model.ReviewStars))

		stored, _ := repo.GetByCode(ctx, "ABC1")
		assert.Equal(t, []int{0, 0, 0, 0, 0}, stored.Reviews.Buckets)
	})

	t.Run("switching activity keeps wordcloud and qa tallies", func(t *testing.T) {
		svc, repo, _ := newSessionFixture(t)
		_, err := svc.Create(ctx, "ABC1", "Bio")
		require.NoError(t, err)

		repo.sessions["ABC1"].WordCloud = map[string]int{"osmosis": 3}
		repo.sessions["ABC1"].QA = []model.QAItem{{Text: "why?", FromUserID: "u1"}}

		require.NoError(t, svc.SetActivity(ctx, "ABC1", model.ActivityWordCloud))
		require.NoError(t, svc.SetActivity(ctx, "ABC1", model.ActivityQA))
		require.NoError(t, svc.SetActivity(ctx, "ABC1", model.ActivityNone))

		stored, _ := repo.GetByCode(ctx, "ABC1")
		assert.Equal(t, 3, stored.WordCloud["osmosis"])
		assert.Len(t, stored.QA, 1)
	})

	t.Run("rejects unknown activity tags", func(t *testing.T) {
		svc, _, _ := newSessionFixture(t)
		_, err := svc.Create(ctx, "ABC1", "Bio")
		require.NoError(t, err)

		assert.Error(t, svc.SetActivity(ctx, "ABC1", "karaoke"))
	})

	t.Run("feedback prompt switches the activity", func(t *testing.T) {
		svc, repo, _ := newSessionFixture(t)
		_, err := svc.Create(ctx, "ABC1", "Bio")
		require.NoError(t, err)

		require.NoError(t, svc.SetFeedbackPrompt(ctx, "ABC1", "How was today?"))

		stored, _ := repo.GetByCode(ctx, "ABC1")
		assert.Equal(t, model.ActivityFeedback, stored.Activity)
		assert.Equal(t, "How was today?", stored.FBPrompt)
	})
}

func TestSetLocked(t *testing.T) {
	ctx := context.Background()
	svc, repo, b := newSessionFixture(t)
	_, err := svc.Create(ctx, "ABC1", "Bio")
	require.NoError(t, err)

	require.NoError(t, svc.SetLocked(ctx, "ABC1", true))

	stored, _ := repo.GetByCode(ctx, "ABC1")
	assert.True(t, stored.Locked)

	msg := b.lastOfType(EventLocked)
	require.NotNil(t, msg)
	assert.Equal(t, map[string]bool{"locked": true}, msg.Payload)
}

func TestFullLeaderboard(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newSessionFixture(t)

	t.Run("absent session yields nil", func(t *testing.T) {
		lb, err := svc.FullLeaderboard(ctx, "NOPE")
		require.NoError(t, err)
		assert.Nil(t, lb)
	})

	t.Run("returns the full ranked list", func(t *testing.T) {
		_, err := svc.Create(ctx, "ABC1", "Bio")
		require.NoError(t, err)
		repo.sessions["ABC1"].Leaderboard = []model.Participant{
			{UserID: "a", XP: 5}, {UserID: "b", XP: 50}, {UserID: "c", XP: 20},
		}

		lb, err := svc.FullLeaderboard(ctx, "ABC1")
		require.NoError(t, err)
		require.Len(t, lb, 3)
		assert.Equal(t, "b", lb[0].UserID)
		assert.Equal(t, "a", lb[2].UserID)
	})
}
