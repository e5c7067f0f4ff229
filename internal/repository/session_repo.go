package repository

import (
	"classpulse/internal/model"
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SessionRepo handles MongoDB operations for session documents.
//
// Counter increments, appends and XP grants are single update commands so
// that concurrent handlers for the same room interleave without losing
// updates. Whole-document $set is reserved for presenter-only transitions,
// which tolerate last-writer-wins.
type SessionRepo interface {
	// Create deletes any session with the same code and inserts a fresh
	// one. Starting a room always wins over a stale room with that code.
	Create(ctx context.Context, session *model.Session) error
	// GetByCode returns the session regardless of active state, or
	// (nil, nil) when absent.
	GetByCode(ctx context.Context, code string) (*model.Session, error)
	// GetActive returns the session only while it is active.
	GetActive(ctx context.Context, code string) (*model.Session, error)
	// SetFields applies a shallow $set of the given fields.
	SetFields(ctx context.Context, code string, fields bson.M) error
	// End deactivates the session and clears the live activity. Reports
	// whether a session with that code existed.
	End(ctx context.Context, code string) (bool, error)

	// UpsertParticipant refreshes name/avatar for an existing entry or
	// appends a new zero-XP entry. Reports whether a new entry was added.
	UpsertParticipant(ctx context.Context, code string, p model.Participant) (bool, error)
	// AddXP atomically increments one participant's XP. Reports false when
	// the participant has no leaderboard entry.
	AddXP(ctx context.Context, code, userID string, delta int) (bool, error)
	// SetXP atomically replaces one participant's XP.
	SetXP(ctx context.Context, code, userID string, xp int) (bool, error)

	// IncAnswerCount increments mcq.counts[index]. Reports false when the
	// index does not exist (out of range for the published question).
	IncAnswerCount(ctx context.Context, code string, index int) (bool, error)
	// IncWord increments the word-cloud tally for a word.
	IncWord(ctx context.Context, code, word string) error
	// IncReviewBucket increments reviews.buckets[index].
	IncReviewBucket(ctx context.Context, code string, index int) (bool, error)
	// PushQuestion appends a Q&A item.
	PushQuestion(ctx context.Context, code string, item model.QAItem) error
	// SetQuestionAnswered flags qa[index]; valid on ended sessions too.
	SetQuestionAnswered(ctx context.Context, code string, index int, answered bool) (bool, error)
	// PushFeedback appends a feedback item.
	PushFeedback(ctx context.Context, code string, item model.FeedbackItem) error

	// ArmRound switches the room to a fresh armed mini-game round.
	ArmRound(ctx context.Context, code, roundID string) error
	// StartRound moves an armed round to go and stamps the go instant.
	StartRound(ctx context.Context, code string, goAt int64) (bool, error)
	// EnsureRound appends an empty result list for the live round if none
	// exists yet.
	EnsureRound(ctx context.Context, code, roundID string) error
	// PushHit appends one participant's result to the live round. Reports
	// false when the round is stale, not in go, or the participant already
	// has a result in it.
	PushHit(ctx context.Context, code, roundID string, result model.HitResult) (bool, error)
}

type sessionRepo struct {
	collection *mongo.Collection
}

// NewSessionRepo creates the repository and ensures the code index.
func NewSessionRepo(db *mongo.Database) SessionRepo {
	repo := &sessionRepo{collection: db.Collection("sessions")}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *sessionRepo) ensureIndexes(ctx context.Context) {
	opts := options.Index().SetUnique(true)
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: opts,
	})
	if err != nil {
		log.Printf("Warning: failed to create session code index: %v", err)
	}
}

func activeFilter(code string) bson.M {
	return bson.M{"code": code, "isActive": true}
}

func (r *sessionRepo) touch(set bson.M) bson.M {
	set["updatedAt"] = time.Now()
	return set
}

func (r *sessionRepo) Create(ctx context.Context, session *model.Session) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"code": session.Code}); err != nil {
		return fmt.Errorf("failed to replace session: %w", err)
	}
	_, err := r.collection.InsertOne(ctx, session)
	return err
}

func (r *sessionRepo) GetByCode(ctx context.Context, code string) (*model.Session, error) {
	var session model.Session
	err := r.collection.FindOne(ctx, bson.M{"code": code}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) GetActive(ctx context.Context, code string) (*model.Session, error) {
	var session model.Session
	err := r.collection.FindOne(ctx, activeFilter(code)).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) SetFields(ctx context.Context, code string, fields bson.M) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"code": code}, bson.M{"$set": r.touch(fields)})
	return err
}

func (r *sessionRepo) End(ctx context.Context, code string) (bool, error) {
	res, err := r.collection.UpdateOne(ctx, bson.M{"code": code}, bson.M{
		"$set": r.touch(bson.M{"isActive": false, "activity": model.ActivityNone}),
	})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *sessionRepo) UpsertParticipant(ctx context.Context, code string, p model.Participant) (bool, error) {
	// Refresh an existing entry in place; XP is preserved across rejoins.
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"code": code, "isActive": true, "leaderboard.userId": p.UserID},
		bson.M{"$set": r.touch(bson.M{
			"leaderboard.$.name":   p.Name,
			"leaderboard.$.avatar": p.Avatar,
		})},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount > 0 {
		return false, nil
	}

	// Append a new entry, guarded against a concurrent join with the same
	// userId slipping in between.
	p.XP = 0
	res, err = r.collection.UpdateOne(ctx,
		bson.M{"code": code, "isActive": true, "leaderboard.userId": bson.M{"$ne": p.UserID}},
		bson.M{
			"$push": bson.M{"leaderboard": p},
			"$set":  r.touch(bson.M{}),
		},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *sessionRepo) AddXP(ctx context.Context, code, userID string, delta int) (bool, error) {
	// No updatedAt touch here: ModifiedCount must reflect the array
	// update alone, so a grant to a userId with no entry reports false.
	res, err := r.collection.UpdateOne(ctx,
		activeFilter(code),
		bson.M{"$inc": bson.M{"leaderboard.$[p].xp": delta}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"p.userId": userID}},
		}),
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *sessionRepo) SetXP(ctx context.Context, code, userID string, xp int) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		activeFilter(code),
		bson.M{"$set": bson.M{"leaderboard.$[p].xp": xp}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"p.userId": userID}},
		}),
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *sessionRepo) IncAnswerCount(ctx context.Context, code string, index int) (bool, error) {
	field := fmt.Sprintf("mcq.counts.%d", index)
	filter := activeFilter(code)
	filter[field] = bson.M{"$exists": true}
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{
		"$inc": bson.M{field: 1},
		"$set": r.touch(bson.M{}),
	})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *sessionRepo) IncWord(ctx context.Context, code, word string) error {
	_, err := r.collection.UpdateOne(ctx, activeFilter(code), bson.M{
		"$inc": bson.M{"wordcloud." + word: 1},
		"$set": r.touch(bson.M{}),
	})
	return err
}

func (r *sessionRepo) IncReviewBucket(ctx context.Context, code string, index int) (bool, error) {
	field := fmt.Sprintf("reviews.buckets.%d", index)
	filter := activeFilter(code)
	filter[field] = bson.M{"$exists": true}
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{
		"$inc": bson.M{field: 1},
		"$set": r.touch(bson.M{}),
	})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *sessionRepo) PushQuestion(ctx context.Context, code string, item model.QAItem) error {
	_, err := r.collection.UpdateOne(ctx, activeFilter(code), bson.M{
		"$push": bson.M{"qa": item},
		"$set":  r.touch(bson.M{}),
	})
	return err
}

func (r *sessionRepo) SetQuestionAnswered(ctx context.Context, code string, index int, answered bool) (bool, error) {
	field := fmt.Sprintf("qa.%d.answered", index)
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"code": code, fmt.Sprintf("qa.%d", index): bson.M{"$exists": true}},
		bson.M{"$set": r.touch(bson.M{field: answered})},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *sessionRepo) PushFeedback(ctx context.Context, code string, item model.FeedbackItem) error {
	_, err := r.collection.UpdateOne(ctx, activeFilter(code), bson.M{
		"$push": bson.M{"feedback": item},
		"$set":  r.touch(bson.M{}),
	})
	return err
}

func (r *sessionRepo) ArmRound(ctx context.Context, code, roundID string) error {
	return r.SetFields(ctx, code, bson.M{
		"activity":         model.ActivityMinigame,
		"minigame.status":  model.RoundArmed,
		"minigame.roundId": roundID,
		"minigame.goAt":    nil,
	})
}

func (r *sessionRepo) StartRound(ctx context.Context, code string, goAt int64) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"code": code, "minigame.status": model.RoundArmed},
		bson.M{"$set": r.touch(bson.M{
			"minigame.status": model.RoundGo,
			"minigame.goAt":   goAt,
		})},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *sessionRepo) EnsureRound(ctx context.Context, code, roundID string) error {
	filter := activeFilter(code)
	filter["minigame.roundId"] = roundID
	filter["minigame.status"] = model.RoundGo
	filter["minigame.lastResults.roundId"] = bson.M{"$ne": roundID}
	_, err := r.collection.UpdateOne(ctx, filter, bson.M{
		"$push": bson.M{"minigame.lastResults": model.MinigameRound{
			RoundID: roundID,
			Results: []model.HitResult{},
		}},
		"$set": r.touch(bson.M{}),
	})
	return err
}

func (r *sessionRepo) PushHit(ctx context.Context, code, roundID string, result model.HitResult) (bool, error) {
	// The filter rejects stale rounds, rounds not in go, and duplicate
	// entries from the same participant, all in one atomic update.
	filter := activeFilter(code)
	filter["minigame.roundId"] = roundID
	filter["minigame.status"] = model.RoundGo
	filter["minigame.lastResults"] = bson.M{"$elemMatch": bson.M{
		"roundId":    roundID,
		"results.id": bson.M{"$ne": result.ID},
	}}
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{
		"$push": bson.M{"minigame.lastResults.$.results": result},
		"$set":  r.touch(bson.M{}),
	})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}
