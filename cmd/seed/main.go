// Seeds a demo session for local development: a room with a few joined
// participants, an open MCQ and one finished mini-game round.
package main

import (
	"classpulse/internal/model"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database("classpulse")
	sessions := db.Collection("sessions")

	const code = "DEMO1"

	session := model.NewSession(code, "Demo: Intro to Go")
	session.Activity = model.ActivityMCQ
	correct := 1
	session.MCQ = model.MCQ{
		Question: "Which keyword starts a goroutine?",
		Options: []model.MCQOption{
			{Text: "async"}, {Text: "go"}, {Text: "spawn"},
		},
		CorrectIndex: &correct,
		Counts:       []int{1, 4, 0},
	}

	names := []string{"Ada", "Grace", "Linus"}
	xp := []int{25, 40, 13}
	for i, n := range names {
		session.Leaderboard = append(session.Leaderboard, model.Participant{
			UserID: uuid.New().String(),
			Name:   n,
			XP:     xp[i],
		})
	}

	roundID := uuid.New().String()
	session.Minigame = model.Minigame{
		Status:  model.RoundIdle,
		RoundID: roundID,
		LastResults: []model.MinigameRound{{
			RoundID: roundID,
			Results: []model.HitResult{
				{ID: session.Leaderboard[1].UserID, Name: "Grace", Time: 231},
				{ID: session.Leaderboard[0].UserID, Name: "Ada", Time: 305},
			},
		}},
	}

	if _, err := sessions.DeleteOne(ctx, map[string]string{"code": code}); err != nil {
		log.Fatalf("Failed to clear demo session: %v", err)
	}
	if _, err := sessions.InsertOne(ctx, session); err != nil {
		log.Fatalf("Failed to insert demo session: %v", err)
	}

	fmt.Printf("Seeded demo session %s with %d participants\n", code, len(session.Leaderboard))
}
