package main

import (
	"classpulse/internal/cache"
	"classpulse/internal/repository"
	"classpulse/internal/service"
	"classpulse/internal/transport/rest"
	"classpulse/internal/transport/rest/middleware"
	"classpulse/internal/transport/ws"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// @title ClassPulse API
// @version 1.0
// @description Live classroom interaction rooms: polls, word clouds,
// @description reviews, Q&A, feedback and a reaction mini-game.
// @BasePath /api
func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	ctx := context.Background()

	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017/classpulse"
		log.Println("Warning: MONGO_URI not set, using default")
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB:", err)
	}
	log.Println("Connected to MongoDB")

	db := mongoClient.Database("classpulse")

	redisAddr := os.Getenv("REDIS_URI")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
		log.Println("Warning: REDIS_URI not set, using default")
	}
	if len(redisAddr) > 8 && redisAddr[:8] == "redis://" {
		redisAddr = redisAddr[8:]
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	defer rdb.Close()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}
	log.Println("Connected to Redis")

	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	sessionRepo := repository.NewSessionRepo(db)

	sessionCache := cache.NewSessionCache(rdb)
	leaderboard := cache.NewLeaderboardCache(rdb)

	sessionSvc := service.NewSessionService(sessionRepo, sessionCache, leaderboard)
	participantSvc := service.NewParticipantService(sessionRepo, leaderboard)
	activitySvc := service.NewActivityService(sessionRepo, leaderboard)
	minigameSvc := service.NewMinigameService(sessionRepo, leaderboard)

	// wsHub implements service.Broadcaster
	sessionSvc.SetBroadcaster(wsHub)
	participantSvc.SetBroadcaster(wsHub)
	activitySvc.SetBroadcaster(wsHub)
	minigameSvc.SetBroadcaster(wsHub)

	wsHandler := ws.NewHandler(wsHub, sessionSvc, participantSvc, activitySvc, minigameSvc)

	rateLimit := 600
	if v := os.Getenv("RATE_LIMIT_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rateLimit = n
		}
	}

	container := &rest.Container{
		SessionService: sessionSvc,
		RateLimiter:    middleware.NewRateLimiter(rdb, rateLimit),
		WSHandler:      wsHandler,
	}

	router := rest.NewRouter(container)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", port)
		log.Println("Endpoints:")
		log.Println("  POST /api/session")
		log.Println("  GET  /api/session/{code}")
		log.Println("  POST /api/session/{code}/end")
		log.Println("  GET  /api/session/{code}/leaderboard")
		log.Println("  WS   /ws")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
