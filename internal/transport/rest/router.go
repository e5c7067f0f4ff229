package rest

import (
	"classpulse/internal/service"
	"classpulse/internal/transport/rest/handler"
	"classpulse/internal/transport/rest/middleware"
	"classpulse/internal/transport/ws"
	"net/http"
	"os"

	"github.com/gorilla/mux"
)

// Container holds all dependencies for the router.
type Container struct {
	SessionService *service.SessionService
	RateLimiter    *middleware.RateLimiter
	WSHandler      *ws.Handler
}

// NewRouter creates the API router with all endpoints.
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	sessionHandler := handler.NewSessionHandler(c.SessionService)

	// CORS first, then the rate limit.
	r.Use(corsMiddleware)
	if c.RateLimiter != nil {
		r.Use(c.RateLimiter.Limit)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/session", sessionHandler.Create).Methods("POST", "OPTIONS")
	api.HandleFunc("/session/{code}", sessionHandler.Get).Methods("GET", "OPTIONS")
	api.HandleFunc("/session/{code}/end", sessionHandler.End).Methods("POST", "OPTIONS")
	api.HandleFunc("/session/{code}/leaderboard", sessionHandler.Leaderboard).Methods("GET", "OPTIONS")

	r.HandleFunc("/ws", c.WSHandler.ServeWS).Methods("GET")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
