package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Dosada05/courtside/handlers"
	"github.com/Dosada05/courtside/middleware"
)

type Handlers struct {
	WebSocket *handlers.WebSocketHandler
	Sessions  *handlers.SessionHandler
	History   *handlers.HistoryHandler
}

func SetupRoutes(router *chi.Mux, h Handlers, identity *middleware.IdentityResolver, allowedOrigins []string) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// The websocket lives outside the timeout middleware.
	router.With(identity.Identify).Get("/ws", h.WebSocket.ServeWs)

	router.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(10 * time.Second))
		r.Get("/sessions/{token}", h.Sessions.GetSession)
		r.Get("/players/{playerID}/history", h.History.GetPlayerHistory)
		r.Get("/rewards", h.History.ListRewards)
	})
}
