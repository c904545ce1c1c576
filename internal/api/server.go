// Package api exposes the chat service over HTTP and websocket.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/matheus3301/chatd/internal/auth"
	"github.com/matheus3301/chatd/internal/chat"
	"github.com/matheus3301/chatd/internal/media"
	"github.com/matheus3301/chatd/internal/realtime"
	"github.com/matheus3301/chatd/internal/status"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options carries the dependencies of the HTTP API.
type Options struct {
	Chat    *chat.Service
	Hub     *realtime.Hub
	WS      http.Handler
	Tokens  *auth.Tokens
	Users   auth.UserExister
	Status  *status.Machine
	Limiter *RateLimiter

	AuthPerMinute  int
	SendPerMinute  int
	UploadDir      string
	AllowedOrigins []string
	Engine         string
	Logger         *zap.Logger
}

// Server holds the handlers.
type Server struct {
	opts Options
	chat *chat.Service
	hub  *realtime.Hub
	log  *zap.Logger
}

// NewServer creates the API server.
func NewServer(opts Options) *Server {
	return &Server{
		opts: opts,
		chat: opts.Chat,
		hub:  opts.Hub,
		log:  opts.Logger.Named("api"),
	}
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(Metrics)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(RequestLogger(s.log))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/ws", s.opts.WS)
	if s.opts.UploadDir != "" {
		r.Handle(media.URLPrefix+"*", http.StripPrefix(media.URLPrefix, http.FileServer(http.Dir(s.opts.UploadDir))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.AllowContentType("application/json"))
		r.Use(chimw.RequestSize(8 << 20))

		r.Get("/status", s.handleStatus)

		r.Group(func(r chi.Router) {
			r.Use(s.opts.Limiter.Limit("auth", s.opts.AuthPerMinute, time.Minute, ipKey))
			r.Post("/auth/signup", s.handleSignup)
			r.Post("/auth/login", s.handleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(s.opts.Tokens, s.opts.Users))

			r.Get("/auth/check", s.handleCheck)
			r.Put("/auth/update-profile", s.handleUpdateProfile)

			r.Get("/online", s.handleOnline)
			r.Get("/messages/users", s.handleSidebar)
			r.Get("/messages/{id}", s.handleConversation)
			r.Get("/messages/{id}/unseen", s.handleUnseen)
			r.Put("/messages/mark/{id}", s.handleMarkSeen)
			r.With(s.opts.Limiter.Limit("send", s.opts.SendPerMinute, time.Minute, userKey)).
				Post("/messages/send/{id}", s.handleSend)
		})
	})

	return r
}
