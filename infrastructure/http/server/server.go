package server

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/services"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
)

type Options struct {
	AllowedOrigins       []string
	ConnectionBufferSize int
	MaxFrameSize         int64
	MaxBodySize          int64
	RequestTimeout       time.Duration
}

type Server struct {
	log           *slog.Logger
	authenticator contract.Authenticator
	authService   services.IAuthService
	sessions      services.ISessionService
	invites       services.IInviteService
	chat          services.IChatService
	health        *HealthHandler
	upgrader      websocket.Upgrader
	opts          Options
}

func NewServer(
	log *slog.Logger,
	authenticator contract.Authenticator,
	authService services.IAuthService,
	sessions services.ISessionService,
	invites services.IInviteService,
	chat services.IChatService,
	health *HealthHandler,
	opts Options,
) *Server {
	return &Server{
		log:           log,
		authenticator: authenticator,
		authService:   authService,
		sessions:      sessions,
		invites:       invites,
		chat:          chat,
		health:        health,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		opts: opts,
	}
}

// Router builds the HTTP surface. Everything but register, login, health
// and metrics requires a bearer token; the websocket endpoint also accepts
// the token as a query parameter since browsers cannot set headers on it.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(metrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", s.health.ServeHTTP)
	r.Get("/ws/sessions/{sessionID}", s.Connect)

	r.Group(func(r chi.Router) {
		r.Use(maxBodySize(s.opts.MaxBodySize))
		if s.opts.RequestTimeout > 0 {
			r.Use(chimw.Timeout(s.opts.RequestTimeout))
		}

		r.Post("/auth/register", s.Register)
		r.Post("/auth/login", s.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.authenticator))

			r.Get("/users/me", s.Me)
			r.Post("/invites/accept", s.AcceptInvite)

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", s.ListSessions)
				r.Post("/", s.CreateSession)

				r.Route("/{sessionID}", func(r chi.Router) {
					r.Get("/", s.GetSession)
					r.Put("/", s.UpdateSession)
					r.Delete("/", s.DeleteSession)
					r.Post("/join", s.JoinSession)

					r.Get("/participants", s.ListParticipants)
					r.Post("/participants", s.AddParticipant)
					r.Delete("/participants/{userID}", s.RemoveParticipant)

					r.Get("/invites", s.ListInvites)
					r.Post("/invites", s.CreateInvite)
					r.Delete("/invites/{inviteID}", s.RevokeInvite)

					r.Get("/messages", s.ListMessages)
					r.Post("/messages", s.PostMessage)
				})
			})
		})
	})

	return r
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || lo.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || lo.Contains(allowed, origin)
	}
}
