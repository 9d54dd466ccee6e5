package http

import (
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"userhub/internal/auth"
	"userhub/internal/config"
	"userhub/internal/users"
)

// NewRouter wires application routes and middleware using chi.
func NewRouter(cfg config.Config, oauthHandler *OAuthHandler, userSvc *users.Service, codec *auth.TokenCodec, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newSecurityHeadersMiddleware(cfg.Environment))
	r.Use(newSlogMiddleware(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"environment": cfg.Environment,
		})
	})

	userHandler := NewUserHandler(userSvc, logger)
	requireAuth := newAuthGuard(codec, logger)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", oauthHandler.Login)
		r.Get("/google/callback", oauthHandler.Callback)
		r.Post("/token", oauthHandler.IssueToken)
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/", userHandler.List)
		r.Post("/", userHandler.Create)
		r.With(requireAuth).Get("/export", userHandler.Export)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", userHandler.Get)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Put("/", userHandler.Update)
				r.Delete("/", userHandler.Delete)
			})
		})
	})

	r.NotFound(http.NotFoundHandler().ServeHTTP)

	return r
}
