package api

import (
	"net/http"
	"time"

	"mitra-ai/internal/api/handlers"
	"mitra-ai/internal/app"
	"mitra-ai/internal/auth"
	"mitra-ai/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// NewRouter mounts every route under /api
func NewRouter(config *app.Config) http.Handler {
	chatHandlers := handlers.NewChatHandlers(config)
	modelHandlers := handlers.NewModelHandlers(config)
	creditHandlers := handlers.NewCreditHandlers(config)
	authHandlers := handlers.NewAuthHandlers(config)
	documentHandlers := handlers.NewDocumentHandlers(config)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(handlers.CORS(config.AppConfig.Server.AllowedOrigins))

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", handlers.HealthHandler(config))
		r.Post("/register", authHandlers.RegisterHandler)
		r.Post("/login", authHandlers.LoginHandler)
		r.Get("/llm-models/active", modelHandlers.ListActiveHandler)

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(config.Auth.Middleware)

			r.Get("/auth/user", authHandlers.CurrentUserHandler)

			r.Get("/chats", chatHandlers.ListChatsHandler)
			r.Post("/chats", chatHandlers.CreateChatHandler)
			r.Get("/chats/{chatID}/messages", chatHandlers.GetMessagesHandler)
			r.With(handlers.RateLimit(config.Limiter)).Post("/chats/{chatID}/messages", chatHandlers.SendMessageHandler)
			r.Delete("/chats/{chatID}", chatHandlers.DeleteChatHandler)

			r.Get("/credits", creditHandlers.GetOwnBalanceHandler)

			r.Get("/documents", documentHandlers.ListHandler)
			r.Post("/documents", documentHandlers.CreateHandler)
			r.Get("/documents/{documentID}", documentHandlers.GetHandler)
			r.Get("/documents/{documentID}/download", documentHandlers.DownloadHandler)
			r.Put("/documents/{documentID}", documentHandlers.UpdateHandler)
			r.Delete("/documents/{documentID}", documentHandlers.DeleteHandler)

			// Admin routes
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)

				r.Get("/llm-models", modelHandlers.ListAllHandler)
				r.Post("/llm-models", modelHandlers.CreateHandler)
				// Model ids contain slashes, e.g. openai/gpt-4o
				r.Put("/llm-models/*", modelHandlers.UpdateHandler)
				r.Delete("/llm-models/*", modelHandlers.DeactivateHandler)

				r.Get("/admin/users/{userID}/credits", creditHandlers.GetUserBalanceHandler)
				r.Post("/admin/users/{userID}/credits", creditHandlers.GrantHandler)
			})
		})
	})

	return r
}

// requestLogger logs one structured line per request
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.FromRequest(r).WithFields(logrus.Fields{
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("Request served")
	})
}
