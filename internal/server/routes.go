package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rx3lixir/tempvoice/internal/admin"
	"github.com/rx3lixir/tempvoice/internal/auth"
	"github.com/rx3lixir/tempvoice/internal/websocket"
	"github.com/rx3lixir/tempvoice/pkg/httputil"
)

type RouterConfig struct {
	AdminHandler *admin.Handler
	WSHandler    *websocket.Handler
	WSManager    *websocket.Manager
	AuthService  *auth.Service
	Log          *slog.Logger
}

func NewRouter(config RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware block
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(config.Log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		// Auth routes (no middleware)
		r.Post("/auth/token", httputil.Handler(config.AdminHandler.HandleLogin, config.Log))

		// Websocket authenticates itself, browsers pass the token as a query param
		r.Get("/ws", httputil.Handler(config.WSHandler.HandleConnection, config.Log))

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(config.AuthService, config.Log))
			r.Use(middleware.Compress(5))

			config.AdminHandler.RegisterRoutes(r)

			r.Get("/ws/metrics", httputil.Handler(func(w http.ResponseWriter, r *http.Request) error {
				return httputil.RespondJSON(w, http.StatusOK, config.WSManager.Metrics())
			}, config.Log))
		})
	})

	return r
}
