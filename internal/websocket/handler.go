package websocket

import (
	"log/slog"
	"net/http"

	"github.com/rx3lixir/tempvoice/internal/auth"
	"github.com/rx3lixir/tempvoice/pkg/httputil"
)

type Handler struct {
	manager     *Manager
	authService *auth.Service
	log         *slog.Logger
}

func NewHandler(wsManager *Manager, authService *auth.Service, log *slog.Logger) *Handler {
	return &Handler{
		manager:     wsManager,
		authService: authService,
		log:         log,
	}
}

// HandleConnection authenticates before the upgrade; browsers cannot set
// headers on websocket requests so the token may come as a query param
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	guildID := r.URL.Query().Get("guild_id")
	if guildID == "" {
		return httputil.BadRequest("guild_id parameter required")
	}

	token := auth.TokenFromRequest(r)
	if token == "" {
		return httputil.Unauthorized("missing authorization token")
	}

	claims, err := h.authService.ValidateAccessToken(token)
	if err != nil {
		return &httputil.HTTPError{
			Status:  http.StatusUnauthorized,
			Message: "invalid or expired token",
			Cause:   err,
		}
	}

	h.log.Info("establishing websocket connection",
		"subject", claims.Subject,
		"guild_id", guildID,
	)

	if err := h.manager.ServeWS(w, r, claims.Subject, guildID); err != nil {
		// Accept already wrote the response
		h.log.Warn("websocket upgrade failed", "error", err)
	}
	return nil
}
