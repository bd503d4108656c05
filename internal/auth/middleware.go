package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rx3lixir/tempvoice/pkg/httputil"
)

type contextKey string

const subjectKey contextKey = "subject"

func Middleware(authService *Service, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.RespondError(w, r, httputil.Unauthorized("authorization required"), log)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				httputil.RespondError(w, r, httputil.Unauthorized("invalid authorization format"), log)
				return
			}

			claims, err := authService.ValidateAccessToken(parts[1])
			if err != nil {
				httputil.RespondError(w, r, &httputil.HTTPError{
					Status:  http.StatusUnauthorized,
					Message: "invalid token",
					Cause:   err,
				}, log)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest reads a bearer token from the header, falling back to
// the token query parameter for browser websocket clients
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func GetSubject(ctx context.Context) string {
	subject, _ := ctx.Value(subjectKey).(string)
	return subject
}
