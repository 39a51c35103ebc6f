package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"careAlert/internal/domain"
	"careAlert/pkg/e"
)

const (
	HeaderAPIKey = "X-API-Key"
	HeaderUserID = "X-User-ID"
)

type ctxKey struct{}

type UserGetter interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// APIKeyMiddleware rejects requests that do not carry the gateway key.
// An empty key disables the check.
func APIKeyMiddleware(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(HeaderAPIKey)), []byte(key)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticate resolves X-User-ID through the directory and stores the
// caller as a domain.Principal on the request context.
func Authenticate(users UserGetter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderUserID)
			if id == "" {
				writeError(w, http.StatusUnauthorized, "missing "+HeaderUserID)
				return
			}

			u, err := users.GetUser(r.Context(), id)
			switch {
			case errors.Is(err, e.ErrNotFound):
				logger.Warn("unknown user", slog.String("user_id", id))
				writeError(w, http.StatusUnauthorized, "unknown user")
				return
			case err != nil:
				logger.Error("directory lookup failed", slog.String("user_id", id), slog.Any("error", err))
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			p := domain.Principal{UserID: u.ID, UserType: u.UserType, Name: u.Name}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(domain.Principal)
	return p, ok
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
