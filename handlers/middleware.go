package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/CrowderSoup/kanban/services"
	"github.com/rs/zerolog/log"
)

type contextKey string

const emailContextKey contextKey = "email"

// TokenVerifier checks a session token and returns the email it was issued for.
type TokenVerifier interface {
	VerifyJWT(tokenString string) (string, error)
}

type AuthMiddleware struct {
	authService TokenVerifier
}

func NewAuthMiddleware(authService TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// Auth rejects requests without a valid session token. Browsers cannot set headers on
// a WebSocket upgrade, so the token may also arrive in the token query parameter.
func (m *AuthMiddleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Get the token from the header or query
		tokenString, ok := bearerToken(r)
		if !ok {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		// Verify the token
		email, err := m.authService.VerifyJWT(tokenString)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected session token")
			http.Error(w, services.ErrInvalidToken.Error(), http.StatusUnauthorized)
			return
		}

		// Add email to request context
		ctx := context.WithValue(r.Context(), emailContextKey, email)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		token := r.URL.Query().Get("token")
		return token, token != ""
	}

	authParts := strings.Split(authHeader, " ")
	if len(authParts) != 2 || authParts[0] != "Bearer" || authParts[1] == "" {
		return "", false
	}

	return authParts[1], true
}

func emailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailContextKey).(string)
	return email, ok && email != ""
}
