package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/memoirly/memoir-backend/internal/api/respond"
)

// ExtractBearerToken extracts the token from an Authorization header.
// Returns the token or an error if missing/invalid format.
func ExtractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("missing Authorization header")
	}

	// Expect "Bearer <token>" format
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid Authorization header format, expected 'Bearer <token>'")
	}

	return parts[1], nil
}

// Middleware returns a mux middleware that verifies the bearer token and
// attaches the actor to the request context.
func Middleware(tm *TokenManager) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, err := ExtractBearerToken(r)
			if err != nil {
				respond.WriteError(w, http.StatusUnauthorized, err.Error())
				return
			}
			claims, err := tm.Parse(tokenStr)
			if err != nil {
				respond.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			actor := Actor{UserID: claims.Subject, Role: claims.Role, Email: claims.Email}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}
