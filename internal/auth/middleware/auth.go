package middleware

import (
	"context"
	"net/http"
	"strings"
)

// TokenValidator validates access tokens
type TokenValidator interface {
	// ValidateAccessToken validates the token and returns the author id it was issued to.
	//
	// "tokenString" is the raw JWT taken from the request.
	//
	// Returns the author id and an error if the token is invalid or expired.
	ValidateAccessToken(tokenString string) (string, error)
}

type contextKey string

const authorIDKey contextKey = "authorID"

// AuthMiddleware validates the bearer access token and stores the author id in the request context.
// The token is read from the Authorization header, falling back to the access_token cookie.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if cookie, err := r.Cookie("access_token"); err == nil {
					token = cookie.Value
				}
			}

			if token == "" {
				unauthorized(w, "authentication required")
				return
			}

			authorID, err := validator.ValidateAccessToken(token)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authorIDKey, authorID)))
		})
	}
}

// GetAuthorID retrieves the author id from context
func GetAuthorID(ctx context.Context) (string, bool) {
	authorID, ok := ctx.Value(authorIDKey).(string)
	return authorID, ok
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
