// internal/api/auth.go
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"finflow-commitments/internal/api/handler"
	"finflow-commitments/internal/util"
)

// Authenticator verifies an HS256 bearer token and stores its subject as the owner id.
// Requests without a valid token are rejected with 401.
func Authenticator(secret []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				handler.RespondWithError(w, logger, util.ErrUnauthenticated)
				return
			}

			var claims jwt.RegisteredClaims
			if _, err := parser.ParseWithClaims(raw, &claims, keyFunc); err != nil {
				logger.Debug("Rejected bearer token", "error", err, "expired", errors.Is(err, jwt.ErrTokenExpired))
				handler.RespondWithError(w, logger, util.ErrUnauthenticated)
				return
			}
			if claims.Subject == "" {
				handler.RespondWithError(w, logger, util.ErrUnauthenticated)
				return
			}

			next.ServeHTTP(w, r.WithContext(handler.WithOwner(r.Context(), claims.Subject)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}
