package mw

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/migasfree/migasfree-backend/internal/logger"
)

// RequireToken validates a Bearer HS256 token and checks its scope claim.
// Tokens are minted by the /api/v1/token endpoint.
func RequireToken(secret, scope string, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			claims := jwt.MapClaims{}
			tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				log.Debugf("RequireToken: invalid token: %v", err)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			if s, _ := claims["scope"].(string); s != scope {
				log.Debugf("RequireToken: scope mismatch, want %s", scope)
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
