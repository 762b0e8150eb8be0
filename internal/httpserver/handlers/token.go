package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/migasfree/migasfree-backend/internal/httpserver/deps"
	"github.com/migasfree/migasfree-backend/internal/logger"
)

const tokenTTL = 24 * time.Hour

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Scope    string `json:"scope"` // "admin" | "packager"
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

// Token mints a scoped HS256 JWT after verifying the caller's credentials.
// The packager scope additionally requires the packaging capability.
func Token(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}
		if req.Scope != "admin" && req.Scope != "packager" {
			http.Error(w, "unknown scope", http.StatusBadRequest)
			return
		}

		ok, err := d.Verifier.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			d.Logger.Error("authentication check failed", logger.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if req.Scope == "packager" {
			can, err := d.Verifier.CanPackage(r.Context(), req.Username)
			if err != nil {
				d.Logger.Error("capability check failed", logger.Error(err))
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if !can {
				w.WriteHeader(http.StatusForbidden)
				return
			}
		}

		now := time.Now()
		claims := jwt.MapClaims{
			"sub":   req.Username,
			"scope": req.Scope,
			"iat":   now.Unix(),
			"exp":   now.Add(tokenTTL).Unix(),
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(d.TokenSecret))
		if err != nil {
			d.Logger.Error("token signing failed", logger.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tokenResponse{
			Token:     signed,
			ExpiresIn: int(tokenTTL.Seconds()),
		})
	}
}
