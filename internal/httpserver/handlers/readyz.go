package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/migasfree/migasfree-backend/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready bool `json:"ready"`
}

// Readyz answers ready only when both the database and redis respond.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		ready := true
		if d.DB == nil || d.DB.Ping(ctx) != nil {
			ready = false
		}
		if d.RedisClient == nil || d.RedisClient.Ping(ctx).Err() != nil {
			ready = false
		}

		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(readyzResponse{Ready: ready})
	}
}
