package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/migasfree/migasfree-backend/internal/httpserver/deps"
	"github.com/migasfree/migasfree-backend/internal/logger"
)

type admissionRequest struct {
	ComputerID int64 `json:"computer_id"`
}

type admissionResponse struct {
	OK         bool  `json:"ok"`
	RetryAfter int   `json:"retry_after,omitempty"` // seconds
	Position   int64 `json:"position,omitempty"`
}

// Admission answers the "may I sync now" probe. A saturated server queues
// the computer and returns a retry hint instead of refusing outright.
func Admission(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req admissionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ComputerID <= 0 {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")

		if d.Admission == nil {
			_ = json.NewEncoder(w).Encode(admissionResponse{OK: true})
			return
		}

		dec, err := d.Admission.CanSync(r.Context(), req.ComputerID)
		if err != nil {
			d.Logger.Error("admission probe failed", logger.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if dec.OK {
			_ = json.NewEncoder(w).Encode(admissionResponse{OK: true})
			return
		}

		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(admissionResponse{
			OK:         false,
			RetryAfter: int(dec.RetryAfter.Seconds()),
			Position:   dec.Position,
		})
	}
}
