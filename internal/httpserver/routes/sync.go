package routes

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/migasfree/migasfree-backend/internal/httpserver/deps"
	"github.com/migasfree/migasfree-backend/internal/httpserver/handlers"
	"github.com/migasfree/migasfree-backend/internal/httpserver/mw"
)

func init() { Register(registerSync) }

func registerSync(r chi.Router, d deps.Deps) {
	limited := r.With(mw.RateLimit(mw.RateLimitConfig{
		Burst:             30,
		RefillPerIPPerMin: 60,
		MaxEntries:        10000,
		SweepInterval:     time.Minute,
		IdleTTL:           15 * time.Minute,
		TrustProxy:        d.TrustProxy,
	}))

	limited.Post("/api/v1/public/sync", handlers.SyncCommand(d))
	limited.Post("/api/v1/public/admission", handlers.Admission(d))
}
