package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/migasfree/migasfree-backend/internal/httpserver/deps"
	"github.com/migasfree/migasfree-backend/internal/httpserver/handlers"
)

func init() { Register(registerSafe) }

func registerSafe(r chi.Router, d deps.Deps) {
	r.Post("/api/v1/safe/sync", handlers.SafeCommand(d))
	r.Post("/api/v1/token", handlers.Token(d))
}
