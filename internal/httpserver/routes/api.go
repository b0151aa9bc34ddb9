package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/mediabot/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mediabot/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/mediabot/internal/httpserver/mw"
)

func init() { Register(Group{Name: "api", Mount: registerAPI}) }

func registerAPI(r chi.Router, d deps.Deps) {
	r.Route("/api", func(api chi.Router) {
		api.Use(mw.CORS(d.CORSOrigins))
		api.Use(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
		api.Use(mw.RateLimit(d.APIRateLimit))

		api.Get("/infra", handlers.Infra(d))
		api.Get("/stats", handlers.Stats(d))
		api.Post("/cache/flush", handlers.FlushCache(d))
	})
}
