package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/mediabot/internal/httpserver/deps"
)

type componentStatus struct {
	OK      bool   `json:"ok"`
	Entries *int   `json:"entries,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Impact  string `json:"impact,omitempty"`
	Error   string `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		cacheEntries := 0
		if d.Cache != nil {
			cacheEntries = d.Cache.Len()
		}
		identities := 0
		if d.Limiter != nil {
			identities = d.Limiter.Identities()
		}
		ready := d.Ready == nil || d.Ready()

		components := map[string]componentStatus{
			"telegram": {
				OK:   ready,
				Mode: d.TelegramMode,
			},
			"cache": {
				OK:      d.Cache != nil,
				Entries: &cacheEntries,
			},
			"rate_limiter": {
				OK:      d.Limiter != nil,
				Entries: &identities,
			},
			"redis": checkRedis(r.Context(), d),
		}

		response := infraResponse{
			Status:     determineStatus(components),
			Components: components,
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

func determineStatus(components map[string]componentStatus) string {
	if tg, exists := components["telegram"]; exists && !tg.OK {
		return "critical" // not receiving updates
	}

	// Redis is optional; losing it only disables dedupe and lifetime stats
	if redis, exists := components["redis"]; exists && !redis.OK && redis.Mode != "disabled" {
		return "degraded"
	}

	return "operational"
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{
			OK:     false,
			Mode:   "disabled",
			Impact: "update-dedupe-and-lifetime-stats-disabled",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "update-dedupe-and-lifetime-stats-disabled",
			Error:  "timeout",
		}
	}

	return componentStatus{
		OK:   true,
		Mode: "optimal",
	}
}
