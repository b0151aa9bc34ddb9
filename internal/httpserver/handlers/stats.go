package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/mediabot/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
	"github.com/MrSnakeDoc/mediabot/internal/stats"
)

type lifetimeStats struct {
	Totals    map[string]int64 `json:"totals"`
	Platforms map[string]int64 `json:"platforms"`
}

type statsResponse struct {
	UptimeSeconds float64        `json:"uptime_seconds"`
	CacheEntries  int            `json:"cache_entries"`
	Process       stats.Snapshot `json:"process"`
	Lifetime      *lifetimeStats `json:"lifetime,omitempty"` // from Redis, when enabled
}

// Stats returns the counters of this process and, when Redis is enabled,
// the lifetime counters.
func Stats(d deps.Deps) http.HandlerFunc {
	now := d.TimeNow
	if now == nil {
		now = time.Now
	}

	return func(w http.ResponseWriter, r *http.Request) {
		resp := statsResponse{
			UptimeSeconds: now().Sub(d.StartTime).Seconds(),
		}
		if d.Stats != nil {
			resp.Process = d.Stats.Snapshot()
		}
		if d.Cache != nil {
			resp.CacheEntries = d.Cache.Len()
		}

		if d.Store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			totals, platforms, err := d.Store.Stats(ctx)
			cancel()
			if err != nil {
				d.Logger.Warn("lifetime_stats_unavailable", logger.Error(err))
			} else {
				resp.Lifetime = &lifetimeStats{Totals: totals, Platforms: platforms}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
