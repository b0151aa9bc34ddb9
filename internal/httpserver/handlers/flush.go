package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/mediabot/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
)

type flushResponse struct {
	Flushed int `json:"flushed"`
}

// FlushCache drops every cached result so the next request for any link
// runs a fresh extraction.
func FlushCache(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Cache == nil {
			http.Error(w, "cache not configured", http.StatusServiceUnavailable)
			return
		}

		n := d.Cache.Flush()
		d.Logger.Info("cache_flushed",
			logger.Int("entries", n),
			logger.String("remote_ip", r.RemoteAddr))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(flushResponse{Flushed: n}); err != nil {
			d.Logger.Debug("failed to write response", logger.Error(err))
		}
	}
}
