package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/mediabot/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
)

// Group is a set of routes mounted together. Enabled may be nil, in which
// case the group is always mounted.
type Group struct {
	Name    string
	Enabled func(d deps.Deps) bool
	Mount   func(r chi.Router, d deps.Deps)
}

var groups []Group

// Register adds a route group. Called from init in each route file.
func Register(g Group) {
	groups = append(groups, g)
}

// RegisterAll mounts every enabled group on r.
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, g := range groups {
		if g.Enabled != nil && !g.Enabled(d) {
			d.Logger.Debug("route_group_skipped", logger.String("group", g.Name))
			continue
		}
		g.Mount(r, d)
		d.Logger.Debug("route_group_mounted", logger.String("group", g.Name))
	}
}
