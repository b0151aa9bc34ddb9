package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/mediabot/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mediabot/internal/httpserver/mw"
)

// WebhookPath is where Telegram posts updates in webhook mode.
const WebhookPath = "/telegram/webhook"

func init() {
	Register(Group{
		Name:    "telegram_webhook",
		Enabled: func(d deps.Deps) bool { return d.Webhook != nil },
		Mount:   registerWebhook,
	})
}

func registerWebhook(r chi.Router, d deps.Deps) {
	r.With(mw.EnforceHost(d.AllowedHosts, d.Logger)).Method("POST", WebhookPath, d.Webhook)
}
