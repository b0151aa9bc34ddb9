package deps

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/mediabot/internal/cache"
	"github.com/MrSnakeDoc/mediabot/internal/httpserver/mw"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
	"github.com/MrSnakeDoc/mediabot/internal/ratelimit"
	"github.com/MrSnakeDoc/mediabot/internal/stats"
	redisstore "github.com/MrSnakeDoc/mediabot/internal/store/redis"
)

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedHosts []string         // Host headers allowed on the webhook route
	AllowedCIDRS []string         // IPs allowed to access /readyz and /api/*
	TrustProxy   bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	CORSOrigins  []string         // browser origins allowed on /api/*
	APIRateLimit mw.RateLimitConfig

	TelegramMode string             // "polling" | "webhook"
	Ready        func() bool        // true once the Telegram intake is running
	Webhook      http.Handler       // nil in polling mode
	Cache        *cache.ResultCache // in-memory result cache
	Limiter      *ratelimit.Limiter // per-user limiter
	Stats        *stats.Counters    // in-memory counters
	Store        *redisstore.Store  // nil when Redis is disabled
}
