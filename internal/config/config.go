package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "MEDIABOT_"

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 10s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Telegram
	TelegramToken        string        // bot token from @BotFather
	TelegramAPIURL       string        // ex: "https://api.telegram.org"
	TelegramMode         string        // "polling" | "webhook"
	WebhookURL           string        // public URL registered with setWebhook (webhook mode)
	WebhookSecret        string        // X-Telegram-Bot-Api-Secret-Token value (webhook mode)
	PollTimeout          time.Duration // getUpdates long-poll timeout
	SendRate             int           // outbound requests per second
	AllowedChats         []int64       // empty = every chat
	MaxConcurrentUpdates int           // updates handled in parallel

	// Retrieval pipeline
	MaxConcurrentDownloads int
	DownloadTimeout        time.Duration
	MaxFileBytes           int64
	CacheTTL               time.Duration
	CacheCapacity          int
	RateLimitMax           int
	RateLimitWindow        time.Duration
	MethodTimeout          time.Duration // 0 disables the per-method deadline
	JanitorInterval        time.Duration

	// Extractors
	TwitterBearerToken string
	RedditClientID     string
	RedditClientSecret string
	CookiesFile        string // Netscape cookies.txt
	YtDlpPath          string
	GalleryDLPath      string

	// Redis (optional, empty address disables it)
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict the webhook route to specific Host headers
	AllowedCIDRS []string // optional, restrict /api/* and /readyz to specific IPs (e.g. "1.2.3.4, 10.0.0.0/8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	CORSOrigins  []string // optional, browser origins allowed to call /api/*
}

// source resolves a key from the environment first, then from the optional
// YAML file. Keys are given without the MEDIABOT_ prefix.
type source struct {
	file map[string]string
}

func Load() *Config {
	src := source{}
	if path := os.Getenv(envPrefix + "CONFIG_FILE"); path != "" {
		file, err := readFile(path)
		if err != nil {
			panic(fmt.Sprintf("❌ FATAL: %v", err))
		}
		src.file = file
	}
	return src.load()
}

func (s source) load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      s.getenv("LISTEN_PORT", ":8080"),
		ShutdownTimeout: s.mustDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		// Logging
		LogLevel:  s.getenv("LOG_LEVEL", "info"),
		PrettyLog: s.mustBool("PRETTY_LOG", false),

		// Telegram
		TelegramToken:        s.requireEnv("TELEGRAM_TOKEN"),
		TelegramAPIURL:       strings.TrimRight(s.getenv("TELEGRAM_API_URL", "https://api.telegram.org"), "/"),
		TelegramMode:         strings.ToLower(s.getenv("TELEGRAM_MODE", ModePolling)),
		WebhookURL:           s.getenv("TELEGRAM_WEBHOOK_URL", ""),
		WebhookSecret:        s.getenv("TELEGRAM_WEBHOOK_SECRET", ""),
		PollTimeout:          s.mustDuration("TELEGRAM_POLL_TIMEOUT", 30*time.Second),
		SendRate:             s.getenvInt("TELEGRAM_SEND_RATE", 20),
		AllowedChats:         s.mustInt64Slice("ALLOWED_CHATS"),
		MaxConcurrentUpdates: s.getenvInt("MAX_CONCURRENT_UPDATES", 16),

		// Pipeline
		MaxConcurrentDownloads: s.getenvInt("MAX_CONCURRENT_DOWNLOADS", 3),
		DownloadTimeout:        s.mustDuration("DOWNLOAD_TIMEOUT", 30*time.Second),
		MaxFileBytes:           int64(s.getenvInt("MAX_FILE_SIZE_MB", 50)) << 20,
		CacheTTL:               s.mustDuration("CACHE_TTL", 5*time.Minute),
		CacheCapacity:          s.getenvInt("CACHE_CAPACITY", 200),
		RateLimitMax:           s.getenvInt("RATE_LIMIT_MAX", 5),
		RateLimitWindow:        s.mustDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		MethodTimeout:          s.mustDuration("METHOD_TIMEOUT", 90*time.Second),
		JanitorInterval:        s.mustDuration("JANITOR_INTERVAL", time.Minute),

		// Extractors
		TwitterBearerToken: s.getenv("TWITTER_BEARER_TOKEN", ""),
		RedditClientID:     s.getenv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: s.getenv("REDDIT_CLIENT_SECRET", ""),
		CookiesFile:        s.getenv("COOKIES_FILE", ""),
		YtDlpPath:          s.getenv("YTDLP_PATH", "yt-dlp"),
		GalleryDLPath:      s.getenv("GALLERYDL_PATH", "gallery-dl"),

		// Redis settings
		RedisAddr:             s.getenv("REDIS_ADDR", ""),
		RedisUser:             s.getenv("REDIS_USERNAME", "default"),
		RedisPasswordRequired: s.mustBool("REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         s.getenv("REDIS_PASSWORD", ""),
		RedisDB:               s.getenvInt("REDIS_DB", 0),
		RedisDT:               s.mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               s.mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               s.mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          s.mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      s.mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         s.getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   s.mustDuration("REDIS_CONNECT_TIMEOUT", 15*time.Second),
		RedisRetryInterval:    s.mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    s.getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(s.getenv("ALLOWED_HOSTS", "")),
		AllowedCIDRS: splitAndTrim(s.getenv("ALLOWED_CIDRS", "")),
		TrustProxy:   s.mustBool("TRUST_PROXY", false),
		CORSOrigins:  splitAndTrim(s.getenv("CORS_ORIGINS", "")),
	}

	cfg.validate()

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

func (c *Config) validate() {
	switch c.TelegramMode {
	case ModePolling:
	case ModeWebhook:
		if c.WebhookURL == "" {
			panic("❌ FATAL: " + envPrefix + "TELEGRAM_WEBHOOK_URL is required when " + envPrefix + "TELEGRAM_MODE=webhook")
		}
		if c.WebhookSecret == "" {
			panic("❌ FATAL: " + envPrefix + "TELEGRAM_WEBHOOK_SECRET is required when " + envPrefix + "TELEGRAM_MODE=webhook")
		}
		if _, err := url.ParseRequestURI(c.WebhookURL); err != nil {
			panic(fmt.Sprintf("❌ FATAL: Invalid %sTELEGRAM_WEBHOOK_URL: %v", envPrefix, err))
		}
	default:
		panic(fmt.Sprintf("❌ FATAL: %sTELEGRAM_MODE must be %q or %q, got %q", envPrefix, ModePolling, ModeWebhook, c.TelegramMode))
	}

	if c.RedisAddr != "" && c.RedisPasswordRequired && c.RedisPassword == "" {
		panic("❌ FATAL: " + envPrefix + "REDIS_PASSWORD is required when " + envPrefix + "REDIS_PASSWORD_REQUIRED=true")
	}
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	cp.TelegramToken = redact(cp.TelegramToken)
	cp.WebhookSecret = redact(cp.WebhookSecret)
	cp.TwitterBearerToken = redact(cp.TwitterBearerToken)
	cp.RedditClientSecret = redact(cp.RedditClientSecret)
	cp.RedisPassword = redact(cp.RedisPassword)
	return cp
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***REDACTED***"
}

// readFile loads a flat YAML mapping of keys (with or without the MEDIABOT_
// prefix, any case) to scalar values.
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(k)), envPrefix)
		switch val := v.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(val))
			for _, p := range val {
				parts = append(parts, fmt.Sprint(p))
			}
			out[key] = strings.Join(parts, ",")
		case map[string]any:
			return nil, fmt.Errorf("parse config file %s: key %s must be a scalar or list", path, k)
		default:
			out[key] = fmt.Sprint(val)
		}
	}
	return out, nil
}

// helpers
func (s source) lookup(key string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return s.file[key]
}

func (s source) getenv(key, def string) string {
	if v := s.lookup(key); v != "" {
		return v
	}
	return def
}

func (s source) requireEnv(key string) string {
	v := s.lookup(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s%s is not set", envPrefix, key))
	}
	return v
}

func (s source) getenvInt(key string, def int) int {
	if v := s.lookup(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func (s source) mustBool(key string, def bool) bool {
	if v := s.lookup(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func (s source) mustDuration(key string, def time.Duration) time.Duration {
	if v := s.lookup(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func (s source) mustInt64Slice(key string) []int64 {
	parts := splitAndTrim(s.lookup(key))
	if len(parts) == 0 {
		return nil
	}
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			panic(fmt.Sprintf("❌ FATAL: Invalid chat id in %s%s: %s", envPrefix, key, p))
		}
		out = append(out, id)
	}
	return out
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
