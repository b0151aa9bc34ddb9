package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/mediabot/internal/bot"
	"github.com/MrSnakeDoc/mediabot/internal/cache"
	"github.com/MrSnakeDoc/mediabot/internal/config"
	"github.com/MrSnakeDoc/mediabot/internal/dispatch"
	"github.com/MrSnakeDoc/mediabot/internal/download"
	"github.com/MrSnakeDoc/mediabot/internal/extract"
	"github.com/MrSnakeDoc/mediabot/internal/extractors"
	"github.com/MrSnakeDoc/mediabot/internal/httpserver"
	"github.com/MrSnakeDoc/mediabot/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mediabot/internal/httpserver/mw"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
	"github.com/MrSnakeDoc/mediabot/internal/ratelimit"
	"github.com/MrSnakeDoc/mediabot/internal/redis"
	"github.com/MrSnakeDoc/mediabot/internal/scheduler"
	"github.com/MrSnakeDoc/mediabot/internal/stats"
	redisstore "github.com/MrSnakeDoc/mediabot/internal/store/redis"
	"github.com/MrSnakeDoc/mediabot/internal/telegram"
	"github.com/MrSnakeDoc/mediabot/internal/utils"
	"github.com/MrSnakeDoc/mediabot/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	telegram    *telegram.Client
	poller      *telegram.Poller
	webhook     *telegram.Webhook
	janitor     *scheduler.Janitor
	ready       *atomic.Bool
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Redis is optional: without it updates are not de-duplicated across
	// restarts and stats only cover the current process.
	var (
		redisClient *goredis.Client
		store       *redisstore.Store
		backend     stats.Backend
		dedup       telegram.UpdateDeduper
	)
	if cfg.RedisAddr != "" {
		client, err := redis.New(context.Background(), redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			loggerClient.Warn("redis_disabled", logger.Error(err))
		} else {
			redisClient = client
			store = redisstore.NewStore(client)
			backend = store
			dedup = store
		}
	} else {
		loggerClient.Info("redis_not_configured")
	}

	counters := stats.New(backend, loggerClient)
	resultCache := cache.New(cfg.CacheTTL, cfg.CacheCapacity)
	limiter := ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow)

	registry, err := extract.NewRegistry(extractors.All(extractors.Config{
		YtDlpPath:          cfg.YtDlpPath,
		GalleryDLPath:      cfg.GalleryDLPath,
		MaxFileBytes:       cfg.MaxFileBytes,
		SocketTimeout:      cfg.DownloadTimeout,
		TwitterBearerToken: cfg.TwitterBearerToken,
		RedditClientID:     cfg.RedditClientID,
		RedditClientSecret: cfg.RedditClientSecret,
		CookiesFile:        cfg.CookiesFile,
		Logger:             loggerClient,
	})...)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}
	engine := extract.NewEngine(registry, loggerClient.With(logger.Component("extract")), cfg.MethodTimeout)

	downloader := download.New(download.NewHTTPFetcher(nil), download.Options{
		MaxConcurrent: cfg.MaxConcurrentDownloads,
		Timeout:       cfg.DownloadTimeout,
		MaxBytes:      cfg.MaxFileBytes,
	}, loggerClient.With(logger.Component("download")))

	tg, err := telegram.NewClient(telegram.ClientOptions{
		APIURL:      cfg.TelegramAPIURL,
		Token:       cfg.TelegramToken,
		PollTimeout: cfg.PollTimeout,
		SendRate:    float64(cfg.SendRate),
		Logger:      loggerClient.With(logger.Component("telegram")),
	})
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}

	handler := bot.NewHandler(engine, downloader, resultCache, limiter,
		dispatch.New(tg, loggerClient), loggerClient,
		bot.Options{AllowedChats: cfg.AllowedChats, Stats: counters})

	a := &App{
		cfg:         cfg,
		logger:      loggerClient,
		redisClient: redisClient,
		telegram:    tg,
		janitor:     scheduler.NewJanitor(resultCache, limiter, loggerClient.With(logger.Component("janitor")), cfg.JanitorInterval),
		ready:       &atomic.Bool{},
	}

	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		TimeNow:      time.Now,
		AllowedHosts: cfg.AllowedHosts,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		CORSOrigins:  cfg.CORSOrigins,
		APIRateLimit: mw.RateLimitConfig{
			Burst:             20,
			RefillPerIPPerMin: 60,
			MaxEntries:        1024,
			TrustProxy:        cfg.TrustProxy,
		},
		TelegramMode: cfg.TelegramMode,
		Ready:        a.ready.Load,
		Cache:        resultCache,
		Limiter:      limiter,
		Stats:        counters,
		Store:        store,
	}

	if cfg.TelegramMode == config.ModeWebhook {
		a.webhook = telegram.NewWebhook(cfg.WebhookSecret, handler, dedup, cfg.MaxConcurrentUpdates, loggerClient.With(logger.Component("telegram")))
		d.Webhook = a.webhook
	} else {
		a.poller = telegram.NewPoller(tg, handler, cfg.MaxConcurrentUpdates, loggerClient.With(logger.Component("telegram")))
	}

	a.server = httpserver.New(cfg.ListenPort, loggerClient.With(logger.Component("http")), d)
	return a
}

func (a *App) Run() error {
	a.logger.Info("🚀 starting mediabot",
		logger.String("version", version.Version),
		logger.String("commit", version.Commit),
		logger.String("built", version.BuildDate),
		logger.String("go", version.GoVersion),
		logger.String("mode", a.cfg.TelegramMode),
		logger.String("listen", a.cfg.ListenPort))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	me, err := a.telegram.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe failed: %w", err)
	}
	a.logger.Info("telegram_authenticated", logger.String("username", me.Username))

	a.janitor.Start(ctx)
	a.logger.Info("janitor started", logger.Duration("interval", a.cfg.JanitorInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// The signal stops the intake; handlers keep a context of their own
	// that is cancelled only when the drain deadline passes.
	intakeCtx, cancelIntake := context.WithCancel(ctx)
	defer cancelIntake()
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()
	intakeDone := make(chan error, 1)
	go func() { intakeDone <- a.runIntake(intakeCtx, workCtx) }()

	var runErr error
	intakeStopped := false
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	case runErr = <-intakeDone:
		intakeStopped = true
		if runErr != nil {
			runErr = fmt.Errorf("telegram intake stopped: %w", runErr)
		}
	}
	a.ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	// Stop accepting webhook deliveries before draining the workers.
	if err := a.server.Stop(shutdownCtx); err != nil {
		a.logger.Warn("http_server_stop_failed", logger.Error(err))
	}

	cancelIntake()
	if !intakeStopped {
		select {
		case err := <-intakeDone:
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn("telegram_intake_stop_failed", logger.Error(err))
			}
		case <-shutdownCtx.Done():
			a.logger.Warn("telegram_intake_drain_timeout")
			cancelWork()
		}
	}

	a.janitor.Stop()

	if a.redisClient != nil {
		utils.CloseLogged(a.redisClient, "redis", a.logger)
	}

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ mediabot stopped cleanly")
	return nil
}

// runIntake registers or removes the webhook, marks the app ready, and
// blocks receiving updates until ctx is cancelled. Handlers run with work.
func (a *App) runIntake(ctx, work context.Context) error {
	if a.webhook != nil {
		if err := a.telegram.SetWebhook(ctx, a.cfg.WebhookURL, a.cfg.WebhookSecret); err != nil {
			return fmt.Errorf("setWebhook failed: %w", err)
		}
		a.ready.Store(true)
		return a.webhook.Run(ctx, work)
	}

	// getUpdates is rejected while a webhook is registered
	if err := a.telegram.DeleteWebhook(ctx); err != nil {
		return fmt.Errorf("deleteWebhook failed: %w", err)
	}
	a.ready.Store(true)
	return a.poller.Run(ctx, work)
}
