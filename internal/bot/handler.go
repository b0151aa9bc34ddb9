// Package bot handles one inbound chat message end to end.
package bot

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/mediabot/internal/cache"
	"github.com/MrSnakeDoc/mediabot/internal/dispatch"
	"github.com/MrSnakeDoc/mediabot/internal/domain"
	"github.com/MrSnakeDoc/mediabot/internal/linkdetect"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
	"github.com/MrSnakeDoc/mediabot/internal/ratelimit"
)

// Stat names recorded by the handler.
const (
	StatMessages     = "messages"
	StatLinks        = "links"
	StatCacheHits    = "cache_hits"
	StatExtractions  = "extractions"
	StatPlaceholders = "placeholders"
	StatUnavailable  = "media_unavailable"
	StatRateLimited  = "rate_limited"
	StatDeliveries   = "deliveries"
	StatSendFailures = "send_failures"
)

// Extractor runs the fallback chain for one URL.
type Extractor interface {
	Extract(ctx context.Context, platform domain.Platform, url string) *domain.ScrapedResult
}

// Resolver fills in missing media bytes.
type Resolver interface {
	Resolve(ctx context.Context, items []domain.MediaItem) []domain.MediaItem
}

// Deliverer sends a resolved result to the chat.
type Deliverer interface {
	Dispatch(ctx context.Context, res *domain.ScrapedResult, t dispatch.Target) error
}

// Recorder counts handler events. Implementations must not block for long.
type Recorder interface {
	Incr(ctx context.Context, name string)
	Extraction(ctx context.Context, platform, method string)
}

type nopRecorder struct{}

func (nopRecorder) Incr(context.Context, string)               {}
func (nopRecorder) Extraction(context.Context, string, string) {}

// Options configure a Handler.
type Options struct {
	// AllowedChats restricts the bot to these chats; empty allows all.
	AllowedChats []int64
	Stats        Recorder
}

type Handler struct {
	engine     Extractor
	downloader Resolver
	cache      *cache.ResultCache
	limiter    *ratelimit.Limiter
	dispatcher Deliverer
	stats      Recorder
	allowed    map[int64]struct{}
	inflight   singleflight.Group
	logger     logger.Logger
}

func NewHandler(
	engine Extractor,
	downloader Resolver,
	c *cache.ResultCache,
	limiter *ratelimit.Limiter,
	dispatcher Deliverer,
	log logger.Logger,
	opts Options,
) *Handler {
	h := &Handler{
		engine:     engine,
		downloader: downloader,
		cache:      c,
		limiter:    limiter,
		dispatcher: dispatcher,
		stats:      opts.Stats,
		allowed:    make(map[int64]struct{}, len(opts.AllowedChats)),
		logger:     log,
	}
	if h.stats == nil {
		h.stats = nopRecorder{}
	}
	for _, id := range opts.AllowedChats {
		h.allowed[id] = struct{}{}
	}
	return h
}

// Handle processes msg: every supported link is resolved and delivered in
// detection order. Messages from other chats, without links, or over the
// sender's rate limit are dropped silently.
func (h *Handler) Handle(ctx context.Context, msg domain.Message) {
	if !h.chatAllowed(msg.ChatID) {
		return
	}

	links := linkdetect.Detect(msg.Text)
	if len(links) == 0 {
		return
	}
	links = linkdetect.MarkSpoilers(links, msg.Spoilers)

	start := time.Now()
	log := h.logger.With(
		logger.Int64("chat_id", msg.ChatID),
		logger.Int64("user_id", msg.UserID),
	)
	log.Info("message_received",
		logger.String("text_preview", preview(msg.Text, 80)),
		logger.Int("links", len(links)))
	h.stats.Incr(ctx, StatMessages)

	if !h.limiter.Allow(strconv.FormatInt(msg.UserID, 10)) {
		log.Debug("rate_limited")
		h.stats.Incr(ctx, StatRateLimited)
		return
	}

	for _, link := range links {
		if ctx.Err() != nil {
			return
		}
		h.stats.Incr(ctx, StatLinks)

		res := h.resolve(ctx, link)
		target := dispatch.Target{ChatID: msg.ChatID, MessageID: msg.MessageID, Spoiler: link.IsSpoiler}
		if err := h.dispatcher.Dispatch(ctx, res, target); err != nil {
			h.stats.Incr(ctx, StatSendFailures)
			continue
		}
		h.stats.Incr(ctx, StatDeliveries)
	}

	log.Debug("message_handled", logger.Duration("elapsed", time.Since(start)))
}

// resolve returns the cached result for link or extracts and downloads it.
// Concurrent requests for the same URL share one extraction.
func (h *Handler) resolve(ctx context.Context, link domain.DetectedLink) *domain.ScrapedResult {
	if res, ok := h.cache.Get(link.URL); ok {
		h.stats.Incr(ctx, StatCacheHits)
		return res
	}

	v, _, _ := h.inflight.Do(link.URL, func() (any, error) {
		h.stats.Incr(ctx, StatExtractions)

		res := h.engine.Extract(ctx, link.Platform, link.URL)
		h.stats.Extraction(ctx, string(link.Platform), res.MethodUsed)
		if res.IsPlaceholder() {
			h.stats.Incr(ctx, StatPlaceholders)
		}

		res = h.download(ctx, res)
		if res.Referenced != nil {
			res.Referenced = h.download(ctx, res.Referenced)
		}
		if res.MediaUnavailable {
			h.stats.Incr(ctx, StatUnavailable)
		}

		// an aborted run says nothing about the link itself
		if ctx.Err() == nil {
			h.cache.Put(link.URL, res)
		}
		return res, nil
	})
	return v.(*domain.ScrapedResult)
}

// download returns a copy of res whose items all carry their bytes.
func (h *Handler) download(ctx context.Context, res *domain.ScrapedResult) *domain.ScrapedResult {
	out := *res
	if !res.HasMedia() {
		return &out
	}
	out.Items = h.downloader.Resolve(ctx, res.Items)
	if len(out.Items) == 0 {
		out.MediaUnavailable = true
	}
	return &out
}

func (h *Handler) chatAllowed(chatID int64) bool {
	if len(h.allowed) == 0 {
		return true
	}
	_, ok := h.allowed[chatID]
	return ok
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
