package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/mediabot/internal/cache"
	"github.com/MrSnakeDoc/mediabot/internal/dispatch"
	"github.com/MrSnakeDoc/mediabot/internal/domain"
	"github.com/MrSnakeDoc/mediabot/internal/download"
	"github.com/MrSnakeDoc/mediabot/internal/extract"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
	"github.com/MrSnakeDoc/mediabot/internal/ratelimit"
)

type stubTwitter struct {
	calls atomic.Int32
	items []domain.MediaItem
}

func (*stubTwitter) Platform() domain.Platform { return domain.PlatformTwitter }

func (s *stubTwitter) Primary(_ context.Context, url string) (*domain.ScrapedResult, error) {
	s.calls.Add(1)
	return &domain.ScrapedResult{
		Platform:    domain.PlatformTwitter,
		OriginalURL: url,
		Author:      "Someone",
		Caption:     "hello there",
		Items:       append([]domain.MediaItem(nil), s.items...),
	}, nil
}

type mapFetcher map[string][]byte

func (m mapFetcher) Fetch(_ context.Context, url string, _ int64) ([]byte, error) {
	if b, ok := m[url]; ok {
		return b, nil
	}
	return nil, errors.New("not found")
}

type delivery struct {
	kind    string
	caption string
	opts    dispatch.SendOptions
}

type memSink struct {
	mu  sync.Mutex
	out []delivery
}

func (s *memSink) add(d delivery) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = append(s.out, d)
	return int64(len(s.out))
}

func (s *memSink) SendText(_ context.Context, _ int64, text string, o dispatch.SendOptions) (int64, error) {
	return s.add(delivery{kind: "text", caption: text, opts: o}), nil
}

func (s *memSink) SendMedia(_ context.Context, _ int64, m dispatch.Media, o dispatch.SendOptions) (int64, error) {
	return s.add(delivery{kind: "media:" + string(m.Kind), caption: m.Caption, opts: o}), nil
}

func (s *memSink) SendGroup(_ context.Context, _ int64, items []dispatch.Media, o dispatch.SendOptions) ([]int64, error) {
	return []int64{s.add(delivery{kind: "group", caption: items[0].Caption, opts: o})}, nil
}

type countRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countRecorder) Extraction(ctx context.Context, platform, method string) {
	c.Incr(ctx, platform+":"+method)
}

func (c *countRecorder) Incr(_ context.Context, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[name]++
}

type fixture struct {
	handler *Handler
	twitter *stubTwitter
	sink    *memSink
	stats   *countRecorder
	cache   *cache.ResultCache
}

func newFixture(t *testing.T, items []domain.MediaItem, fetch mapFetcher, opts Options) *fixture {
	t.Helper()
	log := logger.New("error", false)

	tw := &stubTwitter{items: items}
	reg, err := extract.NewRegistry(tw)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	engine := extract.NewEngine(reg, log, time.Second)
	dl := download.New(fetch, download.Options{MaxConcurrent: 2, Timeout: time.Second, MaxBytes: 1 << 20}, log)
	sink := &memSink{}
	stats := &countRecorder{}
	opts.Stats = stats

	rc := cache.New(time.Minute, 10)

	h := NewHandler(engine, dl, rc, ratelimit.New(5, time.Minute),
		dispatch.New(sink, log), log, opts)
	return &fixture{handler: h, twitter: tw, sink: sink, stats: stats, cache: rc}
}

func TestHandle_SingleImageEndToEnd(t *testing.T) {
	f := newFixture(t,
		[]domain.MediaItem{{URL: "https://pbs.twimg.com/a.jpg", Kind: domain.MediaImage}},
		mapFetcher{"https://pbs.twimg.com/a.jpg": []byte("jpeg")},
		Options{})

	f.handler.Handle(context.Background(), domain.Message{
		ChatID: 1, MessageID: 10, UserID: 42,
		Text: "look at https://x.com/u/status/1 thanks",
	})

	if len(f.sink.out) != 1 {
		t.Fatalf("expected exactly one delivery, got %d", len(f.sink.out))
	}
	d := f.sink.out[0]
	if d.kind != "media:image" {
		t.Errorf("kind = %s", d.kind)
	}
	for _, want := range []string{"Someone:", "hello there", `href="https://xcancel.com/u/status/1"`} {
		if !strings.Contains(d.caption, want) {
			t.Errorf("caption %q missing %q", d.caption, want)
		}
	}
	if d.opts.ReplyTo != 10 {
		t.Errorf("ReplyTo = %d", d.opts.ReplyTo)
	}
}

func TestHandle_CacheHitSkipsExtraction(t *testing.T) {
	f := newFixture(t,
		[]domain.MediaItem{{URL: "https://pbs.twimg.com/a.jpg", Kind: domain.MediaImage}},
		mapFetcher{"https://pbs.twimg.com/a.jpg": []byte("jpeg")},
		Options{})

	msg := domain.Message{ChatID: 1, MessageID: 10, UserID: 42, Text: "https://x.com/u/status/1"}
	f.handler.Handle(context.Background(), msg)
	f.handler.Handle(context.Background(), msg)

	if n := f.twitter.calls.Load(); n != 1 {
		t.Errorf("extractor called %d times, want 1", n)
	}
	if len(f.sink.out) != 2 {
		t.Errorf("expected 2 deliveries, got %d", len(f.sink.out))
	}
	if f.stats.counts[StatCacheHits] != 1 {
		t.Errorf("cache hits = %d", f.stats.counts[StatCacheHits])
	}
}

func TestHandle_MediaUnavailable(t *testing.T) {
	f := newFixture(t,
		[]domain.MediaItem{{URL: "https://pbs.twimg.com/gone.jpg", Kind: domain.MediaImage}},
		mapFetcher{},
		Options{})

	f.handler.Handle(context.Background(), domain.Message{ChatID: 1, MessageID: 10, Text: "https://x.com/u/status/1"})

	if len(f.sink.out) != 1 || f.sink.out[0].caption != dispatch.MediaUnavailableText {
		t.Fatalf("deliveries = %+v", f.sink.out)
	}
	if f.stats.counts[StatUnavailable] != 1 {
		t.Errorf("unavailable = %d", f.stats.counts[StatUnavailable])
	}
}

func TestHandle_Filters(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		msg  domain.Message
	}{
		{
			name: "chat not allowed",
			opts: Options{AllowedChats: []int64{99}},
			msg:  domain.Message{ChatID: 1, Text: "https://x.com/u/status/1"},
		},
		{
			name: "no supported link",
			msg:  domain.Message{ChatID: 1, Text: "nothing to see https://example.com"},
		},
		{
			name: "empty text",
			msg:  domain.Message{ChatID: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, mapFetcher{}, tt.opts)
			f.handler.Handle(context.Background(), tt.msg)
			if len(f.sink.out) != 0 || f.twitter.calls.Load() != 0 {
				t.Errorf("message should have been ignored")
			}
		})
	}
}

func TestHandle_AllowedChat(t *testing.T) {
	f := newFixture(t, nil, mapFetcher{}, Options{AllowedChats: []int64{1}})
	f.handler.Handle(context.Background(), domain.Message{ChatID: 1, Text: "https://x.com/u/status/1"})
	if len(f.sink.out) != 1 || f.sink.out[0].kind != "text" {
		t.Errorf("deliveries = %+v", f.sink.out)
	}
}

func TestHandle_RateLimited(t *testing.T) {
	f := newFixture(t, nil, mapFetcher{}, Options{})

	for i := 0; i < 7; i++ {
		f.handler.Handle(context.Background(), domain.Message{
			ChatID: 1, MessageID: int64(i), UserID: 5,
			Text: "https://x.com/u/status/1",
		})
	}
	if len(f.sink.out) != 5 {
		t.Errorf("expected 5 deliveries, got %d", len(f.sink.out))
	}
	if f.stats.counts[StatRateLimited] != 2 {
		t.Errorf("rate limited = %d", f.stats.counts[StatRateLimited])
	}
}

func TestHandle_SpoilerLink(t *testing.T) {
	f := newFixture(t,
		[]domain.MediaItem{{URL: "https://pbs.twimg.com/a.jpg", Kind: domain.MediaImage}},
		mapFetcher{"https://pbs.twimg.com/a.jpg": []byte("jpeg")},
		Options{})

	f.handler.Handle(context.Background(), domain.Message{
		ChatID: 1, MessageID: 3,
		Text:     "see https://x.com/u/status/1",
		Spoilers: []domain.Span{{Offset: 4, Length: 24}},
	})
	if len(f.sink.out) != 1 || !f.sink.out[0].opts.Spoiler {
		t.Errorf("deliveries = %+v", f.sink.out)
	}
}

func TestHandle_ConcurrentSameURL(t *testing.T) {
	f := newFixture(t, nil, mapFetcher{}, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.handler.Handle(context.Background(), domain.Message{
				ChatID: 1, MessageID: int64(i), UserID: int64(i),
				Text: "https://x.com/u/status/1",
			})
		}(i)
	}
	wg.Wait()

	if len(f.sink.out) != 5 {
		t.Errorf("expected 5 deliveries, got %d", len(f.sink.out))
	}
	if n := f.twitter.calls.Load(); n < 1 || n > 5 {
		t.Errorf("extractor calls = %d", n)
	}
}

func TestResolve_AbortedRunNotCached(t *testing.T) {
	f := newFixture(t, nil, mapFetcher{}, Options{})
	link := domain.DetectedLink{URL: "https://x.com/u/status/1", Platform: domain.PlatformTwitter}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.handler.resolve(ctx, link)
	if _, ok := f.cache.Get(link.URL); ok {
		t.Error("result of a cancelled run was cached")
	}

	f.handler.resolve(context.Background(), link)
	if _, ok := f.cache.Get(link.URL); !ok {
		t.Error("result of a completed run was not cached")
	}
}
