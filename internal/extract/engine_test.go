package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
)

type stubMethod struct {
	res   *domain.ScrapedResult
	err   error
	panic bool
	block bool
	calls int
}

func (s *stubMethod) call(ctx context.Context, url string) (*domain.ScrapedResult, error) {
	s.calls++
	if s.panic {
		panic("boom")
	}
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.res, s.err
}

// threeWay implements all three capabilities.
type threeWay struct {
	platform domain.Platform
	p, s, t  *stubMethod
}

func (x *threeWay) Platform() domain.Platform { return x.platform }
func (x *threeWay) Primary(ctx context.Context, url string) (*domain.ScrapedResult, error) {
	return x.p.call(ctx, url)
}
func (x *threeWay) Secondary(ctx context.Context, url string) (*domain.ScrapedResult, error) {
	return x.s.call(ctx, url)
}
func (x *threeWay) Tertiary(ctx context.Context, url string) (*domain.ScrapedResult, error) {
	return x.t.call(ctx, url)
}

// primaryOnly implements only the required method.
type primaryOnly struct{ p *stubMethod }

func (x *primaryOnly) Platform() domain.Platform { return domain.PlatformGitHub }
func (x *primaryOnly) Primary(ctx context.Context, url string) (*domain.ScrapedResult, error) {
	return x.p.call(ctx, url)
}

func newEngine(t *testing.T, timeout time.Duration, extractors ...Extractor) *Engine {
	t.Helper()
	reg, err := NewRegistry(extractors...)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return NewEngine(reg, logger.New("error", false), timeout)
}

func ok(author string) *stubMethod {
	return &stubMethod{res: &domain.ScrapedResult{
		Author:  author,
		Caption: author + " caption",
		Items:   []domain.MediaItem{{URL: "https://cdn/" + author, Kind: domain.MediaImage}},
	}}
}

func fail() *stubMethod { return &stubMethod{err: errors.New("nope")} }

func TestEngine_Extract(t *testing.T) {
	tests := []struct {
		name       string
		p, s, tm   *stubMethod
		wantMethod string
		wantAuthor string
		wantCalls  [3]int
	}{
		{
			name: "primary succeeds", p: ok("p"), s: ok("s"), tm: ok("t"),
			wantMethod: MethodPrimary, wantAuthor: "p", wantCalls: [3]int{1, 0, 0},
		},
		{
			name: "secondary after primary failure", p: fail(), s: ok("s"), tm: ok("t"),
			wantMethod: MethodSecondary, wantAuthor: "s", wantCalls: [3]int{1, 1, 0},
		},
		{
			name: "tertiary after two failures", p: fail(), s: fail(), tm: ok("t"),
			wantMethod: MethodTertiary, wantAuthor: "t", wantCalls: [3]int{1, 1, 1},
		},
		{
			name: "panic counts as failure", p: &stubMethod{panic: true}, s: ok("s"), tm: ok("t"),
			wantMethod: MethodSecondary, wantAuthor: "s", wantCalls: [3]int{1, 1, 0},
		},
		{
			name: "nil result counts as failure", p: &stubMethod{}, s: fail(), tm: ok("t"),
			wantMethod: MethodTertiary, wantAuthor: "t", wantCalls: [3]int{1, 1, 1},
		},
		{
			name: "all fail", p: fail(), s: fail(), tm: fail(),
			wantMethod: domain.MethodNone, wantCalls: [3]int{1, 1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := &threeWay{platform: domain.PlatformTwitter, p: tt.p, s: tt.s, t: tt.tm}
			e := newEngine(t, time.Second, x)

			got := e.Extract(context.Background(), domain.PlatformTwitter, "https://x.com/u/status/1")

			if got.MethodUsed != tt.wantMethod {
				t.Errorf("MethodUsed = %q, want %q", got.MethodUsed, tt.wantMethod)
			}
			if got.Author != tt.wantAuthor {
				t.Errorf("Author = %q, want %q", got.Author, tt.wantAuthor)
			}
			calls := [3]int{tt.p.calls, tt.s.calls, tt.tm.calls}
			if calls != tt.wantCalls {
				t.Errorf("calls = %v, want %v", calls, tt.wantCalls)
			}
			if got.OriginalURL != "https://x.com/u/status/1" || got.Platform != domain.PlatformTwitter {
				t.Errorf("identity not stamped: %+v", got)
			}
			if tt.wantMethod == domain.MethodNone {
				if got.HasMedia() || got.Caption == "" {
					t.Errorf("placeholder = %+v, want no items and a caption", got)
				}
			} else if got.Caption != tt.wantAuthor+" caption" || len(got.Items) != 1 {
				t.Errorf("result not taken from %s: %+v", tt.wantMethod, got)
			}
		})
	}
}

func TestEngine_PrepopulatedDataUntouched(t *testing.T) {
	data := []byte{0xFF, 0xD8, 0xFF}
	p := &stubMethod{res: &domain.ScrapedResult{
		Items: []domain.MediaItem{{URL: "https://x.com/u/status/1", Kind: domain.MediaVideo, Data: data}},
	}}
	e := newEngine(t, time.Second, &primaryOnly{p: p})

	got := e.Extract(context.Background(), domain.PlatformGitHub, "https://github.com/a/b/pull/1")
	if len(got.Items) != 1 || &got.Items[0].Data[0] != &data[0] {
		t.Errorf("pre-populated data replaced: %+v", got.Items)
	}
}

func TestEngine_MethodTimeout(t *testing.T) {
	x := &threeWay{
		platform: domain.PlatformInstagram,
		p:        &stubMethod{block: true},
		s:        ok("s"),
		t:        ok("t"),
	}
	e := newEngine(t, 20*time.Millisecond, x)

	got := e.Extract(context.Background(), domain.PlatformInstagram, "https://instagram.com/p/x")
	if got.MethodUsed != MethodSecondary {
		t.Errorf("MethodUsed = %q, want %q", got.MethodUsed, MethodSecondary)
	}
}

func TestEngine_UnregisteredPlatform(t *testing.T) {
	e := newEngine(t, time.Second, &primaryOnly{p: ok("p")})

	got := e.Extract(context.Background(), domain.PlatformReddit, "https://reddit.com/r/x")
	if !got.IsPlaceholder() {
		t.Errorf("Extract() = %+v, want placeholder", got)
	}
}

func TestNewRegistry_Duplicate(t *testing.T) {
	_, err := NewRegistry(&primaryOnly{p: ok("a")}, &primaryOnly{p: ok("b")})
	if err == nil {
		t.Error("NewRegistry() with duplicate platform error = nil")
	}
}

func TestMethods_Capabilities(t *testing.T) {
	if n := len(methods(&primaryOnly{p: ok("a")})); n != 1 {
		t.Errorf("primary-only chain length = %d, want 1", n)
	}
	chain := methods(&threeWay{p: ok("a"), s: ok("b"), t: ok("c")})
	names := []string{chain[0].name, chain[1].name, chain[2].name}
	want := []string{MethodPrimary, MethodSecondary, MethodTertiary}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("chain[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
