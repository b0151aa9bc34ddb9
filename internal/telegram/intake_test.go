package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
)

type collectHandler struct {
	mu   sync.Mutex
	msgs []domain.Message
	done chan struct{}
	want int
}

func newCollectHandler(want int) *collectHandler {
	return &collectHandler{done: make(chan struct{}), want: want}
}

func (c *collectHandler) Handle(_ context.Context, msg domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	if len(c.msgs) == c.want {
		close(c.done)
	}
}

func (c *collectHandler) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler")
	}
}

func (c *collectHandler) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

// scriptedSource sends its updates, then blocks until ctx is cancelled or
// returns err right away when set.
type scriptedSource struct {
	updates []*models.Update
	err     error
}

func (s *scriptedSource) Poll(ctx context.Context, out chan<- *models.Update) error {
	if s.err != nil {
		return s.err
	}
	for _, u := range s.updates {
		select {
		case out <- u:
		case <-ctx.Done():
			return nil
		}
	}
	<-ctx.Done()
	return nil
}

func textUpdate(id, chat int64, text string) *models.Update {
	return &models.Update{ID: id, Message: &models.Message{ID: int(id * 10), Chat: models.Chat{ID: chat}, Text: text}}
}

func TestPoller_Run(t *testing.T) {
	src := &scriptedSource{updates: []*models.Update{
		textUpdate(5, 1, "a"),
		{ID: 6},
		textUpdate(7, 1, "b"),
	}}
	h := newCollectHandler(2)
	p := newPoller(src, h, 2, logger.New("error", false))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx, context.Background()) }()

	h.wait(t)
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if n := h.count(); n != 2 {
		t.Errorf("handled %d messages, want 2", n)
	}
}

// blockingHandler holds every message until released and records whether
// its context was still live when it finished.
type blockingHandler struct {
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (b *blockingHandler) Handle(ctx context.Context, _ domain.Message) {
	close(b.started)
	<-b.release
	b.ctxErr <- ctx.Err()
}

func TestPoller_HandlersOutliveIntake(t *testing.T) {
	src := &scriptedSource{updates: []*models.Update{textUpdate(1, 1, "a")}}
	h := &blockingHandler{started: make(chan struct{}), release: make(chan struct{}), ctxErr: make(chan error, 1)}
	p := newPoller(src, h, 1, logger.New("error", false))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx, context.Background()) }()

	<-h.started
	cancel()

	select {
	case <-errCh:
		t.Fatal("Run returned before the in-flight handler finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(h.release)
	if err := <-h.ctxErr; err != nil {
		t.Errorf("handler context cancelled with intake: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestPoller_StopsOnUnauthorized(t *testing.T) {
	src := &scriptedSource{err: ErrUnauthorized}
	p := newPoller(src, newCollectHandler(1), 1, logger.New("error", false))

	if err := p.Run(context.Background(), context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

type memDeduper struct {
	mu   sync.Mutex
	seen map[int64]bool
}

func newMemDeduper() *memDeduper { return &memDeduper{seen: map[int64]bool{}} }

func (m *memDeduper) MarkUpdate(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[id] {
		return false, nil
	}
	m.seen[id] = true
	return true, nil
}

func (m *memDeduper) ForgetUpdate(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, id)
	return nil
}

func postUpdate(ctx context.Context, wh *Webhook, secret, body string) int {
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body)).WithContext(ctx)
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	rec := httptest.NewRecorder()
	wh.ServeHTTP(rec, req)
	return rec.Code
}

func TestWebhook(t *testing.T) {
	h := newCollectHandler(1)
	wh := NewWebhook("s3cret", h, newMemDeduper(), 2, logger.New("error", false))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = wh.Run(ctx, context.Background()) }()

	bg := context.Background()
	update := `{"update_id":1,"message":{"message_id":3,"chat":{"id":9},"text":"https://x.com/u/status/1"}}`

	if code := postUpdate(bg, wh, "wrong", update); code != http.StatusForbidden {
		t.Errorf("wrong secret: code = %d", code)
	}
	if code := postUpdate(bg, wh, "s3cret", "{not json"); code != http.StatusBadRequest {
		t.Errorf("bad body: code = %d", code)
	}
	if code := postUpdate(bg, wh, "s3cret", update); code != http.StatusOK {
		t.Errorf("valid update: code = %d", code)
	}
	if code := postUpdate(bg, wh, "s3cret", update); code != http.StatusOK {
		t.Errorf("duplicate update: code = %d", code)
	}

	h.wait(t)
	time.Sleep(20 * time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.msgs) != 1 {
		t.Fatalf("handled %d messages, want 1", len(h.msgs))
	}
	if h.msgs[0].ChatID != 9 || h.msgs[0].MessageID != 3 {
		t.Errorf("message = %+v", h.msgs[0])
	}
}

func TestWebhook_RejectedDeliveryIsRedelivered(t *testing.T) {
	dedup := newMemDeduper()
	// one queue slot and no workers running
	wh := NewWebhook("", newCollectHandler(1), dedup, 1, logger.New("error", false))
	bg := context.Background()

	filler := `{"update_id":6,"message":{"message_id":60,"chat":{"id":1},"text":"a"}}`
	if code := postUpdate(bg, wh, "", filler); code != http.StatusOK {
		t.Fatalf("filler: code = %d", code)
	}

	gone, cancel := context.WithCancel(bg)
	cancel()
	update := `{"update_id":7,"message":{"message_id":70,"chat":{"id":1},"text":"b"}}`
	if code := postUpdate(gone, wh, "", update); code != http.StatusServiceUnavailable {
		t.Fatalf("delivery with a full queue: code = %d, want 503", code)
	}

	<-wh.queue // a worker frees the slot

	if code := postUpdate(bg, wh, "", update); code != http.StatusOK {
		t.Fatalf("redelivery: code = %d", code)
	}
	select {
	case msg := <-wh.queue:
		if msg.MessageID != 70 {
			t.Errorf("queued message %d, want 70", msg.MessageID)
		}
	default:
		t.Fatal("redelivered update was not queued")
	}
}

func TestWebhook_RunDrainsAcknowledged(t *testing.T) {
	h := newCollectHandler(2)
	wh := NewWebhook("", h, nil, 2, logger.New("error", false))
	bg := context.Background()

	for _, body := range []string{
		`{"update_id":1,"message":{"message_id":1,"chat":{"id":1},"text":"a"}}`,
		`{"update_id":2,"message":{"message_id":2,"chat":{"id":1},"text":"b"}}`,
	} {
		if code := postUpdate(bg, wh, "", body); code != http.StatusOK {
			t.Fatalf("code = %d", code)
		}
	}

	ctx, cancel := context.WithCancel(bg)
	cancel()
	if err := wh.Run(ctx, bg); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if n := h.count(); n != 2 {
		t.Errorf("handled %d acknowledged messages, want 2", n)
	}
}
