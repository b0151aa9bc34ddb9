package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-telegram/bot/models"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
)

// SecretHeader carries the secret_token passed to setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const (
	maxUpdateBytes = 1 << 20
	forgetTimeout  = 2 * time.Second
)

// UpdateDeduper remembers delivered update ids. Telegram redelivers an
// update when the first delivery is not acknowledged in time.
type UpdateDeduper interface {
	// MarkUpdate records id and reports whether it was seen for the first time.
	MarkUpdate(ctx context.Context, id int64) (bool, error)
	// ForgetUpdate drops the mark so a redelivery is handled.
	ForgetUpdate(ctx context.Context, id int64) error
}

// Webhook receives updates over HTTP and hands them to a bounded worker pool
// started by Run. Requests block while the pool's queue is full.
type Webhook struct {
	secret      string
	handler     MessageHandler
	dedup       UpdateDeduper
	queue       chan domain.Message
	concurrency int
	logger      logger.Logger
}

func NewWebhook(secret string, handler MessageHandler, dedup UpdateDeduper, concurrency int, log logger.Logger) *Webhook {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Webhook{
		secret:      secret,
		handler:     handler,
		dedup:       dedup,
		queue:       make(chan domain.Message, concurrency),
		concurrency: concurrency,
		logger:      log,
	}
}

func (w *Webhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if w.secret != "" {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(w.secret)) != 1 {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
	}

	var u models.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateBytes)).Decode(&u); err != nil {
		http.Error(rw, "invalid update", http.StatusBadRequest)
		return
	}

	m := messageOf(&u)
	if m == nil {
		rw.WriteHeader(http.StatusOK)
		return
	}

	marked := false
	if w.dedup != nil {
		first, err := w.dedup.MarkUpdate(r.Context(), u.ID)
		switch {
		case err != nil:
			// fail open: a redelivery may be handled twice
			w.logger.Warn("telegram_update_dedup_failed",
				logger.Int64("update_id", u.ID),
				logger.Error(err))
		case !first:
			w.logger.Debug("telegram_update_duplicate", logger.Int64("update_id", u.ID))
			rw.WriteHeader(http.StatusOK)
			return
		default:
			marked = true
		}
	}

	select {
	case w.queue <- toDomain(m):
		rw.WriteHeader(http.StatusOK)
	case <-r.Context().Done():
		if marked {
			w.forget(r.Context(), u.ID)
		}
		http.Error(rw, "busy", http.StatusServiceUnavailable)
	}
}

// forget clears the mark of an update Telegram will deliver again.
func (w *Webhook) forget(ctx context.Context, id int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), forgetTimeout)
	defer cancel()
	if err := w.dedup.ForgetUpdate(ctx, id); err != nil {
		w.logger.Warn("telegram_update_forget_failed",
			logger.Int64("update_id", id),
			logger.Error(err))
	}
}

// Run handles queued messages until ctx is cancelled. Messages already
// acknowledged to Telegram are still handled before Run returns. Handlers
// run with work, which outlives ctx.
func (w *Webhook) Run(ctx, work context.Context) error {
	var g errgroup.Group
	g.SetLimit(w.concurrency)

	handle := func(msg domain.Message) {
		g.Go(func() error {
			w.handler.Handle(work, msg)
			return nil
		})
	}

	w.logger.Info("telegram_webhook_started", logger.Int("concurrency", w.concurrency))
recv:
	for {
		select {
		case msg := <-w.queue:
			handle(msg)
		case <-ctx.Done():
			break recv
		}
	}

	drained := 0
drain:
	for {
		select {
		case msg := <-w.queue:
			handle(msg)
			drained++
		default:
			break drain
		}
	}

	_ = g.Wait()
	w.logger.Info("telegram_webhook_stopped", logger.Int("drained", drained))
	return nil
}
