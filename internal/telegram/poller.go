package telegram

import (
	"context"
	"time"

	"github.com/go-telegram/bot/models"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
)

const (
	DefaultPollTimeout = 30 * time.Second
	DefaultConcurrency = 16
)

// MessageHandler processes one inbound message.
type MessageHandler interface {
	Handle(ctx context.Context, msg domain.Message)
}

// updateSource is the part of Client the poller uses.
type updateSource interface {
	Poll(ctx context.Context, out chan<- *models.Update) error
}

// Poller runs the handler for each polled message, at most concurrency at
// a time. A full pool stops taking updates until a slot frees.
type Poller struct {
	source      updateSource
	handler     MessageHandler
	concurrency int
	logger      logger.Logger
}

func NewPoller(source *Client, handler MessageHandler, concurrency int, log logger.Logger) *Poller {
	return newPoller(source, handler, concurrency, log)
}

func newPoller(source updateSource, handler MessageHandler, concurrency int, log logger.Logger) *Poller {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Poller{
		source:      source,
		handler:     handler,
		concurrency: concurrency,
		logger:      log,
	}
}

// Run takes updates until ctx is cancelled, then waits for in-flight
// handlers. Handlers run with work, which outlives ctx so a shutdown can
// let them finish. Run returns early only when the token is rejected.
func (p *Poller) Run(ctx, work context.Context) error {
	var g errgroup.Group
	g.SetLimit(p.concurrency)

	p.logger.Info("telegram_polling_started", logger.Int("concurrency", p.concurrency))

	updates := make(chan *models.Update)
	pollErr := make(chan error, 1)
	go func() { pollErr <- p.source.Poll(ctx, updates) }()

	var runErr error
loop:
	for {
		select {
		case u := <-updates:
			m := messageOf(u)
			if m == nil {
				continue
			}
			msg := toDomain(m)
			g.Go(func() error {
				p.handler.Handle(work, msg)
				return nil
			})
		case runErr = <-pollErr:
			break loop
		}
	}

	_ = g.Wait()
	p.logger.Info("telegram_polling_stopped")
	return runErr
}
