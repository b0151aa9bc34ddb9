// Package telegram adapts the Bot API library to the bot: long polling and
// webhook intake feeding a bounded worker pool, and the outbound calls the
// dispatcher needs.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/MrSnakeDoc/mediabot/internal/dispatch"
	"github.com/MrSnakeDoc/mediabot/internal/domain"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
)

const (
	DefaultAPIURL   = "https://api.telegram.org"
	DefaultSendRate = 20

	maxRetries    = 3
	retryBase     = 500 * time.Millisecond
	maxRetryAfter = 60 * time.Second
	pollSlack     = 15 * time.Second
)

// ErrUnauthorized is returned when the bot token is rejected.
var ErrUnauthorized = bot.ErrorUnauthorized

// permanent errors are never retried
var permanent = []error{
	bot.ErrorBadRequest,
	bot.ErrorForbidden,
	bot.ErrorUnauthorized,
	bot.ErrorNotFound,
	bot.ErrorConflict,
}

// ClientOptions configure a Client.
type ClientOptions struct {
	APIURL string
	Token  string
	// PollTimeout is the getUpdates long-poll timeout.
	PollTimeout time.Duration
	// SendRate caps outbound send calls per second.
	SendRate float64
	Logger   logger.Logger
}

type Client struct {
	bot     *bot.Bot
	limiter *rate.Limiter
	backoff time.Duration
	logger  logger.Logger

	mu     sync.Mutex
	out    chan<- *models.Update // set while Poll runs
	fatal  chan error
	polled bool
}

// NewClient builds the client without contacting Telegram; call GetMe to
// check the token.
func NewClient(opts ClientOptions) (*Client, error) {
	api := strings.TrimRight(opts.APIURL, "/")
	if api == "" {
		api = DefaultAPIURL
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.SendRate <= 0 {
		opts.SendRate = DefaultSendRate
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	c := &Client{
		limiter: rate.NewLimiter(rate.Limit(opts.SendRate), 1),
		backoff: retryBase,
		logger:  log,
		fatal:   make(chan error, 1),
	}

	b, err := bot.New(opts.Token,
		bot.WithSkipGetMe(),
		bot.WithServerURL(api),
		bot.WithHTTPClient(opts.PollTimeout, &http.Client{Timeout: opts.PollTimeout + pollSlack}),
		bot.WithDefaultHandler(c.onUpdate),
		bot.WithErrorsHandler(c.onError),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	c.bot = b
	return c, nil
}

// call runs fn with retries. Rate-limit answers wait at least retry_after;
// network failures and 5xx answers back off exponentially.
func (c *Client) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(c.backoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil || ctx.Err() != nil || isPermanent(err) {
			return err
		}

		var tooMany *bot.TooManyRequestsError
		if errors.As(err, &tooMany) && tooMany.RetryAfter > 0 {
			wait := min(time.Duration(tooMany.RetryAfter)*time.Second, maxRetryAfter)
			c.logger.Warn("telegram_call_retry",
				logger.String("method", method),
				logger.Duration("retry_after", wait))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		} else {
			c.logger.Warn("telegram_call_retry", logger.String("method", method), logger.Error(hideToken(err)))
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, hideToken(err))
	}
	return nil
}

func isPermanent(err error) bool {
	for _, p := range permanent {
		if errors.Is(err, p) {
			return true
		}
	}
	return false
}

// hideToken drops the request URL, which embeds the bot token, from
// transport errors.
func hideToken(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

// ─────────────────────────────
// Lifecycle
// ─────────────────────────────

// GetMe checks the token and returns the bot account.
func (c *Client) GetMe(ctx context.Context) (*models.User, error) {
	var me *models.User
	err := c.call(ctx, "getMe", func(ctx context.Context) error {
		var err error
		me, err = c.bot.GetMe(ctx)
		return err
	})
	return me, err
}

// SetWebhook registers webhookURL; Telegram echoes secret in every webhook request.
func (c *Client) SetWebhook(ctx context.Context, webhookURL, secret string) error {
	return c.call(ctx, "setWebhook", func(ctx context.Context) error {
		_, err := c.bot.SetWebhook(ctx, &bot.SetWebhookParams{
			URL:            webhookURL,
			SecretToken:    secret,
			AllowedUpdates: []string{"message", "channel_post"},
		})
		return err
	})
}

// DeleteWebhook removes any webhook so getUpdates can be used.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", func(ctx context.Context) error {
		_, err := c.bot.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: false})
		return err
	})
}

// Poll long-polls getUpdates and sends every update to out until ctx is
// cancelled or the token is rejected. It can run only once per Client.
func (c *Client) Poll(ctx context.Context, out chan<- *models.Update) error {
	c.mu.Lock()
	if c.polled {
		c.mu.Unlock()
		return errors.New("telegram: already polling")
	}
	c.polled, c.out = true, out
	c.mu.Unlock()

	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		c.bot.Start(pollCtx)
		close(stopped)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-c.fatal:
	}
	cancel()
	<-stopped
	return err
}

func (c *Client) onUpdate(ctx context.Context, _ *bot.Bot, u *models.Update) {
	c.mu.Lock()
	out := c.out
	c.mu.Unlock()
	if out == nil {
		return
	}
	select {
	case out <- u:
	case <-ctx.Done():
		c.logger.Warn("telegram_update_dropped", logger.Int64("update_id", u.ID))
	}
}

func (c *Client) onError(err error) {
	if errors.Is(err, bot.ErrorUnauthorized) {
		select {
		case c.fatal <- ErrUnauthorized:
		default:
		}
		return
	}
	c.logger.Warn("telegram_poll_failed", logger.Error(hideToken(err)))
}

// ─────────────────────────────
// dispatch.Sink
// ─────────────────────────────

func (c *Client) SendText(ctx context.Context, chatID int64, text string, opts dispatch.SendOptions) (int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	var sent *models.Message
	err := c.call(ctx, "sendMessage", func(ctx context.Context) error {
		var err error
		sent, err = c.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:             chatID,
			Text:               text,
			ParseMode:          models.ParseModeHTML,
			LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: bot.True()},
			ReplyParameters:    replyTo(opts),
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	return int64(sent.ID), nil
}

func (c *Client) SendMedia(ctx context.Context, chatID int64, m dispatch.Media, opts dispatch.SendOptions) (int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	method := "sendPhoto"
	if m.Kind == domain.MediaVideo {
		method = "sendVideo"
	}

	var sent *models.Message
	err := c.call(ctx, method, func(ctx context.Context) error {
		// the upload reader is consumed by each attempt
		file := &models.InputFileUpload{Filename: m.Filename, Data: bytes.NewReader(m.Data)}
		var err error
		if m.Kind == domain.MediaVideo {
			sent, err = c.bot.SendVideo(ctx, &bot.SendVideoParams{
				ChatID:            chatID,
				Video:             file,
				Caption:           m.Caption,
				ParseMode:         models.ParseModeHTML,
				HasSpoiler:        opts.Spoiler,
				SupportsStreaming: true,
				ReplyParameters:   replyTo(opts),
			})
			return err
		}
		sent, err = c.bot.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:          chatID,
			Photo:           file,
			Caption:         m.Caption,
			ParseMode:       models.ParseModeHTML,
			HasSpoiler:      opts.Spoiler,
			ReplyParameters: replyTo(opts),
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	return int64(sent.ID), nil
}

func (c *Client) SendGroup(ctx context.Context, chatID int64, items []dispatch.Media, opts dispatch.SendOptions) ([]int64, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if len(items) > dispatch.GroupLimit {
		items = items[:dispatch.GroupLimit]
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var sent []*models.Message
	err := c.call(ctx, "sendMediaGroup", func(ctx context.Context) error {
		var err error
		sent, err = c.bot.SendMediaGroup(ctx, &bot.SendMediaGroupParams{
			ChatID:          chatID,
			Media:           inputMedia(items, opts.Spoiler),
			ReplyParameters: replyTo(opts),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(sent))
	for _, m := range sent {
		ids = append(ids, int64(m.ID))
	}
	return ids, nil
}

func inputMedia(items []dispatch.Media, spoiler bool) []models.InputMedia {
	media := make([]models.InputMedia, 0, len(items))
	for i, it := range items {
		attach := "attach://file" + strconv.Itoa(i)
		var parseMode models.ParseMode
		if it.Caption != "" {
			parseMode = models.ParseModeHTML
		}
		if it.Kind == domain.MediaVideo {
			media = append(media, &models.InputMediaVideo{
				Media:             attach,
				Caption:           it.Caption,
				ParseMode:         parseMode,
				HasSpoiler:        spoiler,
				SupportsStreaming: true,
				MediaAttachment:   bytes.NewReader(it.Data),
			})
			continue
		}
		media = append(media, &models.InputMediaPhoto{
			Media:           attach,
			Caption:         it.Caption,
			ParseMode:       parseMode,
			HasSpoiler:      spoiler,
			MediaAttachment: bytes.NewReader(it.Data),
		})
	}
	return media
}

func replyTo(opts dispatch.SendOptions) *models.ReplyParameters {
	if opts.ReplyTo == 0 {
		return nil
	}
	return &models.ReplyParameters{MessageID: int(opts.ReplyTo), AllowSendingWithoutReply: true}
}
