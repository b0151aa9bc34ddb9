// Package dispatch turns a resolved result into chat deliveries.
package dispatch

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
)

// MediaUnavailableText is sent when a result had media but none could be downloaded.
const MediaUnavailableText = "Could not download media from this link."

// Target identifies the message that triggered a delivery.
type Target struct {
	ChatID    int64
	MessageID int64
	Spoiler   bool
}

type Dispatcher struct {
	sink   Sink
	logger logger.Logger
}

func New(sink Sink, log logger.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, logger: log}
}

// Dispatch delivers res. A referenced post goes first as a reply to the
// trigger, and res then replies to it. Item Data must already be resolved.
func (d *Dispatcher) Dispatch(ctx context.Context, res *domain.ScrapedResult, t Target) error {
	replyTo := t.MessageID

	if res.Referenced != nil {
		id, err := d.deliver(ctx, res.Referenced, t, t.MessageID)
		switch {
		case err != nil:
			d.logger.Warn("reference_send_failed",
				logger.String("url", res.Referenced.OriginalURL),
				logger.Error(err))
		case id != 0:
			replyTo = id
		}
	}

	if _, err := d.deliver(ctx, res, t, replyTo); err != nil {
		d.logger.Error("result_send_failed",
			logger.String("url", res.OriginalURL),
			logger.Int64("chat_id", t.ChatID),
			logger.Error(err))
		return err
	}
	return nil
}

// deliver sends one result and returns the id to thread the next message under.
func (d *Dispatcher) deliver(ctx context.Context, res *domain.ScrapedResult, t Target, replyTo int64) (int64, error) {
	if res.MediaUnavailable {
		_, err := d.sink.SendText(ctx, t.ChatID, MediaUnavailableText, SendOptions{ReplyTo: t.MessageID})
		return 0, err
	}

	if !res.HasMedia() {
		return d.sink.SendText(ctx, t.ChatID, FormatTextPost(res, TextLimit), SendOptions{ReplyTo: replyTo})
	}

	caption := FormatCaption(res, CaptionLimit)
	opts := SendOptions{ReplyTo: replyTo, Spoiler: t.Spoiler}

	ready := make([]domain.MediaItem, 0, len(res.Items))
	for _, it := range res.Items {
		if it.Downloaded() {
			ready = append(ready, it)
		}
	}
	if len(ready) == 0 {
		return 0, fmt.Errorf("no downloaded items for %s", res.OriginalURL)
	}

	if len(ready) == 1 {
		m := Media{
			Kind:     ready[0].Kind,
			Data:     ready[0].Data,
			Filename: "media." + ext(ready[0].Kind),
			Caption:  caption,
		}
		return d.sink.SendMedia(ctx, t.ChatID, m, opts)
	}

	if len(ready) > GroupLimit {
		ready = ready[:GroupLimit]
	}
	group := make([]Media, 0, len(ready))
	for i, it := range ready {
		m := Media{
			Kind:     it.Kind,
			Data:     it.Data,
			Filename: fmt.Sprintf("media_%d.%s", i, ext(it.Kind)),
		}
		if i == 0 {
			m.Caption = caption
		}
		group = append(group, m)
	}

	ids, err := d.sink.SendGroup(ctx, t.ChatID, group, opts)
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	return ids[0], nil
}

func ext(k domain.MediaKind) string {
	if k == domain.MediaVideo {
		return "mp4"
	}
	return "jpg"
}
