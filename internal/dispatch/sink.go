package dispatch

import (
	"context"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
)

// Limits of the chat transport.
const (
	TextLimit    = 4096
	CaptionLimit = 1024
	GroupLimit   = 10
)

// SendOptions apply to a single outbound delivery.
type SendOptions struct {
	// ReplyTo is the message id to thread under; 0 means no reply.
	ReplyTo int64
	Spoiler bool
}

// Media is one file ready for upload.
type Media struct {
	Kind     domain.MediaKind
	Data     []byte
	Filename string
	// Caption is HTML. Only the first item of a group carries one.
	Caption string
}

// Sink delivers messages to a chat. Implementations return the ids of the
// messages they created.
type Sink interface {
	SendText(ctx context.Context, chatID int64, text string, opts SendOptions) (int64, error)
	SendMedia(ctx context.Context, chatID int64, m Media, opts SendOptions) (int64, error)
	SendGroup(ctx context.Context, chatID int64, items []Media, opts SendOptions) ([]int64, error)
}
