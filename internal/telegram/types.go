package telegram

import (
	"github.com/go-telegram/bot/models"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
)

// messageOf returns the message carried by u, if any.
func messageOf(u *models.Update) *models.Message {
	if u.Message != nil {
		return u.Message
	}
	return u.ChannelPost
}

// toDomain converts m into the handler's message type. Media captions are
// scanned like text. Entity offsets count UTF-16 code units.
func toDomain(m *models.Message) domain.Message {
	text, entities := m.Text, m.Entities
	if text == "" {
		text, entities = m.Caption, m.CaptionEntities
	}

	out := domain.Message{
		ChatID:    m.Chat.ID,
		MessageID: int64(m.ID),
		Text:      text,
	}
	if m.From != nil {
		out.UserID = m.From.ID
	}
	for _, e := range entities {
		if e.Type == models.MessageEntityTypeSpoiler {
			out.Spoilers = append(out.Spoilers, domain.Span{Offset: e.Offset, Length: e.Length})
		}
	}
	return out
}
