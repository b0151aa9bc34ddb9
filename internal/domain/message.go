package domain

// DetectedLink is a supported URL found in a chat message.
type DetectedLink struct {
	URL       string // normalized
	Platform  Platform
	IsSpoiler bool

	// Offset is the position of the raw match in the source text,
	// counted in UTF-16 code units like chat entity offsets.
	Offset int
}

// Span is a range of the message text, in UTF-16 code units.
type Span struct {
	Offset int
	Length int
}

// Contains reports whether pos falls inside the span.
func (s Span) Contains(pos int) bool {
	return pos >= s.Offset && pos < s.Offset+s.Length
}

// Message is an inbound chat message as seen by the handler.
type Message struct {
	ChatID    int64
	MessageID int64
	UserID    int64 // 0 when the sender is unknown (channel posts)
	Text      string
	Spoilers  []Span
}
