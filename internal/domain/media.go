package domain

// MediaKind is the type of a media attachment.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// ReferenceKind describes how a referenced post relates to the primary one.
type ReferenceKind string

const (
	ReferenceNone  ReferenceKind = ""
	ReferenceReply ReferenceKind = "reply"
	ReferenceQuote ReferenceKind = "quote"
)

// MethodNone is stamped on the placeholder result when no extraction method succeeded.
const MethodNone = "none"

// PlaceholderCaption is the caption of the placeholder result.
const PlaceholderCaption = "Could not extract media from this link."

// MediaItem is a single image or video attachment.
type MediaItem struct {
	// URL is where the bytes can be fetched from. For items produced by
	// external tools (yt-dlp, gallery-dl) it is the post URL itself.
	URL string

	Kind MediaKind

	// Data holds the downloaded content.
	// nil means "not downloaded yet"; it is the only downloaded signal.
	Data []byte
}

// Downloaded reports whether the item already carries its bytes.
func (m MediaItem) Downloaded() bool { return m.Data != nil }

// ScrapedResult is what an extraction produced for one URL.
//
// It is produced once per extraction and cached by OriginalURL.
// Consumers must treat a cached result as read-only.
type ScrapedResult struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	Platform    Platform
	OriginalURL string

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	Author  string
	Caption string
	Items   []MediaItem

	// ─────────────────────────────
	// Provenance
	// ─────────────────────────────

	// MethodUsed is the name of the extraction method that succeeded,
	// or MethodNone for the placeholder.
	MethodUsed string

	// Referenced is the post this one replies to or quotes. One level deep:
	// a Referenced result never carries its own Referenced.
	Referenced    *ScrapedResult
	ReferenceKind ReferenceKind

	// MediaUnavailable is set when extraction found media items
	// but none of them could be downloaded.
	MediaUnavailable bool
}

// HasMedia reports whether the result carries at least one media item.
func (r *ScrapedResult) HasMedia() bool {
	return r != nil && len(r.Items) > 0
}

// Placeholder returns the terminal result used when every extraction method failed.
func Placeholder(platform Platform, url string) *ScrapedResult {
	return &ScrapedResult{
		Platform:    platform,
		OriginalURL: url,
		Caption:     PlaceholderCaption,
		MethodUsed:  MethodNone,
	}
}

// IsPlaceholder reports whether r is a placeholder result.
func (r *ScrapedResult) IsPlaceholder() bool {
	return r != nil && r.MethodUsed == MethodNone
}
