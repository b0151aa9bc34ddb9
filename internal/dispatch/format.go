package dispatch

import (
	"html"
	"strings"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
)

const (
	noContent = "(no content)"
	linkLabel = "Link"
)

// twitterHosts are rewritten so the link opens without a login.
var twitterHosts = strings.NewReplacer(
	"://x.com/", "://xcancel.com/",
	"://www.x.com/", "://xcancel.com/",
	"://twitter.com/", "://xcancel.com/",
	"://www.twitter.com/", "://xcancel.com/",
)

// FormatCaption renders the HTML caption of a media delivery: an "Author:"
// line, the caption, then a link to the post. limit counts visible runes.
func FormatCaption(r *domain.ScrapedResult, limit int) string {
	body := visibleBody(r)
	if !r.HasMedia() {
		if body == "" {
			return html.EscapeString(Truncate(r.OriginalURL, limit))
		}
		return html.EscapeString(Truncate(body, limit))
	}

	// "\n\n" + anchor text
	suffix := 2 + len(linkLabel)
	anchor := `<a href="` + html.EscapeString(LinkURL(r.OriginalURL)) + `">` + linkLabel + `</a>`
	if body == "" {
		return anchor
	}
	return html.EscapeString(Truncate(body, limit-suffix)) + "\n\n" + anchor
}

// FormatTextPost renders a post without media. It carries no link.
func FormatTextPost(r *domain.ScrapedResult, limit int) string {
	body := visibleBody(r)
	if body == "" {
		body = noContent
	}
	return html.EscapeString(Truncate(body, limit))
}

func visibleBody(r *domain.ScrapedResult) string {
	parts := make([]string, 0, 2)
	if r.Author != "" {
		parts = append(parts, r.Author+":")
	}
	if r.Caption != "" {
		parts = append(parts, r.Caption)
	}
	return strings.Join(parts, "\n")
}

// LinkURL returns the URL used in the caption link.
func LinkURL(u string) string {
	return twitterHosts.Replace(u)
}

// Truncate shortens s to at most limit runes, ending with "..." when cut.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}
