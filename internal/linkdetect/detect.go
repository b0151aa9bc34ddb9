// Package linkdetect finds supported social media links in free text.
package linkdetect

import (
	"net/url"
	"strings"
	"unicode/utf16"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
)

const trailingPunct = ".,;:!?)\"'"

// Detect returns every supported link in text, in platform priority order
// and then in order of appearance. Each URL is normalized and appears once.
func Detect(text string) []domain.DetectedLink {
	if text == "" {
		return nil
	}

	var links []domain.DetectedLink
	seen := make(map[string]struct{})

	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			raw := strings.TrimRight(text[loc[0]:loc[1]], trailingPunct)
			normalized := normalize(raw, p.params)
			if _, dup := seen[normalized]; dup {
				continue
			}
			seen[normalized] = struct{}{}
			links = append(links, domain.DetectedLink{
				URL:      normalized,
				Platform: p.platform,
				Offset:   utf16Len(text[:loc[0]]),
			})
		}
	}

	return links
}

// MarkSpoilers returns a copy of links where every link starting inside
// one of the spoiler spans has IsSpoiler set.
func MarkSpoilers(links []domain.DetectedLink, spoilers []domain.Span) []domain.DetectedLink {
	out := make([]domain.DetectedLink, len(links))
	copy(out, links)
	if len(spoilers) == 0 {
		return out
	}
	for i := range out {
		for _, s := range spoilers {
			if s.Contains(out[i].Offset) {
				out[i].IsSpoiler = true
				break
			}
		}
	}
	return out
}

// normalize lower-cases scheme and host and strips denied query parameters.
// Kept parameters stay byte-for-byte identical and in their original order.
func normalize(raw string, rule paramRule) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = filterQuery(u.RawQuery, rule)
	u.ForceQuery = false
	return u.String()
}

func filterQuery(rawQuery string, rule paramRule) string {
	if rawQuery == "" {
		return ""
	}
	if rule.dropAll {
		return ""
	}

	kept := make([]string, 0, 4)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if rule.denies(key) {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

// Normalize applies the normalization of platform to an already extracted URL,
// such as the target of a share-link redirect.
func Normalize(platform domain.Platform, raw string) string {
	for _, p := range patterns {
		if p.platform == platform {
			return normalize(raw, p.params)
		}
	}
	return raw
}
