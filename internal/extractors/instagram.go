package extractors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
)

const defaultInstagramBase = "https://www.instagram.com"

var instagramShortcode = regexp.MustCompile(`/(?:p|reel|reels)/([A-Za-z0-9_-]+)`)

type instagram struct {
	*deps
	base string
}

func newInstagram(d *deps) *instagram { return &instagram{deps: d, base: defaultInstagramBase} }

func (instagram) Platform() domain.Platform { return domain.PlatformInstagram }

// Primary handles reels and videos through yt-dlp.
func (i *instagram) Primary(ctx context.Context, rawURL string) (*domain.ScrapedResult, error) {
	extra := append(i.cookieArgs(), "--no-check-certificates")
	out, err := i.ytdlp.Download(ctx, rawURL, extra...)
	if err != nil {
		return nil, err
	}
	return &domain.ScrapedResult{
		Platform:    domain.PlatformInstagram,
		OriginalURL: rawURL,
		Author:      out.Uploader,
		Caption:     out.caption(),
		Items:       out.items(rawURL),
	}, nil
}

// Secondary handles image posts and carousels through gallery-dl.
func (i *instagram) Secondary(ctx context.Context, rawURL string) (*domain.ScrapedResult, error) {
	out, err := i.gallery.Download(ctx, rawURL, i.cfg.CookiesFile)
	if err != nil {
		return nil, err
	}
	return &domain.ScrapedResult{
		Platform:    domain.PlatformInstagram,
		OriginalURL: rawURL,
		Author:      out.Uploader,
		Caption:     out.caption(),
		Items:       out.items(rawURL),
	}, nil
}

// Tertiary scrapes the public embed page, which renders without a login.
func (i *instagram) Tertiary(ctx context.Context, rawURL string) (*domain.ScrapedResult, error) {
	m := instagramShortcode.FindStringSubmatch(rawURL)
	if m == nil {
		return nil, errors.New("no instagram shortcode in url")
	}

	doc, _, err := i.web.getDocument(ctx, i.base+"/p/"+m[1]+"/embed/captioned/", nil)
	if err != nil {
		return nil, err
	}
	return parseInstagramEmbed(doc, rawURL)
}

func parseInstagramEmbed(doc *goquery.Document, rawURL string) (*domain.ScrapedResult, error) {
	og := parseOpenGraph(doc)

	urls := append([]string(nil), og.Images...)
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok {
			return
		}
		if strings.Contains(src, "scontent") || strings.Contains(src, "cdninstagram") {
			urls = append(urls, src)
		}
	})
	urls = dedupe(urls)
	if len(urls) == 0 {
		return nil, ErrNoMedia
	}
	if len(urls) > 10 {
		urls = urls[:10]
	}

	items := make([]domain.MediaItem, 0, len(urls))
	for _, u := range urls {
		items = append(items, domain.MediaItem{URL: u, Kind: domain.MediaImage})
	}

	caption := og.caption()
	if caption == "" {
		caption = strings.TrimSpace(doc.Find(".Caption").First().Text())
	}

	return &domain.ScrapedResult{
		Platform:    domain.PlatformInstagram,
		OriginalURL: rawURL,
		Author:      strings.TrimSpace(doc.Find(".UsernameText").First().Text()),
		Caption:     caption,
		Items:       items,
	}, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		s = strings.ReplaceAll(s, "&amp;", "&")
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
