package extractors

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
	"github.com/MrSnakeDoc/mediabot/internal/linkdetect"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
)

const defaultFacebookBase = "https://www.facebook.com"

// share links answer a curl user agent with a plain redirect
const curlUserAgent = "curl/7.68.0"

var errLoginWall = errors.New("redirected to login page")

type facebook struct {
	*deps
	base string
}

func newFacebook(d *deps) *facebook { return &facebook{deps: d, base: defaultFacebookBase} }

func (facebook) Platform() domain.Platform { return domain.PlatformFacebook }

// Primary downloads through yt-dlp, which covers videos and reels.
func (f *facebook) Primary(ctx context.Context, rawURL string) (*domain.ScrapedResult, error) {
	target := f.resolveShare(ctx, rawURL)
	out, err := f.ytdlp.Download(ctx, target, f.cookieArgs()...)
	if err != nil {
		return nil, err
	}
	return &domain.ScrapedResult{
		Platform:    domain.PlatformFacebook,
		OriginalURL: rawURL,
		Author:      out.Uploader,
		Caption:     out.caption(),
		Items:       out.items(rawURL),
	}, nil
}

// Secondary reads og:image from the post page, with cookies when configured.
func (f *facebook) Secondary(ctx context.Context, rawURL string) (*domain.ScrapedResult, error) {
	target := f.resolveShare(ctx, rawURL)

	doc, finalURL, err := f.web.getDocument(ctx, target, f.cookieHeaders())
	if err != nil {
		return nil, err
	}
	if strings.Contains(finalURL, "/login") {
		return nil, errLoginWall
	}

	og := parseOpenGraph(doc)
	if len(og.Images) == 0 {
		return nil, ErrNoMedia
	}
	return &domain.ScrapedResult{
		Platform:    domain.PlatformFacebook,
		OriginalURL: rawURL,
		Caption:     og.caption(),
		Items:       []domain.MediaItem{{URL: og.Images[0], Kind: domain.MediaImage}},
	}, nil
}

// Tertiary scrapes the embed plugin page, which renders public posts without a login.
func (f *facebook) Tertiary(ctx context.Context, rawURL string) (*domain.ScrapedResult, error) {
	target := f.resolveShare(ctx, rawURL)
	embed := f.base + "/plugins/post.php?href=" + url.QueryEscape(target) + "&show_text=true&width=500"

	doc, _, err := f.web.getDocument(ctx, embed, nil)
	if err != nil {
		return nil, err
	}
	return parseFacebookEmbed(doc, rawURL)
}

func parseFacebookEmbed(doc *goquery.Document, rawURL string) (*domain.ScrapedResult, error) {
	var urls []string
	doc.Find("img.scaledImageFitWidth").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			urls = append(urls, src)
		}
	})
	doc.Find("img[data-src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("data-src")
		if strings.Contains(src, "scontent") || strings.Contains(src, "fbcdn") {
			urls = append(urls, src)
		}
	})
	og := parseOpenGraph(doc)
	urls = dedupe(append(urls, og.Images...))
	if len(urls) == 0 {
		return nil, ErrNoMedia
	}
	if len(urls) > 5 {
		urls = urls[:5]
	}

	items := make([]domain.MediaItem, 0, len(urls))
	for _, u := range urls {
		items = append(items, domain.MediaItem{URL: u, Kind: domain.MediaImage})
	}

	caption := strings.TrimSpace(doc.Find("div._5pbx").First().Text())
	if caption == "" {
		caption = og.Description
	}

	return &domain.ScrapedResult{
		Platform:    domain.PlatformFacebook,
		OriginalURL: rawURL,
		Caption:     caption,
		Items:       items,
	}, nil
}

// resolveShare turns /share/ short links into the post URL. On any failure
// the original URL is returned and the methods try it as is.
func (f *facebook) resolveShare(ctx context.Context, rawURL string) string {
	if !strings.Contains(rawURL, "/share/") {
		return rawURL
	}

	headers := f.cookieHeaders()
	if headers == nil {
		headers = map[string]string{}
	}
	headers["User-Agent"] = curlUserAgent

	loc, err := f.web.resolveRedirect(ctx, rawURL, headers)
	if err != nil {
		f.log.Debug("facebook_share_resolve_failed",
			logger.String("url", rawURL),
			logger.Error(err))
		return rawURL
	}
	if loc == rawURL || strings.Contains(loc, "/share/") || strings.Contains(loc, "/login") {
		return rawURL
	}

	resolved := linkdetect.Normalize(domain.PlatformFacebook, loc)
	f.log.Info("facebook_share_resolved",
		logger.String("url", rawURL),
		logger.String("resolved", resolved))
	return resolved
}

func (f *facebook) cookieHeaders() map[string]string {
	if f.cfg.CookiesFile == "" {
		return nil
	}
	h, err := cookieHeader(f.cfg.CookiesFile, "https://www.facebook.com/")
	if err != nil {
		f.log.Debug("facebook_cookies_unreadable", logger.Error(err))
		return nil
	}
	if h == "" {
		return nil
	}
	return map[string]string{"Cookie": h}
}
