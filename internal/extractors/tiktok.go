package extractors

import (
	"context"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
)

type tiktok struct{ *deps }

func newTikTok(d *deps) *tiktok { return &tiktok{deps: d} }

func (tiktok) Platform() domain.Platform { return domain.PlatformTikTok }

// Primary downloads through yt-dlp. TikTok CDN URLs are signed and
// reject a second, direct fetch.
func (t *tiktok) Primary(ctx context.Context, rawURL string) (*domain.ScrapedResult, error) {
	out, err := t.ytdlp.Download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return &domain.ScrapedResult{
		Platform:    domain.PlatformTikTok,
		OriginalURL: rawURL,
		Author:      out.Uploader,
		Caption:     out.caption(),
		Items:       out.items(rawURL),
	}, nil
}

// Secondary handles photo slideshows, which yt-dlp does not download.
func (t *tiktok) Secondary(ctx context.Context, rawURL string) (*domain.ScrapedResult, error) {
	out, err := t.gallery.Download(ctx, rawURL, t.cfg.CookiesFile)
	if err != nil {
		return nil, err
	}
	return &domain.ScrapedResult{
		Platform:    domain.PlatformTikTok,
		OriginalURL: rawURL,
		Author:      out.Uploader,
		Caption:     out.caption(),
		Items:       out.items(rawURL),
	}, nil
}
