package extractors

import (
	"context"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
)

type youtube struct{ *deps }

func newYouTube(d *deps) *youtube { return &youtube{deps: d} }

func (youtube) Platform() domain.Platform { return domain.PlatformYouTube }

// Primary asks yt-dlp for the best format URL and leaves the fetch to the downloader.
func (y *youtube) Primary(ctx context.Context, rawURL string) (*domain.ScrapedResult, error) {
	info, err := y.ytdlp.Info(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	videoURL := info.URL
	if videoURL == "" && len(info.Formats) > 0 {
		videoURL = info.Formats[len(info.Formats)-1].URL
	}
	if videoURL == "" {
		return nil, ErrNoMedia
	}

	return &domain.ScrapedResult{
		Platform:    domain.PlatformYouTube,
		OriginalURL: rawURL,
		Author:      info.author(),
		Caption:     info.Title,
		Items:       []domain.MediaItem{{URL: videoURL, Kind: domain.MediaVideo}},
	}, nil
}

// Secondary lets yt-dlp do the whole download, for formats that reject direct fetches.
func (y *youtube) Secondary(ctx context.Context, rawURL string) (*domain.ScrapedResult, error) {
	out, err := y.ytdlp.Download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return &domain.ScrapedResult{
		Platform:    domain.PlatformYouTube,
		OriginalURL: rawURL,
		Author:      out.Uploader,
		Caption:     out.Title,
		Items:       out.items(rawURL),
	}, nil
}
