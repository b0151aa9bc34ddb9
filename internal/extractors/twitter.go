package extractors

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
)

const defaultVxTwitterAPI = "https://api.vxtwitter.com"

type twitter struct {
	*deps
	apiBase string
}

func newTwitter(d *deps) *twitter {
	return &twitter{deps: d, apiBase: defaultVxTwitterAPI}
}

type vxMedia struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type vxTweet struct {
	Text          string    `json:"text"`
	UserName      string    `json:"user_name"`
	UserScreen    string    `json:"user_screen_name"`
	TweetURL      string    `json:"tweetURL"`
	MediaExtended []vxMedia `json:"media_extended"`
	Quote         *vxTweet  `json:"qrt"`
	ReplyingTo    string    `json:"replyingTo"`
	ReplyingToID  string    `json:"replyingToID"`
}

func (twitter) Platform() domain.Platform { return domain.PlatformTwitter }

// Primary reads the tweet from the vxtwitter JSON API. A quoted tweet, or
// failing that the parent of a reply, is attached as the referenced result.
func (t *twitter) Primary(ctx context.Context, rawURL string) (*domain.ScrapedResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid tweet url: %w", err)
	}

	var tw vxTweet
	if err := t.web.getJSON(ctx, t.apiBase+u.Path, nil, &tw); err != nil {
		return nil, err
	}

	res := t.toResult(rawURL, &tw)

	switch {
	case tw.Quote != nil:
		ref := t.toResult(tw.Quote.TweetURL, tw.Quote)
		res.Referenced, res.ReferenceKind = ref, domain.ReferenceQuote
	case tw.ReplyingTo != "" && tw.ReplyingToID != "":
		parent, err := t.fetchParent(ctx, tw.ReplyingTo, tw.ReplyingToID)
		if err != nil {
			t.log.Debug("twitter_parent_fetch_failed",
				logger.String("url", rawURL),
				logger.Error(err))
			break
		}
		res.Referenced, res.ReferenceKind = parent, domain.ReferenceReply
	}

	return res, nil
}

// Secondary downloads the video with yt-dlp.
func (t *twitter) Secondary(ctx context.Context, rawURL string) (*domain.ScrapedResult, error) {
	var extra []string
	if t.cfg.TwitterBearerToken != "" {
		extra = []string{"--extractor-args", "twitter:bearer_token=" + t.cfg.TwitterBearerToken}
	}
	out, err := t.ytdlp.Download(ctx, rawURL, extra...)
	if err != nil {
		return nil, err
	}
	return &domain.ScrapedResult{
		Platform:    domain.PlatformTwitter,
		OriginalURL: rawURL,
		Author:      out.Uploader,
		Caption:     out.Description,
		Items:       out.items(rawURL),
	}, nil
}

func (t *twitter) fetchParent(ctx context.Context, screenName, id string) (*domain.ScrapedResult, error) {
	var tw vxTweet
	path := "/" + url.PathEscape(screenName) + "/status/" + url.PathEscape(id)
	if err := t.web.getJSON(ctx, t.apiBase+path, nil, &tw); err != nil {
		return nil, err
	}
	orig := tw.TweetURL
	if orig == "" {
		orig = "https://x.com" + path
	}
	return t.toResult(orig, &tw), nil
}

func (t *twitter) toResult(originalURL string, tw *vxTweet) *domain.ScrapedResult {
	author := tw.UserName
	if author == "" {
		author = tw.UserScreen
	}

	items := make([]domain.MediaItem, 0, len(tw.MediaExtended))
	for _, m := range tw.MediaExtended {
		switch strings.ToLower(m.Type) {
		case "image":
			items = append(items, domain.MediaItem{URL: m.URL, Kind: domain.MediaImage})
		case "video", "gif":
			items = append(items, domain.MediaItem{URL: m.URL, Kind: domain.MediaVideo})
		}
	}

	return &domain.ScrapedResult{
		Platform:    domain.PlatformTwitter,
		OriginalURL: originalURL,
		Author:      author,
		Caption:     tw.Text,
		Items:       items,
	}
}
