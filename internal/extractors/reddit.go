package extractors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/corpix/uarand"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
)

const (
	defaultRedditBase  = "https://www.reddit.com"
	defaultRedditOAuth = "https://oauth.reddit.com"
)

type reddit struct {
	*deps
	base      string
	oauthBase string

	tokensOnce sync.Once
	tokens     oauth2.TokenSource // nil without client credentials
}

func newReddit(d *deps) *reddit {
	return &reddit{deps: d, base: defaultRedditBase, oauthBase: defaultRedditOAuth}
}

func (*reddit) Platform() domain.Platform { return domain.PlatformReddit }

type redditListing []struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditImageSource struct {
	URL string `json:"u"`
}

type redditPost struct {
	Title     string `json:"title"`
	Selftext  string `json:"selftext"`
	Author    string `json:"author"`
	PostHint  string `json:"post_hint"`
	URL       string `json:"url"`
	IsVideo   bool   `json:"is_video"`
	IsGallery bool   `json:"is_gallery"`
	Media     *struct {
		RedditVideo struct {
			FallbackURL string `json:"fallback_url"`
		} `json:"reddit_video"`
	} `json:"media"`
	MediaMetadata map[string]struct {
		Status string            `json:"status"`
		S      redditImageSource `json:"s"`
	} `json:"media_metadata"`
	GalleryData *struct {
		Items []struct {
			MediaID string `json:"media_id"`
		} `json:"items"`
	} `json:"gallery_data"`
	Preview *struct {
		Images []struct {
			Source struct {
				URL string `json:"url"`
			} `json:"source"`
		} `json:"images"`
	} `json:"preview"`
}

// Primary reads the post from the public JSON API, through OAuth when
// client credentials are configured.
func (r *reddit) Primary(ctx context.Context, rawURL string) (*domain.ScrapedResult, error) {
	resolved := r.resolveShortlink(ctx, rawURL)
	u, err := url.Parse(resolved)
	if err != nil {
		return nil, fmt.Errorf("invalid reddit url: %w", err)
	}
	path := strings.TrimRight(u.Path, "/") + ".json"

	base := r.base
	headers := map[string]string{}
	if tok := r.oauthToken(); tok != nil {
		base = r.oauthBase
		headers["Authorization"] = tok.Type() + " " + tok.AccessToken
	}

	var listing redditListing
	if err := r.web.getJSON(ctx, base+path, headers, &listing); err != nil {
		return nil, err
	}
	if len(listing) == 0 || len(listing[0].Data.Children) == 0 {
		return nil, errors.New("reddit listing has no post")
	}
	post := listing[0].Data.Children[0].Data

	res := &domain.ScrapedResult{
		Platform:    domain.PlatformReddit,
		OriginalURL: rawURL,
		Caption:     post.Title,
		Items:       r.postMedia(ctx, rawURL, &post),
	}
	if post.Author != "" {
		res.Author = "u/" + post.Author
	}
	if post.Selftext != "" {
		res.Caption = post.Title + "\n\n" + post.Selftext
	}
	return res, nil
}

// Secondary downloads the post video with yt-dlp.
func (r *reddit) Secondary(ctx context.Context, rawURL string) (*domain.ScrapedResult, error) {
	out, err := r.ytdlp.Download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return &domain.ScrapedResult{
		Platform:    domain.PlatformReddit,
		OriginalURL: rawURL,
		Author:      out.Uploader,
		Caption:     out.Title,
		Items:       out.items(rawURL),
	}, nil
}

func (r *reddit) postMedia(ctx context.Context, rawURL string, post *redditPost) []domain.MediaItem {
	switch {
	case post.PostHint == "image" && post.URL != "":
		return []domain.MediaItem{{URL: post.URL, Kind: domain.MediaImage}}

	case post.IsVideo && post.Media != nil:
		// Hosted video keeps audio separate; yt-dlp merges the two.
		if out, err := r.ytdlp.Download(ctx, rawURL); err == nil {
			return out.items(rawURL)
		} else {
			r.log.Debug("reddit_video_ytdlp_failed",
				logger.String("url", rawURL),
				logger.Error(err))
		}
		if fb := post.Media.RedditVideo.FallbackURL; fb != "" {
			return []domain.MediaItem{{URL: fb, Kind: domain.MediaVideo}}
		}

	case post.IsGallery && len(post.MediaMetadata) > 0:
		return galleryItems(post)

	case post.PostHint == "link" && post.Preview != nil && len(post.Preview.Images) > 0:
		src := unescapeAmp(post.Preview.Images[0].Source.URL)
		if src != "" {
			return []domain.MediaItem{{URL: src, Kind: domain.MediaImage}}
		}
	}
	return nil
}

// galleryItems follows gallery_data order; media_metadata alone is unordered.
func galleryItems(post *redditPost) []domain.MediaItem {
	var ids []string
	if post.GalleryData != nil {
		for _, it := range post.GalleryData.Items {
			ids = append(ids, it.MediaID)
		}
	}
	if len(ids) == 0 {
		for id := range post.MediaMetadata {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	}

	items := make([]domain.MediaItem, 0, len(ids))
	for _, id := range ids {
		meta, ok := post.MediaMetadata[id]
		if !ok || meta.Status != "valid" || meta.S.URL == "" {
			continue
		}
		items = append(items, domain.MediaItem{URL: unescapeAmp(meta.S.URL), Kind: domain.MediaImage})
	}
	return items
}

// resolveShortlink follows /s/ share links to the post URL.
func (r *reddit) resolveShortlink(ctx context.Context, rawURL string) string {
	if !strings.Contains(rawURL, "/s/") {
		return rawURL
	}
	req, err := r.web.newRequest(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return rawURL
	}
	resp, err := r.web.client.Do(req)
	if err != nil {
		r.log.Warn("reddit_shortlink_resolve_failed",
			logger.String("url", rawURL),
			logger.Error(err))
		return rawURL
	}
	_ = resp.Body.Close()

	resolved := resp.Request.URL
	resolved.RawQuery = ""
	r.log.Info("reddit_shortlink_resolved",
		logger.String("url", rawURL),
		logger.String("resolved", resolved.String()))
	return resolved.String()
}

// userAgentTransport sets a User-Agent on token requests; Reddit throttles
// requests without one.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", uarand.GetRandom())
	return t.base.RoundTrip(req)
}

// oauthToken returns an application-only token, or nil when OAuth is not
// configured or the token request fails. Tokens are reused until expiry.
func (r *reddit) oauthToken() *oauth2.Token {
	r.tokensOnce.Do(func() {
		if r.cfg.RedditClientID == "" || r.cfg.RedditClientSecret == "" {
			return
		}
		cc := &clientcredentials.Config{
			ClientID:     r.cfg.RedditClientID,
			ClientSecret: r.cfg.RedditClientSecret,
			TokenURL:     r.base + "/api/v1/access_token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		transport := r.web.client.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		hc := &http.Client{Timeout: r.web.client.Timeout, Transport: userAgentTransport{base: transport}}
		r.tokens = cc.TokenSource(context.WithValue(context.Background(), oauth2.HTTPClient, hc))
	})
	if r.tokens == nil {
		return nil
	}

	tok, err := r.tokens.Token()
	if err != nil {
		r.log.Warn("reddit_oauth_failed", logger.Error(err))
		return nil
	}
	return tok
}

func unescapeAmp(s string) string { return strings.ReplaceAll(s, "&amp;", "&") }
