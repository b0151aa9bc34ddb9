// Package extractors holds the per-platform extraction strategies.
//
// Each variant implements extract.Extractor and, where the platform has
// fallbacks, extract.SecondaryExtractor and extract.TertiaryExtractor.
package extractors

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/mediabot/internal/extract"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
)

// Config is shared by every extractor.
type Config struct {
	HTTPClient *http.Client // nil uses a client with a 15s timeout
	Runner     Runner       // nil uses ExecRunner

	YtDlpPath     string
	GalleryDLPath string
	MaxFileBytes  int64
	SocketTimeout time.Duration

	TwitterBearerToken string
	RedditClientID     string
	RedditClientSecret string
	CookiesFile        string // Netscape format, used for Instagram and Facebook

	Logger logger.Logger
}

type deps struct {
	web     *web
	ytdlp   *YtDlp
	gallery *GalleryDL
	cfg     Config
	log     logger.Logger
}

func newDeps(cfg Config) *deps {
	if cfg.Runner == nil {
		cfg.Runner = ExecRunner{}
	}
	if cfg.YtDlpPath == "" {
		cfg.YtDlpPath = "yt-dlp"
	}
	if cfg.GalleryDLPath == "" {
		cfg.GalleryDLPath = "gallery-dl"
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &deps{
		web: newWeb(cfg.HTTPClient),
		ytdlp: &YtDlp{
			Path:          cfg.YtDlpPath,
			Runner:        cfg.Runner,
			MaxBytes:      cfg.MaxFileBytes,
			SocketTimeout: cfg.SocketTimeout,
			Logger:        log,
		},
		gallery: &GalleryDL{
			Path:     cfg.GalleryDLPath,
			Runner:   cfg.Runner,
			MaxBytes: cfg.MaxFileBytes,
			Logger:   log,
		},
		cfg: cfg,
		log: log,
	}
}

// All returns one extractor per supported platform.
func All(cfg Config) []extract.Extractor {
	d := newDeps(cfg)
	return []extract.Extractor{
		newTwitter(d),
		newYouTube(d),
		newInstagram(d),
		newTikTok(d),
		newFacebook(d),
		newGitHub(d),
		newReddit(d),
	}
}

// cookieArgs returns the yt-dlp/gallery-dl cookie flags when a file is configured.
func (d *deps) cookieArgs() []string {
	if d.cfg.CookiesFile == "" {
		return nil
	}
	return []string{"--cookies", d.cfg.CookiesFile}
}
