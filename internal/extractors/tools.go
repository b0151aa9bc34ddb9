package extractors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
)

var videoExts = map[string]bool{"mp4": true, "webm": true, "mkv": true, "mov": true, "avi": true, "flv": true, "m4v": true}

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec. The process is killed when ctx ends.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 500 {
			msg = msg[len(msg)-500:]
		}
		return nil, fmt.Errorf("%s failed: %w: %s", filepath.Base(name), err, msg)
	}
	return stdout.Bytes(), nil
}

// toolFile is one media file produced by an external tool.
type toolFile struct {
	Data    []byte
	Ext     string
	IsVideo bool
}

// toolResult is what an external tool downloaded plus the metadata it reported.
type toolResult struct {
	Title       string
	Description string
	Uploader    string
	Files       []toolFile
}

func (r *toolResult) caption() string {
	if r.Description != "" {
		return r.Description
	}
	return r.Title
}

// items converts downloaded files into pre-populated media items for url.
func (r *toolResult) items(url string) []domain.MediaItem {
	out := make([]domain.MediaItem, 0, len(r.Files))
	for _, f := range r.Files {
		kind := domain.MediaImage
		if f.IsVideo {
			kind = domain.MediaVideo
		}
		out = append(out, domain.MediaItem{URL: url, Kind: kind, Data: f.Data})
	}
	return out
}

// YtDlp drives the yt-dlp binary.
type YtDlp struct {
	Path          string
	Runner        Runner
	MaxBytes      int64
	SocketTimeout time.Duration
	Logger        logger.Logger // optional
}

// ytInfo is the subset of yt-dlp's info JSON we read.
type ytInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Uploader    string `json:"uploader"`
	Channel     string `json:"channel"`
	Creator     string `json:"creator"`
	URL         string `json:"url"`
	Ext         string `json:"ext"`
	Thumbnail   string `json:"thumbnail"`
	Formats     []struct {
		URL string `json:"url"`
	} `json:"formats"`
}

func (i *ytInfo) author() string {
	for _, s := range []string{i.Uploader, i.Channel, i.Creator} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (y *YtDlp) maxMB() int64 {
	mb := y.MaxBytes >> 20
	if mb < 1 {
		mb = 1
	}
	return mb
}

// Info returns metadata for url without downloading.
func (y *YtDlp) Info(ctx context.Context, url string, extra ...string) (*ytInfo, error) {
	args := []string{"--dump-json", "--no-download", "--no-playlist",
		"-f", fmt.Sprintf("best[filesize<%dM]/best", y.maxMB())}
	args = append(args, extra...)
	args = append(args, url)

	out, err := y.Runner.Run(ctx, y.Path, args...)
	if err != nil {
		return nil, err
	}
	var info ytInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}
	return &info, nil
}

// Download fetches url into a temp directory and returns the bytes.
// Signed CDN URLs (TikTok, Instagram, Facebook) only work this way.
func (y *YtDlp) Download(ctx context.Context, url string, extra ...string) (*toolResult, error) {
	dir, err := os.MkdirTemp("", "mediabot-ytdlp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	mb := y.maxMB()
	args := []string{
		"-o", filepath.Join(dir, "media.%(ext)s"),
		"--no-playlist",
		"-f", fmt.Sprintf("best[filesize<%dM]/best", mb),
		"--max-filesize", fmt.Sprintf("%dM", mb),
		"--write-info-json",
	}
	if y.SocketTimeout > 0 {
		args = append(args, "--socket-timeout", strconv.Itoa(int(y.SocketTimeout.Seconds())))
	}
	args = append(args, extra...)
	args = append(args, url)

	if _, err := y.Runner.Run(ctx, y.Path, args...); err != nil {
		return nil, err
	}

	files, meta, err := collectOutput(dir, y.MaxBytes, 0)
	if err != nil {
		return nil, err
	}

	var info ytInfo
	if meta != nil {
		if err := json.Unmarshal(meta, &info); err != nil {
			orNop(y.Logger).Debug("ytdlp_metadata_unreadable",
				logger.String("url", url),
				logger.Error(err))
		}
	}
	if len(files) > 1 {
		files = files[:1]
	}
	return &toolResult{
		Title:       info.Title,
		Description: info.Description,
		Uploader:    info.author(),
		Files:       files,
	}, nil
}

// GalleryDL drives the gallery-dl binary, used for image posts and carousels.
type GalleryDL struct {
	Path     string
	Runner   Runner
	MaxBytes int64
	Logger   logger.Logger // optional
}

type galleryMeta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Username    string `json:"username"`
	Uploader    string `json:"uploader"`
}

// Download fetches up to 10 files of the post at url.
func (g *GalleryDL) Download(ctx context.Context, url, cookiesFile string) (*toolResult, error) {
	dir, err := os.MkdirTemp("", "mediabot-gallerydl-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	args := []string{"--dest", dir, "--no-mtime", "--write-metadata", "--range", "1-10"}
	if cookiesFile != "" {
		args = append(args, "--cookies", cookiesFile)
	}
	args = append(args, url)

	if _, err := g.Runner.Run(ctx, g.Path, args...); err != nil {
		return nil, err
	}

	// gallery-dl leaves tiny placeholder files for unavailable items.
	files, meta, err := collectOutput(dir, g.MaxBytes, 1024)
	if err != nil {
		return nil, err
	}

	var m galleryMeta
	if meta != nil {
		if err := json.Unmarshal(meta, &m); err != nil {
			orNop(g.Logger).Debug("gallerydl_metadata_unreadable",
				logger.String("url", url),
				logger.Error(err))
		}
	}
	title := m.Description
	if title == "" {
		title = m.Title
	}
	uploader := m.Username
	if uploader == "" {
		uploader = m.Uploader
	}
	return &toolResult{
		Title:       title,
		Description: m.Description,
		Uploader:    uploader,
		Files:       files,
	}, nil
}

// collectOutput reads media files (sorted by path) and the first JSON sidecar under dir.
// Files larger than maxBytes or smaller than minBytes are skipped.
func collectOutput(dir string, maxBytes, minBytes int64) ([]toolFile, []byte, error) {
	var (
		paths []string
		meta  []byte
	)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".json") {
			if meta == nil {
				meta, _ = os.ReadFile(path)
			}
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan tool output: %w", err)
	}
	sort.Strings(paths)

	files := make([]toolFile, 0, len(paths))
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			continue
		}
		if maxBytes > 0 && st.Size() > maxBytes {
			continue
		}
		if st.Size() < minBytes || st.Size() == 0 {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(p), "."))
		files = append(files, toolFile{Data: data, Ext: ext, IsVideo: videoExts[ext]})
	}

	if len(files) == 0 {
		return nil, meta, errors.New("tool downloaded no usable media")
	}
	return files, meta, nil
}

func orNop(l logger.Logger) logger.Logger {
	if l == nil {
		return logger.Nop()
	}
	return l
}
