// Package download fetches media bytes with a process-wide concurrency bound.
package download

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
)

const (
	DefaultMaxConcurrent = 3
	DefaultTimeout       = 30 * time.Second
	DefaultMaxFileSizeMB = 50
)

// Options configures a Downloader.
type Options struct {
	MaxConcurrent int           // global cap on in-flight fetches
	Timeout       time.Duration // per item
	MaxBytes      int64         // size ceiling per item
}

// Downloader fills in missing media bytes.
//
// One Downloader is shared by every request, so MaxConcurrent bounds
// the whole process, not a single call.
type Downloader struct {
	fetcher  Fetcher
	sem      *semaphore.Weighted
	timeout  time.Duration
	maxBytes int64
	logger   logger.Logger
}

// New creates a Downloader. Zero values fall back to defaults.
func New(fetcher Fetcher, opts Options, log logger.Logger) *Downloader {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxFileSizeMB << 20
	}
	return &Downloader{
		fetcher:  fetcher,
		sem:      semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		timeout:  opts.Timeout,
		maxBytes: opts.MaxBytes,
		logger:   log,
	}
}

// Resolve returns items with their bytes populated, in input order.
// Items that already carry data pass through untouched. Items that fail
// or exceed the size ceiling are dropped. The input slice is not modified.
func (d *Downloader) Resolve(ctx context.Context, items []domain.MediaItem) []domain.MediaItem {
	data := make([][]byte, len(items))

	var g errgroup.Group
	for i, item := range items {
		if item.Downloaded() {
			data[i] = item.Data
			continue
		}
		g.Go(func() error {
			data[i] = d.fetch(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.MediaItem, 0, len(items))
	for i, item := range items {
		if data[i] == nil {
			continue
		}
		item.Data = data[i]
		out = append(out, item)
	}
	return out
}

func (d *Downloader) fetch(ctx context.Context, item domain.MediaItem) []byte {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.logger.Warn("media_download_skipped",
			logger.String("url", item.URL),
			logger.Error(err))
		return nil
	}
	defer d.sem.Release(1)

	fetchCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	b, err := d.fetcher.Fetch(fetchCtx, item.URL, d.maxBytes)
	if err == nil && int64(len(b)) > d.maxBytes {
		err = ErrTooLarge
	}
	switch {
	case errors.Is(err, ErrTooLarge):
		d.logger.Warn("media_too_large",
			logger.String("url", item.URL),
			logger.Int64("limit_bytes", d.maxBytes))
		return nil
	case err != nil:
		d.logger.Error("media_download_failed",
			logger.String("url", item.URL),
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err))
		return nil
	case len(b) == 0:
		return nil
	}

	d.logger.Debug("media_downloaded",
		logger.String("url", item.URL),
		logger.Int("bytes", len(b)),
		logger.Duration("elapsed", time.Since(start)))
	return b
}
