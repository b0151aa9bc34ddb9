package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
	"github.com/MrSnakeDoc/mediabot/internal/logger"
)

// DefaultMethodTimeout bounds a single extraction method.
const DefaultMethodTimeout = 90 * time.Second

var errNilResult = errors.New("method returned no result")

// Engine drives the fallback chain of the registered extractors.
type Engine struct {
	registry      *Registry
	logger        logger.Logger
	methodTimeout time.Duration
}

// NewEngine creates an engine. methodTimeout <= 0 disables the per-method deadline.
func NewEngine(registry *Registry, log logger.Logger, methodTimeout time.Duration) *Engine {
	return &Engine{
		registry:      registry,
		logger:        log,
		methodTimeout: methodTimeout,
	}
}

// Extract tries each method of the platform extractor in order and returns
// the first success. It never fails: when every method fails, or no
// extractor is registered, the placeholder result is returned.
func (e *Engine) Extract(ctx context.Context, platform domain.Platform, url string) *domain.ScrapedResult {
	ex, ok := e.registry.Lookup(platform)
	if !ok {
		e.logger.Warn("no_extractor_for_platform",
			logger.String("platform", platform.String()),
			logger.String("url", url))
		return domain.Placeholder(platform, url)
	}

	for _, m := range methods(ex) {
		start := time.Now()
		res, err := e.run(ctx, m, url)
		elapsed := time.Since(start)

		if err != nil {
			e.logger.Warn("extraction_method_failed",
				logger.String("platform", platform.String()),
				logger.String("url", url),
				logger.String("method", m.name),
				logger.Duration("elapsed", elapsed),
				logger.Error(err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		res.MethodUsed = m.name
		if res.Platform == "" {
			res.Platform = platform
		}
		if res.OriginalURL == "" {
			res.OriginalURL = url
		}
		e.logger.Info("media_extracted",
			logger.String("platform", platform.String()),
			logger.String("url", url),
			logger.String("method", m.name),
			logger.Duration("elapsed", elapsed),
			logger.Int("media_count", len(res.Items)))
		return res
	}

	e.logger.Error("all_extraction_methods_failed",
		logger.String("platform", platform.String()),
		logger.String("url", url))
	return domain.Placeholder(platform, url)
}

type outcome struct {
	res *domain.ScrapedResult
	err error
}

// run invokes one method under its own deadline. A panic or a nil result
// counts as a failure. If the method ignores its context, run still returns
// at the deadline and the method finishes in the background.
func (e *Engine) run(ctx context.Context, m method, url string) (*domain.ScrapedResult, error) {
	if e.methodTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.methodTimeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("method panicked: %v", r)}
			}
		}()
		res, err := m.fn(ctx, url)
		if err == nil && res == nil {
			err = errNilResult
		}
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("method timed out: %w", ctx.Err())
	}
}
