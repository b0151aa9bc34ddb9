// Package extract runs per-platform extraction methods in fallback order.
package extract

import (
	"context"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
)

// Method names, in the order they are tried.
const (
	MethodPrimary   = "primary"
	MethodSecondary = "secondary"
	MethodTertiary  = "tertiary"
)

// Extractor is implemented by every platform variant.
// Primary returns an error when it could not produce a result.
type Extractor interface {
	Platform() domain.Platform
	Primary(ctx context.Context, url string) (*domain.ScrapedResult, error)
}

// SecondaryExtractor is implemented by variants with a first fallback.
type SecondaryExtractor interface {
	Secondary(ctx context.Context, url string) (*domain.ScrapedResult, error)
}

// TertiaryExtractor is implemented by variants with a second fallback.
type TertiaryExtractor interface {
	Tertiary(ctx context.Context, url string) (*domain.ScrapedResult, error)
}

// MethodFunc is one extraction method.
type MethodFunc func(ctx context.Context, url string) (*domain.ScrapedResult, error)

type method struct {
	name string
	fn   MethodFunc
}

// methods resolves the fallback chain of e from the capabilities it implements.
func methods(e Extractor) []method {
	chain := []method{{name: MethodPrimary, fn: e.Primary}}
	if s, ok := e.(SecondaryExtractor); ok {
		chain = append(chain, method{name: MethodSecondary, fn: s.Secondary})
	}
	if t, ok := e.(TertiaryExtractor); ok {
		chain = append(chain, method{name: MethodTertiary, fn: t.Tertiary})
	}
	return chain
}
