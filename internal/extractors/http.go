package extractors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/corpix/uarand"

	"github.com/MrSnakeDoc/mediabot/internal/utils"
)

const (
	maxJSONBytes = 4 << 20
	maxPageBytes = 1 << 20
)

// ErrNoMedia is returned by a method that ran fine but found nothing to send.
var ErrNoMedia = errors.New("no media found")

// browserHeaders are sent with page fetches; some sites serve an empty shell otherwise.
var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Upgrade-Insecure-Requests": "1",
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// web wraps an http.Client with the helpers every extractor needs.
type web struct {
	client *http.Client
}

func newWeb(client *http.Client) *web {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &web{client: client}
}

func (w *web) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", uarand.GetRandom())
	return req, nil
}

func (w *web) do(req *http.Request) (*http.Response, error) {
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", req.URL.Host, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		utils.Close(resp.Body)
		return nil, &StatusError{URL: req.URL.String(), Code: resp.StatusCode}
	}
	return resp, nil
}

// getJSON GETs url and decodes the body into v.
func (w *web) getJSON(ctx context.Context, url string, headers map[string]string, v any) error {
	req, err := w.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for k, val := range headers {
		req.Header.Set(k, val)
	}
	return w.decodeJSON(req, v)
}

func (w *web) decodeJSON(req *http.Request, v any) error {
	resp, err := w.do(req)
	if err != nil {
		return err
	}
	defer utils.Close(resp.Body)

	// Blocked requests often come back as an HTML login wall with status 200.
	ct := resp.Header.Get("Content-Type")
	if strings.Contains(ct, "text/html") && !strings.Contains(ct, "json") {
		return fmt.Errorf("expected JSON from %s, got %s", req.URL.Host, ct)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONBytes)).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Host, err)
	}
	return nil
}

// getDocument GETs an HTML page and returns the parsed document and the final URL after redirects.
func (w *web) getDocument(ctx context.Context, url string, headers map[string]string) (*goquery.Document, string, error) {
	req, err := w.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := w.do(req)
	if err != nil {
		return nil, "", err
	}
	defer utils.Close(resp.Body)

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, resp.Request.URL.String(), nil
}

// resolveRedirect returns the Location of a redirecting URL without following it.
// It returns url unchanged when there is no redirect.
func (w *web) resolveRedirect(ctx context.Context, url string, headers map[string]string) (string, error) {
	client := *w.client
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	req, err := w.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", url, err)
	}
	defer utils.Close(resp.Body)

	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		loc, err := resp.Location()
		if err != nil {
			return "", fmt.Errorf("redirect without location: %w", err)
		}
		return loc.String(), nil
	default:
		return url, nil
	}
}
