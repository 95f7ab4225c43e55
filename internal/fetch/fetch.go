// Package fetch retrieves source content and normalizes it into payloads.
// Each configured source type has its own fetcher; a router picks by type
// prefix. A shared rate limiter spaces requests across all sources.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/medkitt/medwatch/internal/config"
	"github.com/medkitt/medwatch/internal/types"
)

// Fetcher retrieves one source's current content.
type Fetcher interface {
	Fetch(ctx context.Context, sourceID string, src *config.Source) (*types.Payload, error)
}

// Client routes sources to fetchers and owns the shared HTTP transport.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	now        func() time.Time

	guideline  Fetcher
	alerts     Fetcher
	literature Fetcher
}

// New builds a client from scraper settings. The inter-request delay is
// enforced globally, not per source.
func New(scraper config.Scraper) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: scraper.RequestTimeout()},
		limiter:    rate.NewLimiter(rate.Every(scraper.Delay()), 1),
		userAgent:  scraper.UserAgent,
		now:        time.Now,
	}
	c.guideline = &guidelineFetcher{client: c}
	c.alerts = &alertFetcher{client: c}
	c.literature = &literatureFetcher{client: c, baseURL: eutilsBaseURL}
	return c
}

// Fetch routes a source to its fetcher by type prefix. Unknown types are a
// configuration error.
func (c *Client) Fetch(ctx context.Context, sourceID string, src *config.Source) (*types.Payload, error) {
	var f Fetcher
	switch {
	case strings.HasPrefix(src.Type, "cdc"):
		f = c.guideline
	case strings.HasPrefix(src.Type, "fda"):
		f = c.alerts
	case strings.HasPrefix(src.Type, "pubmed"):
		f = c.literature
	default:
		return nil, &types.ConfigError{Kind: "source type", ID: src.Type}
	}

	payload, err := f.Fetch(ctx, sourceID, src)
	if err != nil {
		return nil, &types.FetchError{SourceID: sourceID, Err: err}
	}
	return payload, nil
}

// get issues a rate-limited GET and returns the response body.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// selectorClasses splits a comma-separated class-selector hint into bare
// class names. Leading dots are stripped; empty entries are skipped.
func selectorClasses(hint string) []string {
	var classes []string
	for _, part := range strings.Split(hint, ",") {
		part = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), "."))
		if part != "" {
			classes = append(classes, part)
		}
	}
	return classes
}
