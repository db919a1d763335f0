package assetcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Fetcher retrieves one asset.
type Fetcher interface {
	Fetch(ctx context.Context, asset string) (Entry, error)
}

// HTTPFetcher resolves relative assets against BaseURL and throttles requests.
type HTTPFetcher struct {
	Client  *http.Client
	BaseURL string
	Limiter *rate.Limiter
}

// NewHTTPFetcher allows rps requests per second. rps <= 0 disables throttling.
func NewHTTPFetcher(client *http.Client, baseURL string, rps float64) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	lim := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		lim = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &HTTPFetcher{Client: client, BaseURL: strings.TrimRight(baseURL, "/"), Limiter: lim}
}

func (f *HTTPFetcher) resolve(asset string) (string, error) {
	u, err := url.Parse(asset)
	if err != nil {
		return "", err
	}
	if u.IsAbs() {
		return asset, nil
	}
	if f.BaseURL == "" {
		return "", fmt.Errorf("relative asset %q without base url", asset)
	}
	if !strings.HasPrefix(asset, "/") {
		asset = "/" + asset
	}
	return f.BaseURL + asset, nil
}

// Fetch downloads asset. Only 2xx responses are accepted.
func (f *HTTPFetcher) Fetch(ctx context.Context, asset string) (Entry, error) {
	target, err := f.resolve(asset)
	if err != nil {
		return Entry{}, err
	}
	if err := f.Limiter.Wait(ctx); err != nil {
		return Entry{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Entry{}, err
	}
	// skip our own cache layer while installing
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := f.Client.Do(req)
	if err != nil {
		return Entry{}, fmt.Errorf("fetch %s: %w", asset, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Entry{}, fmt.Errorf("fetch %s: http %d", asset, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Entry{}, fmt.Errorf("fetch %s: %w", asset, err)
	}
	return Entry{
		URL:         asset,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		CachedAt:    time.Now().UTC(),
	}, nil
}
