// Package fetcher retrieves playlist and EPG documents from upstream
// sources over HTTP.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/ratelimit"

	"xtream-bridge/work/client"
	"xtream-bridge/work/config"
	"xtream-bridge/work/logger"
	"xtream-bridge/work/utils"
)

// Fetcher is the read side of an upstream source. The cache depends on this
// interface so tests can substitute canned documents.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// StatusError reports a fetch that reached the upstream but got a non-2xx
// answer. Callers distinguish it from transport errors when deciding
// whether to keep serving stale data.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d for %s", e.StatusCode, e.URL)
}

// HTTPFetcher fetches documents through the shared header-setting client,
// throttled per upstream host so a burst of refreshes cannot hammer a
// single provider.
type HTTPFetcher struct {
	client   *client.HeaderSettingClient
	config   *config.Config
	limiters *xsync.MapOf[string, ratelimit.Limiter]
}

// New creates a fetcher backed by the given client.
func New(hc *client.HeaderSettingClient, cfg *config.Config) *HTTPFetcher {
	return &HTTPFetcher{
		client:   hc,
		config:   cfg,
		limiters: xsync.NewMapOf[string, ratelimit.Limiter](),
	}
}

// Fetch retrieves the document at rawURL and returns its body as text.
// Non-2xx responses become a *StatusError. The body is read fully before
// returning so the connection can be reused.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	f.waitTurn(rawURL)

	ctx, cancel := context.WithTimeout(ctx, f.config.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", utils.LogURL(f.config, rawURL), err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", utils.LogURL(f.config, rawURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", &StatusError{URL: utils.LogURL(f.config, rawURL), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading body of %s: %w", utils.LogURL(f.config, rawURL), err)
	}

	logger.Debug("fetched %s (%d bytes)", utils.LogURL(f.config, rawURL), len(body))
	return string(body), nil
}

// waitTurn blocks until the per-host limiter allows another request.
func (f *HTTPFetcher) waitTurn(rawURL string) {
	if f.config.SourceRateLimit <= 0 {
		return
	}
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	rl, _ := f.limiters.LoadOrCompute(host, func() ratelimit.Limiter {
		return ratelimit.New(f.config.SourceRateLimit)
	})
	rl.Take()
}
