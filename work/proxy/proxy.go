// Package proxy turns a resolved upstream stream URL into a client
// response, either by redirecting the player straight at the source or by
// relaying the bytes through this process.
package proxy

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/grafov/m3u8"

	"xtream-bridge/work/client"
	"xtream-bridge/work/config"
	"xtream-bridge/work/logger"
	"xtream-bridge/work/metrics"
	"xtream-bridge/work/rewrite"
	"xtream-bridge/work/store"
	"xtream-bridge/work/utils"
)

// relay buffers are reused across requests to keep the copy loop off the
// allocator during long streams.
var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 64*1024)
		return &b
	},
}

// Resolver serves stream requests according to the account's transport
// mode.
type Resolver struct {
	client *client.HeaderSettingClient
	config *config.Config
}

// New creates a resolver over the shared upstream client.
func New(hc *client.HeaderSettingClient, cfg *config.Config) *Resolver {
	return &Resolver{client: hc, config: cfg}
}

// Serve answers a stream request for the given upstream URL. An empty
// streamURL means the playlist entry had no URL line and the stream cannot
// be played.
func (p *Resolver) Serve(w http.ResponseWriter, r *http.Request, mode, streamURL string) {
	if streamURL == "" {
		metrics.StreamRequests.WithLabelValues(mode, "not_found").Inc()
		http.Error(w, "Stream not found", http.StatusNotFound)
		return
	}

	if mode != store.ModeProxy {
		metrics.StreamRequests.WithLabelValues(store.ModeRedirect, "ok").Inc()
		http.Redirect(w, r, streamURL, http.StatusFound)
		return
	}

	p.relay(w, r, streamURL)
}

func (p *Resolver) relay(w http.ResponseWriter, r *http.Request, streamURL string) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, streamURL, nil)
	if err != nil {
		metrics.StreamRequests.WithLabelValues(store.ModeProxy, "error").Inc()
		http.Error(w, "Bad stream URL", http.StatusBadGateway)
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		// Nothing has been written yet, so the player can still be pointed
		// at the source directly.
		logger.Warn("proxy fetch of %s failed, falling back to redirect: %v",
			utils.LogURL(p.config, streamURL), err)
		metrics.StreamRequests.WithLabelValues(store.ModeProxy, "error").Inc()
		http.Redirect(w, r, streamURL, http.StatusFound)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("upstream %s returned %d, falling back to redirect",
			utils.LogURL(p.config, streamURL), resp.StatusCode)
		metrics.StreamRequests.WithLabelValues(store.ModeProxy, "error").Inc()
		http.Redirect(w, r, streamURL, http.StatusFound)
		return
	}

	// Redirects may have moved us to another host; relative manifest URIs
	// resolve against where the document actually came from.
	finalURL := streamURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if looksLikeManifest(resp.Header.Get("Content-Type"), finalURL) {
		p.serveManifest(w, resp.Body, finalURL)
		return
	}

	p.copyStream(w, resp)
}

// serveManifest reads the whole document, confirms it parses as an HLS
// playlist and serves it with every URI line rebased onto the upstream.
// A document that fails to parse is passed through untouched rather than
// dropped; some providers serve slightly malformed manifests that players
// cope with fine.
func (p *Resolver) serveManifest(w http.ResponseWriter, body io.Reader, finalURL string) {
	raw, err := io.ReadAll(io.LimitReader(body, 8*1024*1024))
	if err != nil {
		metrics.StreamRequests.WithLabelValues(store.ModeProxy, "error").Inc()
		http.Error(w, "Upstream read failed", http.StatusBadGateway)
		return
	}

	text := string(raw)
	if _, _, err := m3u8.DecodeFrom(bytes.NewReader(raw), true); err == nil {
		text = rewrite.Manifest(text, finalURL)
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text))
	metrics.StreamRequests.WithLabelValues(store.ModeProxy, "ok").Inc()
}

func (p *Resolver) copyStream(w http.ResponseWriter, resp *http.Response) {
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "video/mp2t")
	}
	w.WriteHeader(http.StatusOK)

	bufp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bufp)

	n, err := io.CopyBuffer(w, resp.Body, *bufp)
	metrics.BytesRelayed.Add(float64(n))
	if err != nil {
		// Players drop connections constantly while zapping; log at debug
		// to keep the noise down.
		logger.Debug("stream copy ended after %d bytes: %v", n, err)
	}
	metrics.StreamRequests.WithLabelValues(store.ModeProxy, "ok").Inc()
}

// looksLikeManifest decides whether the response should be treated as an
// HLS playlist based on its content type and final URL.
func looksLikeManifest(contentType, finalURL string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "mpegurl") || strings.Contains(ct, "x-mpegurl") {
		return true
	}
	path := finalURL
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return strings.HasSuffix(strings.ToLower(path), ".m3u8") || strings.HasSuffix(strings.ToLower(path), ".m3u")
}
