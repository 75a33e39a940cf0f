package client

import (
	"fmt"
	"net/http"
	"time"

	"xtream-bridge/work/config"
)

// HeaderSettingClient wraps http.Client so every upstream request carries
// the configured identifying headers. Upstream playlist hosts commonly
// reject requests without a recognizable player User-Agent.
type HeaderSettingClient struct {
	Client *http.Client
	config *config.Config
}

// New builds a HeaderSettingClient tuned for long-lived streaming reads.
// There is no overall client timeout: the response-header phase is bounded
// by ResponseHeaderTimeout and callers bound the rest through their request
// context. Redirect hops are capped by the configured limit so a
// misbehaving upstream cannot loop forever.
func New(cfg *config.Config) *HeaderSettingClient {
	c := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		},
	}

	return &HeaderSettingClient{
		Client: c,
		config: cfg,
	}
}

// Do applies the configured headers and executes the request.
func (hsc *HeaderSettingClient) Do(req *http.Request) (*http.Response, error) {
	hsc.setHeaders(req)
	return hsc.Client.Do(req)
}

func (hsc *HeaderSettingClient) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", hsc.config.UserAgent)
	req.Header.Set("Accept", "*/*")

	if hsc.config.ReqOrigin != "" {
		req.Header.Set("Origin", hsc.config.ReqOrigin)
	}
	if hsc.config.ReqReferrer != "" {
		req.Header.Set("Referer", hsc.config.ReqReferrer)
	}
}
