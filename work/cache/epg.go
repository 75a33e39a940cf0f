package cache

import (
	"context"

	"github.com/maypok86/otter/v2"
	"golang.org/x/sync/singleflight"

	"xtream-bridge/work/config"
	"xtream-bridge/work/fetcher"
	"xtream-bridge/work/logger"
	"xtream-bridge/work/metrics"
	"xtream-bridge/work/utils"
)

// EPG caches raw XMLTV documents keyed by their upstream URL. EPG files
// are large and change slowly, so they get their own store with a longer
// TTL than playlists and size-bounded eviction.
type EPG struct {
	fetch  fetcher.Fetcher
	config *config.Config
	store  *otter.Cache[string, string]
	group  singleflight.Group
}

// NewEPG creates an EPG document cache with expiry taken from the config.
func NewEPG(f fetcher.Fetcher, cfg *config.Config) *EPG {
	store := otter.Must(&otter.Options[string, string]{
		MaximumSize:      16,
		ExpiryCalculator: otter.ExpiryWriting[string, string](cfg.EPGTTL),
	})
	return &EPG{
		fetch:  f,
		config: cfg,
		store:  store,
	}
}

// Get returns the XMLTV document for the URL, fetching it on a miss.
// Unlike playlists there is no stale fallback: an expired entry is gone,
// and a failed fetch surfaces to the caller.
func (c *EPG) Get(ctx context.Context, epgURL string) (string, error) {
	if doc, ok := c.store.GetIfPresent(epgURL); ok {
		metrics.CacheHits.WithLabelValues("epg").Inc()
		return doc, nil
	}
	metrics.CacheMisses.WithLabelValues("epg").Inc()

	v, err, _ := c.group.Do(epgURL, func() (any, error) {
		doc, err := c.fetch.Fetch(context.WithoutCancel(ctx), epgURL)
		if err != nil {
			return nil, err
		}
		c.store.Set(epgURL, doc)
		logger.Debug("cached EPG %s (%d bytes)", utils.LogURL(c.config, epgURL), len(doc))
		return doc, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
