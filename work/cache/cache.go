// Package cache holds parsed playlist snapshots and raw EPG documents so
// that repeated client requests do not translate into repeated upstream
// fetches.
package cache

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"

	"xtream-bridge/work/config"
	"xtream-bridge/work/fetcher"
	"xtream-bridge/work/logger"
	"xtream-bridge/work/metrics"
	"xtream-bridge/work/playlist"
	"xtream-bridge/work/utils"
)

type entry struct {
	snap      *playlist.Snapshot
	fetchedAt time.Time
}

// Snapshots caches one parsed playlist per source URL. Entries live for
// the configured TTL; while an entry is fresh every caller gets the same
// snapshot pointer. When a refresh fails the previous snapshot keeps being
// served, however old it is. Concurrent refreshes of the same source
// collapse into a single upstream fetch.
type Snapshots struct {
	fetch   fetcher.Fetcher
	config  *config.Config
	entries *xsync.MapOf[string, entry]
	group   singleflight.Group

	// now is swapped out by tests to step through TTL boundaries.
	now func() time.Time
}

// NewSnapshots creates an empty snapshot cache over the given fetcher.
func NewSnapshots(f fetcher.Fetcher, cfg *config.Config) *Snapshots {
	return &Snapshots{
		fetch:   f,
		config:  cfg,
		entries: xsync.NewMapOf[string, entry](),
		now:     time.Now,
	}
}

// Get returns the snapshot for the source, refreshing it when the cached
// copy is missing or older than the TTL. The returned snapshot is never
// nil: when a source has never been fetched successfully and the refresh
// fails too, callers get an empty snapshot together with the error.
func (c *Snapshots) Get(ctx context.Context, sourceURL string) (*playlist.Snapshot, error) {
	if e, ok := c.entries.Load(sourceURL); ok {
		if c.now().Sub(e.fetchedAt) < c.config.PlaylistTTL {
			metrics.CacheHits.WithLabelValues("playlist").Inc()
			return e.snap, nil
		}
	}
	metrics.CacheMisses.WithLabelValues("playlist").Inc()
	return c.refresh(ctx, sourceURL)
}

// Refresh fetches and re-parses the source unconditionally. The background
// refresh loop calls this ahead of the TTL so clients rarely pay the fetch
// latency themselves.
func (c *Snapshots) Refresh(ctx context.Context, sourceURL string) (*playlist.Snapshot, error) {
	return c.refresh(ctx, sourceURL)
}

func (c *Snapshots) refresh(ctx context.Context, sourceURL string) (*playlist.Snapshot, error) {
	v, err, _ := c.group.Do(sourceURL, func() (any, error) {
		// The refresh outlives the request that triggered it, so a client
		// disconnect mid-fetch does not poison the result for the callers
		// sharing this flight.
		text, err := c.fetch.Fetch(context.WithoutCancel(ctx), sourceURL)
		if err != nil {
			return nil, err
		}
		snap := playlist.Parse(text)
		snap.FetchedAt = c.now()
		c.entries.Store(sourceURL, entry{snap: snap, fetchedAt: snap.FetchedAt})
		metrics.PlaylistChannels.WithLabelValues(utils.LogURL(c.config, sourceURL)).Set(float64(len(snap.Channels)))
		logger.Info("refreshed playlist %s: %d channels, %d categories",
			utils.LogURL(c.config, sourceURL), len(snap.Channels), len(snap.Categories))
		return snap, nil
	})
	if err != nil {
		// Stale beats empty: keep serving the last good snapshot.
		if e, ok := c.entries.Load(sourceURL); ok {
			logger.Warn("refresh of %s failed, serving stale snapshot from %s: %v",
				utils.LogURL(c.config, sourceURL), e.fetchedAt.Format(time.RFC3339), err)
			metrics.StaleServes.WithLabelValues("playlist").Inc()
			return e.snap, nil
		}
		logger.Error("refresh of %s failed with nothing cached: %v", utils.LogURL(c.config, sourceURL), err)
		return playlist.Empty(), err
	}
	return v.(*playlist.Snapshot), nil
}
