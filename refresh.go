package main

import (
	"context"
	"time"

	"github.com/panjf2000/ants/v2"

	"xtream-bridge/work/cache"
	"xtream-bridge/work/config"
	"xtream-bridge/work/logger"
	"xtream-bridge/work/store"
	"xtream-bridge/work/utils"
)

// refresher re-warms playlist snapshots in the background so clients almost
// never block on an upstream fetch. It refreshes the default playlist plus
// every distinct per-account playlist URL.
type refresher struct {
	config    *config.Config
	store     *store.Store
	snapshots *cache.Snapshots
	pool      *ants.Pool
}

func newRefresher(cfg *config.Config, db *store.Store, snaps *cache.Snapshots, pool *ants.Pool) *refresher {
	return &refresher{
		config:    cfg,
		store:     db,
		snapshots: snaps,
		pool:      pool,
	}
}

// start runs the periodic refresh and returns a stop function.
func (r *refresher) start() func() {
	ticker := time.NewTicker(r.config.RefreshInterval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				r.warm()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}

// warm submits one refresh task per distinct source URL to the worker pool.
func (r *refresher) warm() {
	for _, src := range r.sourceURLs() {
		url := src
		err := r.pool.Submit(func() {
			if _, err := r.snapshots.Refresh(context.Background(), url); err != nil {
				logger.Warn("background refresh of %s failed: %v", utils.LogURL(r.config, url), err)
			}
		})
		if err != nil {
			logger.Warn("submitting refresh task: %v", err)
		}
	}
}

func (r *refresher) sourceURLs() []string {
	seen := map[string]bool{}
	var urls []string
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}

	add(r.config.M3UURL)

	users, err := r.store.ListActiveUsers()
	if err != nil {
		logger.Warn("listing users for refresh: %v", err)
		return urls
	}
	for _, u := range users {
		add(u.PlaylistURL)
	}
	return urls
}
