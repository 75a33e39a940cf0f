package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CacheHits counts lookups served straight from a cache. The "kind" label
// separates playlist snapshots from EPG documents.
var CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "xtream_bridge_cache_hits",
	Help: "Number of cache hits",
}, []string{"kind"})

// CacheMisses counts lookups that had to go upstream.
var CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "xtream_bridge_cache_misses",
	Help: "Number of cache misses",
}, []string{"kind"})

// StaleServes counts responses built from an expired snapshot because the
// refresh that should have replaced it failed.
var StaleServes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "xtream_bridge_stale_serves",
	Help: "Number of responses served from stale cache entries",
}, []string{"kind"})

// PlaylistChannels tracks the channel count of the most recent snapshot per
// source. A sudden drop to zero usually means the provider served an empty
// or truncated document.
var PlaylistChannels = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "xtream_bridge_playlist_channels",
	Help: "Channels in the latest playlist snapshot",
}, []string{"source"})

// APIRequests counts player_api.php calls per action and outcome.
var APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "xtream_bridge_api_requests",
	Help: "Number of Xtream API requests",
}, []string{"action", "status"})

// AuthFailures counts rejected credential checks.
var AuthFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "xtream_bridge_auth_failures",
	Help: "Number of failed authentication attempts",
})

// StreamRequests counts stream resolutions per mode. The "mode" label is
// "redirect" or "proxy"; "status" is "ok", "not_found" or "error".
var StreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "xtream_bridge_stream_requests",
	Help: "Number of stream requests",
}, []string{"mode", "status"})

// BytesRelayed counts bytes copied to clients by the proxy transport mode.
var BytesRelayed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "xtream_bridge_bytes_relayed",
	Help: "Total bytes relayed to clients in proxy mode",
})
