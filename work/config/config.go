package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config holds all runtime settings for the bridge. It is built once by the
// composition root and passed by reference to every component; there is no
// package-level cached instance so tests can construct independent configs.
type Config struct {
	ListenAddr      string        // address:port the HTTP server binds to
	BaseURL         string        // externally visible base URL, used in generated stream addresses
	M3UURL          string        // upstream playlist URL, required
	EPGURL          string        // upstream XMLTV URL, overrides the playlist's url-tvg when set
	LogLevel        string        // debug | info | warn | error
	ObfuscateURLs   bool          // mask upstream URLs in log output
	UserAgent       string        // identifying header sent on upstream requests
	ReqOrigin       string        // optional Origin header for upstream requests
	ReqReferrer     string        // optional Referer header for upstream requests
	PlaylistTTL     time.Duration // cache lifetime for parsed playlist snapshots
	EPGTTL          time.Duration // cache lifetime for EPG documents, independent of PlaylistTTL
	FetchTimeout    time.Duration // per-request upstream timeout (connection + headers)
	MaxRedirects    int           // upstream redirect hop limit
	WorkerThreads   int           // size of the background refresh worker pool
	RefreshInterval time.Duration // how often the background refresh re-warms playlists
	SourceRateLimit int           // upstream requests per second, per source URL
	DatabasePath    string        // SQLite user store location
	UsersSeedPath   string        // optional JSON users file imported on first run
}

// configFile is the on-disk JSON shape. Duration fields are strings
// ("5m", "30s") and parsed into time.Duration values.
type configFile struct {
	ListenAddr      string `json:"listenAddr"`
	BaseURL         string `json:"baseURL"`
	M3UURL          string `json:"m3uUrl"`
	EPGURL          string `json:"epgUrl"`
	LogLevel        string `json:"logLevel"`
	ObfuscateURLs   bool   `json:"obfuscateUrls"`
	UserAgent       string `json:"userAgent"`
	ReqOrigin       string `json:"reqOrigin"`
	ReqReferrer     string `json:"reqReferrer"`
	PlaylistTTL     string `json:"playlistTTL"`
	EPGTTL          string `json:"epgTTL"`
	FetchTimeout    string `json:"fetchTimeout"`
	MaxRedirects    int    `json:"maxRedirects"`
	WorkerThreads   int    `json:"workerThreads"`
	RefreshInterval string `json:"refreshInterval"`
	SourceRateLimit int    `json:"sourceRateLimit"`
	DatabasePath    string `json:"databasePath"`
	UsersSeedPath   string `json:"usersSeedPath"`
}

// Load reads configuration from the given JSON file, falling back to
// defaults when the file is missing. Invalid duration strings are an error;
// a missing file is not.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cf configFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	if err := cfg.apply(&cf); err != nil {
		return nil, err
	}
	cfg.validate()
	return cfg, nil
}

// Default returns a baseline configuration with sensible values for every
// field. The playlist and EPG caches deliberately run on separate TTLs.
func Default() *Config {
	return &Config{
		ListenAddr:      ":8080",
		BaseURL:         "http://localhost:8080",
		LogLevel:        "info",
		ObfuscateURLs:   true,
		UserAgent:       "VLC/3.0.18 LibVLC/3.0.18",
		PlaylistTTL:     5 * time.Minute,
		EPGTTL:          10 * time.Minute,
		FetchTimeout:    30 * time.Second,
		MaxRedirects:    5,
		WorkerThreads:   8,
		RefreshInterval: 6 * time.Hour,
		SourceRateLimit: 5,
		DatabasePath:    "/settings/users.db",
		UsersSeedPath:   "/settings/users.json",
	}
}

func (c *Config) apply(cf *configFile) error {
	if cf.ListenAddr != "" {
		c.ListenAddr = cf.ListenAddr
	}
	if cf.BaseURL != "" {
		c.BaseURL = cf.BaseURL
	}
	if cf.LogLevel != "" {
		c.LogLevel = cf.LogLevel
	}
	if cf.M3UURL != "" {
		c.M3UURL = cf.M3UURL
	}
	if cf.EPGURL != "" {
		c.EPGURL = cf.EPGURL
	}
	c.ObfuscateURLs = cf.ObfuscateURLs
	if cf.UserAgent != "" {
		c.UserAgent = cf.UserAgent
	}
	c.ReqOrigin = cf.ReqOrigin
	c.ReqReferrer = cf.ReqReferrer
	if cf.MaxRedirects > 0 {
		c.MaxRedirects = cf.MaxRedirects
	}
	if cf.WorkerThreads > 0 {
		c.WorkerThreads = cf.WorkerThreads
	}
	if cf.SourceRateLimit > 0 {
		c.SourceRateLimit = cf.SourceRateLimit
	}
	if cf.DatabasePath != "" {
		c.DatabasePath = cf.DatabasePath
	}
	if cf.UsersSeedPath != "" {
		c.UsersSeedPath = cf.UsersSeedPath
	}

	var err error
	if cf.PlaylistTTL != "" {
		if c.PlaylistTTL, err = time.ParseDuration(cf.PlaylistTTL); err != nil {
			return fmt.Errorf("invalid playlistTTL: %w", err)
		}
	}
	if cf.EPGTTL != "" {
		if c.EPGTTL, err = time.ParseDuration(cf.EPGTTL); err != nil {
			return fmt.Errorf("invalid epgTTL: %w", err)
		}
	}
	if cf.FetchTimeout != "" {
		if c.FetchTimeout, err = time.ParseDuration(cf.FetchTimeout); err != nil {
			return fmt.Errorf("invalid fetchTimeout: %w", err)
		}
	}
	if cf.RefreshInterval != "" {
		if c.RefreshInterval, err = time.ParseDuration(cf.RefreshInterval); err != nil {
			return fmt.Errorf("invalid refreshInterval: %w", err)
		}
	}
	return nil
}

// validate clamps out-of-range values back to their defaults.
func (c *Config) validate() {
	def := Default()
	if c.PlaylistTTL <= 0 {
		c.PlaylistTTL = def.PlaylistTTL
	}
	if c.EPGTTL <= 0 {
		c.EPGTTL = def.EPGTTL
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = def.FetchTimeout
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = def.MaxRedirects
	}
	if c.WorkerThreads <= 0 {
		c.WorkerThreads = def.WorkerThreads
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = def.RefreshInterval
	}
	if c.SourceRateLimit <= 0 {
		c.SourceRateLimit = def.SourceRateLimit
	}
	if c.UserAgent == "" {
		c.UserAgent = def.UserAgent
	}
}
