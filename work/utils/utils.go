package utils

import (
	"net/url"
	"strings"

	"xtream-bridge/work/config"
)

// LogURL returns either the original URL or an obfuscated version,
// depending on the configured obfuscation flag. Upstream playlist URLs
// frequently embed account tokens, so logs default to the masked form.
func LogURL(cfg *config.Config, raw string) string {
	if cfg.ObfuscateURLs {
		return ObfuscateURL(raw)
	}
	return raw
}

// ObfuscateURL masks the path, query and fragment of a URL, keeping only
// scheme and host visible.
//
// Example:
//
//	Input:  "http://example.com/secret/playlist.m3u?token=abc"
//	Output: "http://example.com/***?***"
func ObfuscateURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "***OBFUSCATED***"
	}
	result := u.Scheme + "://" + u.Host
	if u.Path != "" && u.Path != "/" {
		result += "/***"
	}
	if u.RawQuery != "" {
		result += "?***"
	}
	if u.Fragment != "" {
		result += "#***"
	}
	return result
}

// StripContainerExtension removes a trailing container-format suffix
// (".m3u8", ".ts", ...) from a stream id path segment. The suffix is
// advisory to the client and never participates in stream resolution.
func StripContainerExtension(id string) string {
	if idx := strings.LastIndex(id, "."); idx > 0 {
		return id[:idx]
	}
	return id
}
