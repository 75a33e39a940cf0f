// Package rewrite adjusts URI lines inside HLS manifests so that segment
// and variant references fetched through the gateway resolve against the
// upstream that served the manifest.
package rewrite

import (
	"net/url"
	"strings"
)

// Manifest rewrites every URI line of an HLS manifest against baseURL, the
// URL the manifest itself was fetched from (after redirects). Three cases:
//
//   - absolute URIs (with a scheme) pass through untouched
//   - root-relative URIs ("/path") get baseURL's scheme and host
//   - everything else resolves against baseURL's directory
//
// Comment and tag lines starting with '#' pass through verbatim. Line
// endings are normalized to '\n'.
func Manifest(manifest, baseURL string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return manifest
	}

	lines := strings.Split(manifest, "\n")
	out := make([]string, 0, len(lines))

	for _, raw := range lines {
		line := strings.TrimSuffix(raw, "\r")
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			out = append(out, line)
			continue
		}
		out = append(out, Line(trimmed, base))
	}

	return strings.Join(out, "\n")
}

// Line rewrites a single URI against the parsed base URL.
func Line(uri string, base *url.URL) string {
	if hasScheme(uri) {
		return uri
	}
	if strings.HasPrefix(uri, "/") {
		return base.Scheme + "://" + base.Host + uri
	}

	ref, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	return base.ResolveReference(ref).String()
}

// hasScheme reports whether the URI starts with something like "http://".
// url.Parse accepts too much to be used as the test here; a bare segment
// name with a colon in it must not be treated as absolute accidentally,
// and in practice manifests only carry http and https.
func hasScheme(uri string) bool {
	lower := strings.ToLower(uri)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
