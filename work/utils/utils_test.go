package utils

import (
	"testing"

	"xtream-bridge/work/config"
)

func TestObfuscateURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"path and query masked", "http://host.example/secret/path?token=abc", "http://host.example/***?***"},
		{"host kept", "https://provider.tv/list.m3u", "https://provider.tv/***"},
		{"bare host", "http://host.example", "http://host.example"},
		{"unparseable input", "::bad::", "***OBFUSCATED***"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ObfuscateURL(tt.in); got != tt.want {
				t.Errorf("ObfuscateURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogURL(t *testing.T) {
	cfg := config.Default()

	cfg.ObfuscateURLs = true
	if got := LogURL(cfg, "http://h/secret.m3u"); got == "http://h/secret.m3u" {
		t.Error("URL not obfuscated with obfuscation enabled")
	}

	cfg.ObfuscateURLs = false
	if got := LogURL(cfg, "http://h/secret.m3u"); got != "http://h/secret.m3u" {
		t.Errorf("got %q, want the raw URL with obfuscation disabled", got)
	}
}

func TestStripContainerExtension(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"42.m3u8", "42"},
		{"42.ts", "42"},
		{"42", "42"},
		{"abc", "abc"},
		{".hidden", ".hidden"},
	}
	for _, tt := range tests {
		if got := StripContainerExtension(tt.in); got != tt.want {
			t.Errorf("StripContainerExtension(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
