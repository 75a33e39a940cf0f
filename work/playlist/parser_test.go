package playlist

import (
	"fmt"
	"strings"
	"testing"
)

func TestParse_FullDocument(t *testing.T) {
	input := "#EXTM3U url-tvg=\"http://epg/x.xml\"\n" +
		"#EXTINF:-1 tvg-logo=\"http://l/logo.png\" group-title=\"News\",BBC News\n" +
		"http://upstream/bbc.m3u8\n" +
		"#EXTINF:-1 group-title=\"News\",Sky News\n" +
		"http://upstream/sky.m3u8\n"

	snap := Parse(input)

	if snap.EPGURL != "http://epg/x.xml" {
		t.Errorf("EPGURL = %q, want %q", snap.EPGURL, "http://epg/x.xml")
	}
	if len(snap.Categories) != 1 {
		t.Fatalf("got %d categories, want 1", len(snap.Categories))
	}
	if snap.Categories[0].ID != 1 || snap.Categories[0].Name != "News" {
		t.Errorf("category = %+v, want {1 News}", snap.Categories[0])
	}
	if len(snap.Channels) != 2 {
		t.Fatalf("got %d channels, want 2", len(snap.Channels))
	}

	bbc := snap.Channels[0]
	if bbc.ID != 1 || bbc.Name != "BBC News" || bbc.CategoryID != 1 ||
		bbc.StreamURL != "http://upstream/bbc.m3u8" || bbc.LogoURL != "http://l/logo.png" {
		t.Errorf("channel 1 = %+v", bbc)
	}
	sky := snap.Channels[1]
	if sky.ID != 2 || sky.Name != "Sky News" || sky.CategoryID != 1 ||
		sky.StreamURL != "http://upstream/sky.m3u8" || sky.LogoURL != "" {
		t.Errorf("channel 2 = %+v", sky)
	}
}

func TestParse_SequentialIDs(t *testing.T) {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&b, "#EXTINF:-1,Channel %d\nhttp://host/%d.ts\n", i, i)
	}

	snap := Parse(b.String())
	if len(snap.Channels) != 25 {
		t.Fatalf("got %d channels, want 25", len(snap.Channels))
	}
	for i, ch := range snap.Channels {
		if ch.ID != i+1 {
			t.Errorf("channel %d has id %d, want %d", i, ch.ID, i+1)
		}
	}
}

func TestParse_ReferentialIntegrity(t *testing.T) {
	input := "#EXTM3U\n" +
		"#EXTINF:-1 group-title=\"A\",one\nhttp://h/1\n" +
		"#EXTINF:-1 group-title=\"B\",two\nhttp://h/2\n" +
		"#EXTINF:-1 group-title=\"A\",three\nhttp://h/3\n" +
		"#EXTINF:-1,four\nhttp://h/4\n"

	snap := Parse(input)

	catIDs := map[int]string{}
	for _, c := range snap.Categories {
		catIDs[c.ID] = c.Name
	}
	for _, ch := range snap.Channels {
		if _, ok := catIDs[ch.CategoryID]; !ok {
			t.Errorf("channel %q references missing category %d", ch.Name, ch.CategoryID)
		}
	}

	// Duplicate group-title maps to the same id.
	if snap.Channels[0].CategoryID != snap.Channels[2].CategoryID {
		t.Errorf("channels one and three should share a category, got %d and %d",
			snap.Channels[0].CategoryID, snap.Channels[2].CategoryID)
	}
}

func TestParse_DefaultCategory(t *testing.T) {
	input := "#EXTM3U\n" +
		"#EXTINF:-1,first\nhttp://h/1\n" +
		"#EXTINF:-1,second\nhttp://h/2\n"

	snap := Parse(input)

	defaults := 0
	for _, c := range snap.Categories {
		if c.Name == DefaultCategory {
			defaults++
		}
	}
	if defaults != 1 {
		t.Errorf("default category appears %d times, want exactly 1", defaults)
	}
	for _, ch := range snap.Channels {
		if ch.CategoryName != DefaultCategory {
			t.Errorf("channel %q in category %q, want %q", ch.Name, ch.CategoryName, DefaultCategory)
		}
	}
}

func TestParse_Deterministic(t *testing.T) {
	input := "#EXTM3U\n" +
		"#EXTINF:-1 group-title=\"Zeta\",a\nhttp://h/1\n" +
		"#EXTINF:-1 group-title=\"Alpha\",b\nhttp://h/2\n" +
		"#EXTINF:-1 group-title=\"Mid\",c\nhttp://h/3\n"

	first := Parse(input)
	second := Parse(input)

	if len(first.Categories) != len(second.Categories) {
		t.Fatalf("category counts differ: %d vs %d", len(first.Categories), len(second.Categories))
	}
	for i := range first.Categories {
		if first.Categories[i] != second.Categories[i] {
			t.Errorf("category %d differs: %+v vs %+v", i, first.Categories[i], second.Categories[i])
		}
	}
	// First-seen order, never sorted.
	if first.Categories[0].Name != "Zeta" {
		t.Errorf("first category is %q, want Zeta", first.Categories[0].Name)
	}
}

func TestParse_EdgeCases(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, snap *Snapshot)
	}{
		{
			name:  "empty input",
			input: "",
			check: func(t *testing.T, snap *Snapshot) {
				if len(snap.Channels) != 0 || len(snap.Categories) != 0 {
					t.Errorf("got %d channels, %d categories", len(snap.Channels), len(snap.Categories))
				}
			},
		},
		{
			name:  "missing header",
			input: "#EXTINF:-1,no header\nhttp://h/1\n",
			check: func(t *testing.T, snap *Snapshot) {
				if len(snap.Channels) != 1 {
					t.Fatalf("got %d channels, want 1", len(snap.Channels))
				}
			},
		},
		{
			name:  "name containing commas",
			input: "#EXTM3U\n#EXTINF:-1 group-title=\"A, B\",News, Weather & Sport\nhttp://h/1\n",
			check: func(t *testing.T, snap *Snapshot) {
				if snap.Channels[0].Name != "Weather & Sport" {
					t.Errorf("name = %q", snap.Channels[0].Name)
				}
				if snap.Channels[0].CategoryName != "A, B" {
					t.Errorf("category = %q", snap.Channels[0].CategoryName)
				}
			},
		},
		{
			name:  "trailing entry without url",
			input: "#EXTM3U\n#EXTINF:-1,dangling\n",
			check: func(t *testing.T, snap *Snapshot) {
				if len(snap.Channels) != 1 {
					t.Fatalf("got %d channels, want 1", len(snap.Channels))
				}
				if snap.Channels[0].StreamURL != "" {
					t.Errorf("StreamURL = %q, want empty", snap.Channels[0].StreamURL)
				}
			},
		},
		{
			name: "consecutive extinf lines",
			input: "#EXTM3U\n#EXTINF:-1,first\n#EXTINF:-1,second\nhttp://h/2\n",
			check: func(t *testing.T, snap *Snapshot) {
				if len(snap.Channels) != 2 {
					t.Fatalf("got %d channels, want 2", len(snap.Channels))
				}
				if snap.Channels[0].StreamURL != "" {
					t.Errorf("first StreamURL = %q, want empty", snap.Channels[0].StreamURL)
				}
				if snap.Channels[1].StreamURL != "http://h/2" {
					t.Errorf("second StreamURL = %q", snap.Channels[1].StreamURL)
				}
				// No id gap despite the empty URL.
				if snap.Channels[0].ID != 1 || snap.Channels[1].ID != 2 {
					t.Errorf("ids = %d, %d", snap.Channels[0].ID, snap.Channels[1].ID)
				}
			},
		},
		{
			name: "comment lines between entry and url",
			input: "#EXTM3U\n#EXTINF:-1,ch\n#EXTGRP:ignored\nhttp://h/1\n",
			check: func(t *testing.T, snap *Snapshot) {
				if snap.Channels[0].StreamURL != "http://h/1" {
					t.Errorf("StreamURL = %q", snap.Channels[0].StreamURL)
				}
			},
		},
		{
			name:  "crlf line endings",
			input: "#EXTM3U\r\n#EXTINF:-1,win\r\nhttp://h/1\r\n",
			check: func(t *testing.T, snap *Snapshot) {
				if snap.Channels[0].Name != "win" || snap.Channels[0].StreamURL != "http://h/1" {
					t.Errorf("channel = %+v", snap.Channels[0])
				}
			},
		},
		{
			name:  "x-tvg-url variant",
			input: "#EXTM3U x-tvg-url=\"http://epg/alt.xml\"\n#EXTINF:-1,c\nhttp://h/1\n",
			check: func(t *testing.T, snap *Snapshot) {
				if snap.EPGURL != "http://epg/alt.xml" {
					t.Errorf("EPGURL = %q", snap.EPGURL)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Parse(tt.input))
		})
	}
}

func TestParse_RetainsSource(t *testing.T) {
	input := "#EXTM3U\n#EXTINF:-1,c\nhttp://h/1\n"
	snap := Parse(input)
	if snap.Source != input {
		t.Errorf("Source not retained verbatim")
	}
}

func TestChannelByID(t *testing.T) {
	snap := Parse("#EXTM3U\n#EXTINF:-1,a\nhttp://h/1\n#EXTINF:-1,b\nhttp://h/2\n")

	if ch := snap.ChannelByID(2); ch == nil || ch.Name != "b" {
		t.Errorf("ChannelByID(2) = %+v", ch)
	}
	if ch := snap.ChannelByID(99); ch != nil {
		t.Errorf("ChannelByID(99) = %+v, want nil", ch)
	}
	if ch := snap.ChannelByID(0); ch != nil {
		t.Errorf("ChannelByID(0) = %+v, want nil", ch)
	}
}
