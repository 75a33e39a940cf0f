// Package filter narrows playlist snapshots to the channels a user is
// allowed to see, driven by per-account regular expressions.
package filter

import (
	"fmt"

	"github.com/grafana/regexp"

	"xtream-bridge/work/playlist"
)

// Filter holds compiled include/exclude patterns. A nil Filter, or one with
// no patterns, passes everything through.
type Filter struct {
	include *regexp.Regexp
	exclude *regexp.Regexp
}

// Compile builds a filter from the two pattern strings. Empty strings mean
// "no constraint". Patterns match against the channel name and the category
// name, case-insensitively.
func Compile(include, exclude string) (*Filter, error) {
	f := &Filter{}
	var err error
	if include != "" {
		if f.include, err = regexp.Compile("(?i)" + include); err != nil {
			return nil, fmt.Errorf("compiling include pattern: %w", err)
		}
	}
	if exclude != "" {
		if f.exclude, err = regexp.Compile("(?i)" + exclude); err != nil {
			return nil, fmt.Errorf("compiling exclude pattern: %w", err)
		}
	}
	return f, nil
}

// Allows reports whether the channel survives the filter. Exclude wins over
// include when both match.
func (f *Filter) Allows(ch *playlist.Channel) bool {
	if f == nil {
		return true
	}
	if f.exclude != nil && (f.exclude.MatchString(ch.Name) || f.exclude.MatchString(ch.CategoryName)) {
		return false
	}
	if f.include != nil {
		return f.include.MatchString(ch.Name) || f.include.MatchString(ch.CategoryName)
	}
	return true
}

// Apply returns a new snapshot containing only the channels the filter
// allows. Channel and category ids are preserved from the source snapshot
// so stream URLs handed out before filtering stay valid; categories left
// with no channels are dropped. The original snapshot is never modified.
func (f *Filter) Apply(snap *playlist.Snapshot) *playlist.Snapshot {
	if f == nil || (f.include == nil && f.exclude == nil) {
		return snap
	}

	out := &playlist.Snapshot{
		Channels:   make([]playlist.Channel, 0, len(snap.Channels)),
		Categories: []playlist.Category{},
		EPGURL:     snap.EPGURL,
		FetchedAt:  snap.FetchedAt,
		Source:     snap.Source,
	}

	usedCats := map[int]bool{}
	for i := range snap.Channels {
		if f.Allows(&snap.Channels[i]) {
			out.Channels = append(out.Channels, snap.Channels[i])
			usedCats[snap.Channels[i].CategoryID] = true
		}
	}
	for _, cat := range snap.Categories {
		if usedCats[cat.ID] {
			out.Categories = append(out.Categories, cat)
		}
	}
	return out
}
