package playlist

import "time"

// Channel is a single playlist entry. Ids are assigned sequentially in
// document order and are only meaningful within the snapshot that produced
// them: a re-fetch renumbers channels if the upstream reorders lines.
type Channel struct {
	ID           int    // sequential id starting at 1, no gaps
	Name         string // display name, text after the last comma of the #EXTINF line
	LogoURL      string // tvg-logo attribute, optional
	CategoryID   int    // id of the category this channel belongs to
	CategoryName string // group-title attribute, DefaultCategory when absent
	EPGChannelID string // tvg-id attribute, optional
	StreamURL    string // upstream URL, empty when the entry had no URL line
}

// Category is a group-title value lifted into its own entity. Ids follow
// first-appearance order in the source document, starting at 1.
type Category struct {
	ID   int
	Name string
}

// Snapshot is an immutable parse result and the unit of caching. A refresh
// produces a new Snapshot; existing ones are never mutated.
type Snapshot struct {
	Channels   []Channel
	Categories []Category
	EPGURL     string    // url-tvg attribute from the #EXTM3U header, optional
	FetchedAt  time.Time // set by the cache when the snapshot is stored
	Source     string    // raw playlist text, re-served verbatim by get.php
}

// ChannelByID returns the channel with the given id, or nil when the id is
// not present in this snapshot.
func (s *Snapshot) ChannelByID(id int) *Channel {
	// Ids are sequential from 1, so the common case is a direct index.
	if id >= 1 && id <= len(s.Channels) && s.Channels[id-1].ID == id {
		return &s.Channels[id-1]
	}
	for i := range s.Channels {
		if s.Channels[i].ID == id {
			return &s.Channels[i]
		}
	}
	return nil
}

// Empty returns a snapshot with no channels or categories. The cache serves
// it when a source has never been fetched successfully.
func Empty() *Snapshot {
	return &Snapshot{
		Channels:   []Channel{},
		Categories: []Category{},
	}
}
