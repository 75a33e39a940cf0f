package playlist

import (
	"strings"

	"github.com/grafana/regexp"
)

// DefaultCategory is assigned to channels whose #EXTINF line carries no
// group-title attribute.
const DefaultCategory = "Other"

var (
	attrRe   = regexp.MustCompile(`([a-zA-Z0-9-]+)="([^"]*)"`)
	urlTvgRe = regexp.MustCompile(`(?:url-tvg|x-tvg-url)="([^"]*)"`)
)

// Parse turns raw M3U Extended text into a Snapshot. It is tolerant by
// construction: malformed lines are skipped, a missing #EXTM3U header is not
// an error, and an #EXTINF entry without a following URL line still yields a
// channel with an empty StreamURL. Parse never fails; the worst input
// produces an empty snapshot.
func Parse(text string) *Snapshot {
	snap := &Snapshot{
		Channels:   []Channel{},
		Categories: []Category{},
		Source:     text,
	}

	categoryIDs := map[string]int{}
	lines := strings.Split(text, "\n")

	var pending *Channel

	for _, raw := range lines {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXTM3U"):
			if m := urlTvgRe.FindStringSubmatch(line); m != nil {
				snap.EPGURL = m[1]
			}

		case strings.HasPrefix(line, "#EXTINF"):
			// A new #EXTINF abandons any entry still waiting for its URL.
			if pending != nil {
				snap.addChannel(pending, categoryIDs)
			}
			pending = parseEXTINF(line)

		case strings.HasPrefix(line, "#"):
			// Unknown directive, skip.

		default:
			if pending != nil {
				pending.StreamURL = line
				snap.addChannel(pending, categoryIDs)
				pending = nil
			}
		}
	}

	// Trailing #EXTINF with no URL line.
	if pending != nil {
		snap.addChannel(pending, categoryIDs)
	}

	return snap
}

func (s *Snapshot) addChannel(ch *Channel, categoryIDs map[string]int) {
	if ch.CategoryName == "" {
		ch.CategoryName = DefaultCategory
	}

	id, ok := categoryIDs[ch.CategoryName]
	if !ok {
		id = len(s.Categories) + 1
		categoryIDs[ch.CategoryName] = id
		s.Categories = append(s.Categories, Category{ID: id, Name: ch.CategoryName})
	}
	ch.CategoryID = id

	ch.ID = len(s.Channels) + 1
	s.Channels = append(s.Channels, *ch)
}

// parseEXTINF extracts the attributes and display name from a single
// #EXTINF line. The name is everything after the last comma that sits
// outside double quotes, so attribute values containing commas do not split
// the name.
func parseEXTINF(line string) *Channel {
	ch := &Channel{}

	for _, m := range attrRe.FindAllStringSubmatch(line, -1) {
		switch strings.ToLower(m[1]) {
		case "tvg-logo":
			ch.LogoURL = m[2]
		case "tvg-id":
			ch.EPGChannelID = m[2]
		case "group-title":
			ch.CategoryName = m[2]
		}
	}

	inQuotes := false
	lastComma := -1
	for i, r := range line {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				lastComma = i
			}
		}
	}
	if lastComma >= 0 {
		ch.Name = strings.TrimSpace(line[lastComma+1:])
	}

	return ch
}
