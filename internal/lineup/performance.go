// Package lineup groups raw performance entries into collaborative sets and
// turns an event's timing into a festival classification and day schedule.
package lineup

import (
	"strings"
	"time"
)

// Performance is one raw performance entry, as produced by the artist-name
// extractor or the timetable importer.
type Performance struct {
	ArtistIDs     []string `json:"artist_id"`
	ArtistName    string   `json:"name"`
	Start         string   `json:"time"`
	End           string   `json:"end_time"`
	CatalogHandle string   `json:"soundcloud"`
	Stage         string   `json:"stage"`
	Mode          string   `json:"performance_mode"`
	CustomName    string   `json:"custom_name,omitempty"`
}

// Member is one artist credited in a Group.
type Member struct {
	Name          string
	CatalogHandle string
}

// Group is one performance slot: every artist sharing the same stage, start,
// end and collaboration mode.
type Group struct {
	Stage      string
	Start      string
	End        string
	Mode       string
	CustomName string
	Members    []Member
}

// groupKey compares fields verbatim; an absent field is the empty string and
// never matches a literal value.
type groupKey struct {
	stage, start, end, mode string
}

// GroupPerformances clusters entries by (stage, start, end, mode), compared
// verbatim. Groups keep the order in which their first entry appeared.
// Entries without an artist name are dropped.
func GroupPerformances(perfs []Performance) []Group {
	index := make(map[groupKey]int)
	var groups []Group

	for _, p := range perfs {
		name := strings.TrimSpace(p.ArtistName)
		if name == "" {
			continue
		}
		k := groupKey{p.Stage, p.Start, p.End, p.Mode}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{
				Stage: p.Stage,
				Start: p.Start,
				End:   p.End,
				Mode:  p.Mode,
			})
		}
		g := &groups[i]
		if g.CustomName == "" {
			g.CustomName = p.CustomName
		}
		g.Members = append(g.Members, Member{Name: name, CatalogHandle: p.CatalogHandle})
	}
	return groups
}

// Stages returns the distinct non-empty stage names in first-seen order.
func Stages(perfs []Performance) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range perfs {
		s := strings.TrimSpace(p.Stage)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04",
}

var clockLayouts = []string{"15:04", "15:04:05", "15.04", "15h04"}

// ResolveTime parses a performance time. Full timestamps without a zone are
// read in ref's location. A bare clock time is placed on ref's date and rolls
// over to the next day when it would fall before ref, so after-midnight sets
// land after the event start. It reports false for empty or unparseable input
// and for clock times when ref is zero.
func ResolveTime(raw string, ref time.Time) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	loc := time.UTC
	if !ref.IsZero() {
		loc = ref.Location()
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	if ref.IsZero() {
		return time.Time{}, false
	}
	for _, layout := range clockLayouts {
		c, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		t := time.Date(ref.Year(), ref.Month(), ref.Day(), c.Hour(), c.Minute(), c.Second(), 0, loc)
		if t.Before(ref) {
			t = t.AddDate(0, 0, 1)
		}
		return t, true
	}
	return time.Time{}, false
}
