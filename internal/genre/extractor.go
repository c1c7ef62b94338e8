package genre

import (
	"context"
	"regexp"
	"strings"

	"github.com/sydlexius/lineup/internal/provider"
)

// compoundSeparator splits tags such as "techno x house" or "house & garage".
var compoundSeparator = regexp.MustCompile(`\s+(?:x|&|\+)\s+`)

// Catalog returns an account's most recent uploads.
type Catalog interface {
	RecentTracks(ctx context.Context, userID string, limit int) ([]provider.CatalogEntry, error)
}

// Extractor collects candidate genre tags from a catalog account.
type Extractor struct {
	catalog Catalog
	limit   int
}

// NewExtractor creates an Extractor reading up to limit recent uploads.
func NewExtractor(catalog Catalog, limit int) *Extractor {
	if limit <= 0 {
		limit = 10
	}
	return &Extractor{catalog: catalog, limit: limit}
}

// Extract fetches the account's recent uploads and returns their candidate
// tags.
func (x *Extractor) Extract(ctx context.Context, userID string) ([]string, error) {
	entries, err := x.catalog.RecentTracks(ctx, userID, x.limit)
	if err != nil {
		return nil, err
	}
	return CandidateTags(entries), nil
}

// CandidateTags collects the genre field and the tag list of each entry.
// Compound tags are split, everything is case-folded and duplicates are
// dropped keeping first-seen order.
func CandidateTags(entries []provider.CatalogEntry) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(raw string) {
		for _, part := range compoundSeparator.Split(strings.ToLower(raw), -1) {
			tag := strings.Join(strings.Fields(strings.TrimLeft(strings.TrimSpace(part), "#")), " ")
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, tag)
		}
	}
	for _, e := range entries {
		add(e.Genre)
		for _, t := range SplitTagList(e.TagList) {
			add(t)
		}
	}
	return out
}

// SplitTagList splits a space-delimited tag list. Multi-word tags are
// wrapped in double quotes.
func SplitTagList(list string) []string {
	var (
		out    []string
		cur    strings.Builder
		quoted bool
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range list {
		switch {
		case r == '"':
			flush()
			quoted = !quoted
		case !quoted && (r == ' ' || r == '\t' || r == '\n'):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}
