package genre

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Caps bounds a consensus genre set.
type Caps struct {
	MaxGenres         int
	FestivalMaxGenres int
	MinOccurrences    int
	FallbackMax       int
}

// DefaultCaps returns the stock consensus bounds.
func DefaultCaps() Caps {
	return Caps{MaxGenres: 5, FestivalMaxGenres: 10, MinOccurrences: 2, FallbackMax: 3}
}

type tally struct {
	id    string
	count int
}

// Consensus picks the genre ids shared most often across children. Each
// child counts a genre at most once. Banned ids never appear in the result.
// When no genre reaches MinOccurrences the top FallbackMax ids are returned
// regardless of count.
func Consensus(children [][]string, banned map[string]bool, festival bool, caps Caps) []string {
	counts := make(map[string]int)
	for _, child := range children {
		seen := make(map[string]bool, len(child))
		for _, id := range child {
			if id == "" || seen[id] || banned[id] {
				continue
			}
			seen[id] = true
			counts[id]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	ranked := make([]tally, 0, len(counts))
	for id, n := range counts {
		ranked = append(ranked, tally{id: id, count: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].id < ranked[j].id
	})

	limit := caps.MaxGenres
	if festival {
		limit = caps.FestivalMaxGenres
	}
	var out []string
	for _, t := range ranked {
		if len(out) == limit {
			break
		}
		if t.count >= caps.MinOccurrences {
			out = append(out, t.id)
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, t := range ranked {
		if len(out) == caps.FallbackMax {
			break
		}
		out = append(out, t.id)
	}
	return out
}

// Aggregator persists consensus genre sets for events and promoters.
type Aggregator struct {
	store  *Service
	lists  Lists
	caps   Caps
	logger *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(store *Service, lists Lists, caps Caps, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:  store,
		lists:  lists,
		caps:   caps,
		logger: logger.With(slog.String("component", "genre-aggregator")),
	}
}

// AssignEventGenres links an event to the consensus genres of its artists
// and returns the consensus ids.
func (a *Aggregator) AssignEventGenres(ctx context.Context, eventID string, festival bool) ([]string, error) {
	children, err := a.store.EventArtistGenres(ctx, eventID)
	if err != nil {
		return nil, err
	}
	ids, err := a.consensus(ctx, children, festival)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if err := a.store.AddEventGenre(ctx, eventID, id); err != nil {
			return nil, err
		}
	}
	a.logger.Debug("event genres assigned",
		slog.String("event_id", eventID), slog.Int("artists", len(children)), slog.Int("genres", len(ids)))
	return ids, nil
}

// AssignPromoterGenres links a promoter to the consensus genres of its
// events and returns the consensus ids.
func (a *Aggregator) AssignPromoterGenres(ctx context.Context, promoterID string) ([]string, error) {
	children, err := a.store.PromoterEventGenres(ctx, promoterID)
	if err != nil {
		return nil, err
	}
	ids, err := a.consensus(ctx, children, false)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if err := a.store.AddPromoterGenre(ctx, promoterID, id); err != nil {
			return nil, err
		}
	}
	a.logger.Debug("promoter genres assigned",
		slog.String("promoter_id", promoterID), slog.Int("events", len(children)), slog.Int("genres", len(ids)))
	return ids, nil
}

func (a *Aggregator) consensus(ctx context.Context, children [][]string, festival bool) ([]string, error) {
	if len(children) == 0 {
		return nil, nil
	}
	banned, err := a.store.BannedIDs(ctx, a.lists.IsBannedGenre)
	if err != nil {
		return nil, fmt.Errorf("loading banned genres: %w", err)
	}
	return Consensus(children, banned, festival, a.caps), nil
}
