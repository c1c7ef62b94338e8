package entity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sydlexius/lineup/internal/normalize"
)

// MatchType describes how Resolve found its entity.
type MatchType string

// Match types.
const (
	MatchExternalID MatchType = "external_id"
	MatchName       MatchType = "name"
	MatchFuzzy      MatchType = "fuzzy"
	MatchCreated    MatchType = "created"
)

// Hints is what the source page tells us about an entity besides its name.
type Hints struct {
	// Platform defaults to the kind's DefaultPlatform.
	Platform   string
	ExternalID string
	URL        string
	// AvatarURL is the platform thumbnail shown next to the name.
	AvatarURL string
	// PageURL is a web page whose rich preview may carry a better image.
	PageURL     string
	Description string

	// Venue only.
	Address     string
	City        string
	CountryCode string
	Latitude    *float64
	Longitude   *float64
}

func (h Hints) link() Link {
	return Link{ExternalID: h.ExternalID, URL: h.URL}
}

// Resolved is the outcome of a resolution.
type Resolved struct {
	ID       string          `json:"id"`
	Kind     Kind            `json:"kind"`
	Name     string          `json:"name"`
	ImageURL string          `json:"image_url,omitempty"`
	Links    map[string]Link `json:"links,omitempty"`
	Created  bool            `json:"created"`
	Match    MatchType       `json:"match"`
	Score    float64         `json:"score,omitempty"`
}

// ImageHost stores an image for an entity and returns its hosted URL.
type ImageHost interface {
	Host(ctx context.Context, sourceURL, kind, id string) (string, error)
}

// PreviewSource returns the rich-preview image of a web page.
type PreviewSource interface {
	PreviewImage(ctx context.Context, pageURL string) (string, error)
}

// ResolverDeps holds the resolver's collaborators. Images and Previews may
// be nil.
type ResolverDeps struct {
	Store      *Service
	Normalizer *normalize.Normalizer
	Matcher    normalize.Matcher
	Images     ImageHost
	Previews   PreviewSource
	// Timeout bounds each external call.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Resolver maps raw names to canonical entities, creating them on first sight.
type Resolver struct {
	store      *Service
	normalizer *normalize.Normalizer
	matcher    normalize.Matcher
	images     ImageHost
	previews   PreviewSource
	timeout    time.Duration
	logger     *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(d ResolverDeps) *Resolver {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{
		store:      d.Store,
		normalizer: d.Normalizer,
		matcher:    d.Matcher,
		images:     d.Images,
		previews:   d.Previews,
		timeout:    timeout,
		logger:     d.Logger.With(slog.String("component", "resolver")),
	}
}

// Resolve finds or creates the entity for rawName. Lookups run in order:
// external id from hints, exact normalized name, best fuzzy match at or
// above the threshold. Otherwise a new entity is created. Enrichment
// failures are logged and never fail the resolution.
func (r *Resolver) Resolve(ctx context.Context, kind Kind, rawName string, hints Hints) (*Resolved, error) {
	if kind.table() == "" {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	name := r.normalizer.Normalize(rawName)
	if name == "" {
		return nil, ErrEmptyName
	}
	if hints.Platform == "" {
		hints.Platform = kind.DefaultPlatform()
	}

	if hints.ExternalID != "" {
		e, err := r.store.GetByExternalID(ctx, kind, hints.Platform, hints.ExternalID)
		if err != nil {
			return nil, err
		}
		if e != nil {
			return r.hit(ctx, e, hints, MatchExternalID, 1), nil
		}
	}

	key := normalize.Fold(name)
	e, err := r.store.GetByNameKey(ctx, kind, key)
	if err != nil {
		return nil, err
	}
	if e != nil {
		return r.hit(ctx, e, hints, MatchName, 1), nil
	}

	candidates, err := r.store.Candidates(ctx, kind)
	if err != nil {
		return nil, err
	}
	if m, ok := r.matcher.Best(name, candidates); ok {
		e, err := r.store.GetByID(ctx, kind, m.ID)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("fuzzy match",
			slog.String("kind", string(kind)),
			slog.String("name", name),
			slog.String("matched", e.Name),
			slog.Float64("score", m.Score))
		return r.hit(ctx, e, hints, MatchFuzzy, m.Score), nil
	} else if m.Ambiguous {
		r.logger.Info("ambiguous fuzzy match, creating new entity",
			slog.String("kind", string(kind)),
			slog.String("name", name),
			slog.String("best", m.Name),
			slog.Float64("score", m.Score),
			slog.Float64("runner_up", m.RunnerUp))
	}

	return r.create(ctx, kind, name, key, hints)
}

func (r *Resolver) create(ctx context.Context, kind Kind, name, key string, hints Hints) (*Resolved, error) {
	e, created, err := r.store.InsertOrGet(ctx, &Entity{
		Kind:        kind,
		Name:        name,
		NameKey:     key,
		Description: hints.Description,
		Address:     hints.Address,
		City:        hints.City,
		CountryCode: hints.CountryCode,
		Latitude:    hints.Latitude,
		Longitude:   hints.Longitude,
	})
	if err != nil {
		return nil, err
	}
	if !created {
		// Another importer created the same name first.
		return r.hit(ctx, e, hints, MatchName, 1), nil
	}

	if hints.ExternalID != "" || hints.URL != "" {
		added, err := r.store.AddLink(ctx, kind, e.ID, hints.Platform, hints.link())
		if err != nil {
			return nil, err
		}
		if added {
			e.Links[hints.Platform] = hints.link()
		} else if hints.ExternalID != "" {
			// The external id was claimed by a concurrent insert under a
			// different name; keep that row and drop ours.
			owner, err := r.store.GetByExternalID(ctx, kind, hints.Platform, hints.ExternalID)
			if err != nil {
				return nil, err
			}
			if owner != nil && owner.ID != e.ID {
				if err := r.store.Delete(ctx, kind, e.ID); err != nil {
					return nil, err
				}
				return r.hit(ctx, owner, hints, MatchExternalID, 1), nil
			}
		}
	}

	r.logger.Info("created entity",
		slog.String("kind", string(kind)),
		slog.String("id", e.ID),
		slog.String("name", e.Name))

	r.enrichImage(ctx, e, hints)
	res := resolved(e, MatchCreated, 1)
	res.Created = true
	return res, nil
}

// hit applies the cache-hit side effects: merge a missing link and replace
// a missing or low-quality image.
func (r *Resolver) hit(ctx context.Context, e *Entity, hints Hints, match MatchType, score float64) *Resolved {
	if _, ok := e.Links[hints.Platform]; !ok && (hints.ExternalID != "" || hints.URL != "") {
		added, err := r.store.AddLink(ctx, e.Kind, e.ID, hints.Platform, hints.link())
		switch {
		case err != nil:
			r.logger.Warn("merging link failed",
				slog.String("kind", string(e.Kind)),
				slog.String("id", e.ID),
				slog.String("error", err.Error()))
		case added:
			if e.Links == nil {
				e.Links = map[string]Link{}
			}
			e.Links[hints.Platform] = hints.link()
		}
	}

	if needsImage(e.ImageURL) {
		r.enrichImage(ctx, e, hints)
	}
	return resolved(e, match, score)
}

func resolved(e *Entity, match MatchType, score float64) *Resolved {
	return &Resolved{
		ID:       e.ID,
		Kind:     e.Kind,
		Name:     e.Name,
		ImageURL: e.ImageURL,
		Links:    e.Links,
		Match:    match,
		Score:    score,
	}
}
