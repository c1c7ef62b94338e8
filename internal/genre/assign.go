package genre

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sydlexius/lineup/internal/normalize"
)

// Assignment is the result of deriving an artist's genres.
type Assignment struct {
	GenreIDs []string
	// Created holds genres inserted while processing this artist.
	Created []*Genre
}

// Assigner derives genres for artists from their catalog tags.
type Assigner struct {
	store     *Service
	extractor *Extractor
	validator *Validator
	logger    *slog.Logger
}

// NewAssigner creates an Assigner.
func NewAssigner(store *Service, extractor *Extractor, validator *Validator, logger *slog.Logger) *Assigner {
	return &Assigner{
		store:     store,
		extractor: extractor,
		validator: validator,
		logger:    logger.With(slog.String("component", "genre-assigner")),
	}
}

// AssignArtistGenres extracts candidate tags from the artist's catalog
// account, keeps the ones that name a genre and links the artist to them.
// A failed catalog fetch is returned. A failed description lookup only
// skips that tag.
func (a *Assigner) AssignArtistGenres(ctx context.Context, artistID, catalogUserID string) (*Assignment, error) {
	tags, err := a.extractor.Extract(ctx, catalogUserID)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog tags: %w", err)
	}

	res := &Assignment{}
	linked := make(map[string]bool)
	for _, tag := range tags {
		g, created, err := a.genreForTag(ctx, tag)
		if err != nil {
			return res, err
		}
		if g == nil || g.Banned || a.validator.lists.IsBannedGenre(g.Name) || linked[g.ID] {
			continue
		}
		if created {
			res.Created = append(res.Created, g)
		}
		if err := a.store.AddArtistGenre(ctx, artistID, g.ID); err != nil {
			return res, err
		}
		linked[g.ID] = true
		res.GenreIDs = append(res.GenreIDs, g.ID)
	}
	a.logger.Debug("artist genres assigned",
		slog.String("artist_id", artistID), slog.Int("tags", len(tags)), slog.Int("genres", len(res.GenreIDs)))
	return res, nil
}

// genreForTag maps one candidate tag to a stored genre, creating it when the
// tag validates and nothing matches. A nil genre means the tag was rejected.
// Only store failures are returned as errors.
func (a *Assigner) genreForTag(ctx context.Context, tag string) (*Genre, bool, error) {
	if canonical, ok := a.validator.lists.GenreAlias(tag); ok {
		return a.store.InsertOrGet(ctx, &Genre{Name: canonical, Slug: normalize.Slug(canonical)})
	}

	name := FormatName(tag)
	slug := normalize.Slug(name)
	if slug == "" {
		return nil, false, nil
	}
	existing, err := a.store.GetBySlug(ctx, slug)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	v, err := a.validator.Validate(ctx, tag)
	if err != nil {
		a.logger.Warn("genre lookup failed, skipping tag", slog.String("tag", tag), slog.String("error", err.Error()))
		return nil, false, nil
	}
	if !v.Accepted {
		a.logger.Debug("tag rejected", slog.String("tag", tag), slog.String("reason", v.Reason))
		return nil, false, nil
	}

	if byURL, err := a.store.GetByExternalURL(ctx, v.URL); err != nil {
		return nil, false, err
	} else if byURL != nil {
		return byURL, false, nil
	}
	return a.store.InsertOrGet(ctx, &Genre{
		Name:        name,
		Slug:        slug,
		Description: v.Description,
		ExternalURL: v.URL,
	})
}
