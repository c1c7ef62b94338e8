package importer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sydlexius/lineup/internal/bus"
	"github.com/sydlexius/lineup/internal/entity"
	"github.com/sydlexius/lineup/internal/scrape"
)

// ResolveArtist finds or creates the artist behind name. catalogHandle is
// the artist's catalog profile URL or handle, if known. A new artist, or a
// known one without genres, gets genres derived from its catalog account.
func (im *Importer) ResolveArtist(ctx context.Context, name, catalogHandle string) (*entity.Resolved, error) {
	hints := im.catalogHints(ctx, name, catalogHandle)
	res, err := im.resolver.Resolve(ctx, entity.KindArtist, name, hints)
	if err != nil {
		return nil, err
	}
	if res.Created {
		im.publish(bus.ArtistNew, map[string]any{"id": res.ID, "name": res.Name})
	}
	im.assignArtistGenres(ctx, res, hints.ExternalID)
	return res, nil
}

// catalogHints looks up the catalog profile behind handle. A failed lookup
// leaves only the page URL.
func (im *Importer) catalogHints(ctx context.Context, name, handle string) entity.Hints {
	page := catalogPage(handle)
	if page == "" {
		return entity.Hints{}
	}
	hints := entity.Hints{Platform: entity.PlatformSoundCloud, URL: page}
	if im.profiles == nil {
		return hints
	}
	if err := im.pause(ctx); err != nil {
		return hints
	}

	cctx, cancel := context.WithTimeout(ctx, im.timeout)
	defer cancel()
	profile, err := im.profiles.ResolveProfile(cctx, page)
	if err != nil {
		im.degrade("catalog profile", err, slog.String("artist", name), slog.String("page", page))
		return hints
	}
	hints.ExternalID = profile.ID
	if profile.PermalinkURL != "" {
		hints.URL = profile.PermalinkURL
	}
	hints.AvatarURL = profile.AvatarURL
	hints.Description = profile.Description
	return hints
}

func (im *Importer) assignArtistGenres(ctx context.Context, res *entity.Resolved, account string) {
	if im.assigner == nil {
		return
	}
	if account == "" {
		account = res.Links[entity.PlatformSoundCloud].ExternalID
	}
	if account == "" {
		return
	}
	if !res.Created {
		ids, err := im.genres.ArtistGenreIDs(ctx, res.ID)
		if err != nil {
			im.degrade("artist genres", err, slog.String("artist_id", res.ID))
			return
		}
		if len(ids) > 0 {
			return
		}
	}
	if err := im.pause(ctx); err != nil {
		return
	}

	a, err := im.assigner.AssignArtistGenres(ctx, res.ID, account)
	if a != nil {
		for _, g := range a.Created {
			im.publish(bus.GenreNew, map[string]any{"id": g.ID, "name": g.Name, "slug": g.Slug})
		}
	}
	if err != nil {
		im.degrade("artist genres", err, slog.String("artist_id", res.ID))
	}
}

// ResolvePromoter finds or creates the promoter behind an event host.
func (im *Importer) ResolvePromoter(ctx context.Context, host scrape.Host) (*entity.Resolved, error) {
	res, err := im.resolver.Resolve(ctx, entity.KindPromoter, host.Name, entity.Hints{
		ExternalID: host.ExternalID,
		URL:        host.URL,
		AvatarURL:  host.AvatarURL,
		PageURL:    host.URL,
	})
	if err != nil {
		return nil, err
	}
	if res.Created {
		im.publish(bus.PromoterNew, map[string]any{"id": res.ID, "name": res.Name})
	}
	return res, nil
}

// ResolveVenue finds or creates the venue behind an event location.
func (im *Importer) ResolveVenue(ctx context.Context, loc scrape.Location) (*entity.Resolved, error) {
	hints := entity.Hints{
		ExternalID:  loc.ExternalID,
		URL:         loc.URL,
		PageURL:     loc.URL,
		Address:     loc.Address,
		City:        loc.City,
		CountryCode: loc.CountryCode,
	}
	if c := loc.Coordinates; c != nil {
		lat, lng := c.Latitude, c.Longitude
		hints.Latitude, hints.Longitude = &lat, &lng
	}
	res, err := im.resolver.Resolve(ctx, entity.KindVenue, loc.Name, hints)
	if err != nil {
		return nil, err
	}
	if res.Created {
		im.publish(bus.VenueNew, map[string]any{"id": res.ID, "name": res.Name})
	}
	return res, nil
}

// catalogPage turns a catalog handle into a profile URL.
func catalogPage(handle string) string {
	h := strings.TrimSpace(handle)
	switch {
	case h == "":
		return ""
	case strings.HasPrefix(h, "https://"), strings.HasPrefix(h, "http://"):
		return h
	case strings.HasPrefix(h, "soundcloud.com/"), strings.HasPrefix(h, "www.soundcloud.com/"), strings.HasPrefix(h, "m.soundcloud.com/"):
		return "https://" + h
	default:
		return "https://soundcloud.com/" + strings.TrimPrefix(h, "@")
	}
}
