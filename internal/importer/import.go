package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sydlexius/lineup/internal/bus"
	"github.com/sydlexius/lineup/internal/entity"
	"github.com/sydlexius/lineup/internal/event"
	"github.com/sydlexius/lineup/internal/lineup"
	"github.com/sydlexius/lineup/internal/scrape"
)

// Options adjusts one import.
type Options struct {
	// Performances replaces extraction from the event description, e.g. with
	// entries read from a timetable.
	Performances []lineup.Performance
	// Festival forces festival classification.
	Festival bool
}

// Result summarizes one import.
type Result struct {
	EventID   string                `json:"event_id"`
	Title     string                `json:"title"`
	Created   bool                  `json:"created"`
	Promoters []*entity.Resolved    `json:"promoters,omitempty"`
	Venue     *entity.Resolved      `json:"venue,omitempty"`
	Artists   []*entity.Resolved    `json:"artists,omitempty"`
	Sets      int                   `json:"sets"`
	Genres    []string              `json:"genres,omitempty"`
	Festival  lineup.Classification `json:"festival"`
	Days      []lineup.FestivalDay  `json:"festival_days,omitempty"`
	// Errors lists the enrichment steps that were skipped.
	Errors []string `json:"errors,omitempty"`
}

func (r *Result) skip(step string, err error) {
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", step, err.Error()))
}

// ImportEvent scrapes sourceURL and stores the event with its promoters,
// venue, artist sets, genres and schedule. Items that fail validation are
// skipped; items that fail to resolve and failed enrichment steps are
// recorded in Result.Errors. Only scraping, cancellation and failures
// storing the event or its links abort the import.
func (im *Importer) ImportEvent(ctx context.Context, sourceURL string, opts Options) (*Result, error) {
	start := time.Now()

	sctx, cancel := context.WithTimeout(ctx, im.timeout)
	raw, err := im.scraper.Scrape(sctx, sourceURL)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("scraping %s: %w", sourceURL, err)
	}
	if raw.SourceURL == "" {
		raw.SourceURL = sourceURL
	}

	ev, created, err := im.events.Upsert(ctx, &event.Event{
		Title:       raw.Name,
		SourceURL:   raw.SourceURL,
		Start:       scrape.ParseTimestamp(raw.Start),
		End:         scrape.ParseTimestamp(raw.End),
		Description: raw.Description,
	})
	if err != nil {
		return nil, err
	}
	res := &Result{EventID: ev.ID, Title: ev.Title, Created: created}
	logger := im.logger.With(slog.String("event_id", ev.ID))

	if err := im.importPromoters(ctx, ev, raw.Hosts, res); err != nil {
		return res, err
	}
	if err := im.importVenue(ctx, ev, raw.Location, res); err != nil {
		return res, err
	}

	perfs := opts.Performances
	if perfs == nil {
		perfs = im.extractPerformances(ctx, raw.Description, res)
	}
	if err := im.importSets(ctx, ev, perfs, res); err != nil {
		return res, err
	}

	forced := opts.Festival || raw.Festival
	if !forced && ev.Metadata.Festival != nil {
		forced = ev.Metadata.Festival.Forced()
	}
	meta, err := im.segment(ctx, ev, perfs, forced)
	if err != nil {
		return res, err
	}
	res.Festival = *meta.Festival
	res.Days = meta.FestivalDays

	if res.Genres, err = im.aggregator.AssignEventGenres(ctx, ev.ID, meta.IsFestival()); err != nil {
		return res, fmt.Errorf("assigning event genres: %w", err)
	}
	for _, p := range res.Promoters {
		if _, err := im.aggregator.AssignPromoterGenres(ctx, p.ID); err != nil {
			return res, fmt.Errorf("assigning promoter genres: %w", err)
		}
	}

	im.publish(bus.EventImported, map[string]any{
		"id":      ev.ID,
		"title":   ev.Title,
		"created": created,
		"sets":    res.Sets,
	})
	logger.Info("event imported",
		slog.String("title", ev.Title),
		slog.Bool("created", created),
		slog.Int("artists", len(res.Artists)),
		slog.Int("sets", res.Sets),
		slog.Bool("festival", res.Festival.IsFestival),
		slog.Int("skipped", len(res.Errors)),
		slog.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (im *Importer) importPromoters(ctx context.Context, ev *event.Event, hosts []scrape.Host, res *Result) error {
	for _, h := range hosts {
		p, err := im.ResolvePromoter(ctx, h)
		if errors.Is(err, entity.ErrEmptyName) {
			im.logger.Info("skipping promoter without a name", slog.String("event_id", ev.ID))
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("resolving promoter %q: %w", h.Name, err)
			}
			im.degrade("promoter resolution", err, slog.String("name", h.Name))
			res.skip(fmt.Sprintf("promoter %q", h.Name), err)
			continue
		}
		if _, err := im.events.AddPromoter(ctx, ev.ID, p.ID); err != nil {
			return err
		}
		res.Promoters = append(res.Promoters, p)
	}
	return nil
}

func (im *Importer) importVenue(ctx context.Context, ev *event.Event, loc *scrape.Location, res *Result) error {
	if loc == nil {
		return nil
	}
	v, err := im.ResolveVenue(ctx, *loc)
	if errors.Is(err, entity.ErrEmptyName) {
		im.logger.Info("skipping venue without a name", slog.String("event_id", ev.ID))
		return nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("resolving venue %q: %w", loc.Name, err)
		}
		im.degrade("venue resolution", err, slog.String("name", loc.Name))
		res.skip(fmt.Sprintf("venue %q", loc.Name), err)
		return nil
	}
	if _, err := im.events.AddVenue(ctx, ev.ID, v.ID); err != nil {
		return err
	}
	res.Venue = v
	return nil
}

func (im *Importer) extractPerformances(ctx context.Context, description string, res *Result) []lineup.Performance {
	if im.extractor == nil || strings.TrimSpace(description) == "" {
		return nil
	}
	if err := im.pause(ctx); err != nil {
		res.skip("performance extraction", err)
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, im.timeout)
	defer cancel()
	perfs, err := im.extractor.ExtractPerformances(cctx, description)
	if err != nil {
		im.degrade("performance extraction", err)
		res.skip("performance extraction", err)
		return nil
	}
	return perfs
}

// importSets resolves each performance group's artists and stores the group
// as one artist set.
func (im *Importer) importSets(ctx context.Context, ev *event.Event, perfs []lineup.Performance, res *Result) error {
	seen := make(map[string]bool)
	for _, g := range lineup.GroupPerformances(perfs) {
		var ids []string
		for _, m := range g.Members {
			a, err := im.ResolveArtist(ctx, m.Name, m.CatalogHandle)
			if errors.Is(err, entity.ErrEmptyName) {
				im.logger.Info("skipping artist without a usable name",
					slog.String("event_id", ev.ID), slog.String("raw", m.Name))
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return fmt.Errorf("resolving artist %q: %w", m.Name, err)
				}
				im.degrade("artist resolution", err, slog.String("name", m.Name))
				res.skip(fmt.Sprintf("artist %q", m.Name), err)
				continue
			}
			ids = append(ids, a.ID)
			if !seen[a.ID] {
				seen[a.ID] = true
				res.Artists = append(res.Artists, a)
			}
		}
		if len(ids) == 0 {
			continue
		}

		set := &event.ArtistSet{
			EventID:    ev.ID,
			ArtistIDs:  ids,
			Stage:      g.Stage,
			Start:      setTime(g.Start, ev.Start),
			End:        setTime(g.End, ev.Start),
			Mode:       g.Mode,
			CustomName: g.CustomName,
		}
		if _, err := im.events.AddArtistSet(ctx, set); err != nil {
			return err
		}
		res.Sets++
	}
	return nil
}

// setTime resolves a performance time against the event start, which keeps
// its scraped offset across reloads. Times that cannot be resolved are
// stored as given.
func setTime(raw string, ref time.Time) string {
	t, ok := lineup.ResolveTime(raw, ref)
	if !ok {
		return strings.TrimSpace(raw)
	}
	return t.UTC().Format(time.RFC3339)
}
