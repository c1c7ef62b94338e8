package importer

import (
	"context"
	"fmt"

	"github.com/sydlexius/lineup/internal/entity"
	"github.com/sydlexius/lineup/internal/event"
	"github.com/sydlexius/lineup/internal/lineup"
)

// AssignEventGenres links an event to the consensus genres of its artists.
// Festivals get the larger cap.
func (im *Importer) AssignEventGenres(ctx context.Context, eventID string) ([]string, error) {
	ev, err := im.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return im.aggregator.AssignEventGenres(ctx, ev.ID, ev.Metadata.IsFestival())
}

// AssignPromoterGenres links a promoter to the consensus genres of its events.
func (im *Importer) AssignPromoterGenres(ctx context.Context, promoterID string) ([]string, error) {
	return im.aggregator.AssignPromoterGenres(ctx, promoterID)
}

// SegmentFestival classifies the event and stores its stage list and, for a
// festival, the day schedule derived from perfs. A previously forced
// classification is kept, as are the stored stages and days when perfs is
// empty.
func (im *Importer) SegmentFestival(ctx context.Context, eventID string, perfs []lineup.Performance) (*event.Metadata, error) {
	ev, err := im.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	forced := ev.Metadata.Festival != nil && ev.Metadata.Festival.Forced()
	return im.segment(ctx, ev, perfs, forced)
}

func (im *Importer) segment(ctx context.Context, ev *event.Event, perfs []lineup.Performance, forced bool) (*event.Metadata, error) {
	venue, err := im.venueName(ctx, ev.ID)
	if err != nil {
		return nil, err
	}
	var known []string
	if im.festivals != nil {
		known = im.festivals.KnownFestivals()
	}
	c := lineup.Classify(lineup.ClassifyInput{
		Name:        ev.Title,
		Description: ev.Description,
		VenueName:   venue,
		Start:       ev.Start,
		End:         ev.End,
		Forced:      forced,
	}, known)

	meta := ev.Metadata
	if meta.SourceURL == "" {
		meta.SourceURL = ev.SourceURL
	}
	meta.Festival = &c
	// Without performances only the classification is refreshed, so a failed
	// extraction on re-import keeps the stored schedule.
	if len(perfs) > 0 {
		meta.Stages = lineup.Stages(perfs)
		meta.FestivalDays = nil
		if c.IsFestival {
			meta.FestivalDays = im.segmenter.Days(lineup.Slots(perfs, ev.Start))
		}
	}
	if !c.IsFestival {
		meta.FestivalDays = nil
	}

	if err := im.events.UpdateMetadata(ctx, ev.ID, meta); err != nil {
		return nil, fmt.Errorf("storing schedule: %w", err)
	}
	ev.Metadata = meta
	return &meta, nil
}

func (im *Importer) venueName(ctx context.Context, eventID string) (string, error) {
	ids, err := im.events.VenueIDs(ctx, eventID)
	if err != nil || len(ids) == 0 {
		return "", err
	}
	v, err := im.entities.GetByID(ctx, entity.KindVenue, ids[0])
	if err != nil {
		return "", err
	}
	return v.Name, nil
}
