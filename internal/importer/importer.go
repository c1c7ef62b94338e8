// Package importer runs the event ingestion pipeline: it scrapes an event
// page, resolves the promoters, venue and performing artists to canonical
// rows, derives genres and stores the stage and festival-day schedule.
package importer

import (
	"context"
	"log/slog"
	"time"

	"github.com/sydlexius/lineup/internal/bus"
	"github.com/sydlexius/lineup/internal/entity"
	"github.com/sydlexius/lineup/internal/event"
	"github.com/sydlexius/lineup/internal/genre"
	"github.com/sydlexius/lineup/internal/lineup"
	"github.com/sydlexius/lineup/internal/provider"
	"github.com/sydlexius/lineup/internal/scrape"
)

// PerformanceExtractor reads performance entries out of free text.
type PerformanceExtractor interface {
	ExtractPerformances(ctx context.Context, description string) ([]lineup.Performance, error)
}

// ProfileSource looks up an artist's catalog account from its public page.
type ProfileSource interface {
	ResolveProfile(ctx context.Context, pageURL string) (*provider.UserProfile, error)
}

// FestivalNames lists known recurring festivals.
type FestivalNames interface {
	KnownFestivals() []string
}

// Deps holds the importer's collaborators. Extractor, Profiles and Assigner
// may be nil; the matching enrichment step is then skipped.
type Deps struct {
	Resolver   *entity.Resolver
	Entities   *entity.Service
	Events     *event.Service
	Genres     *genre.Service
	Assigner   *genre.Assigner
	Aggregator *genre.Aggregator
	Scraper    scrape.Scraper
	Extractor  PerformanceExtractor
	Profiles   ProfileSource
	Festivals  FestivalNames
	Bus        bus.Publisher

	// Timeout bounds each external call.
	Timeout time.Duration
	// EnrichDelay is waited before each call to a rate-limited service.
	EnrichDelay time.Duration
	// MaxGap separates festival days.
	MaxGap time.Duration
	Logger *slog.Logger
}

// Importer runs imports one at a time. Its methods are safe to re-invoke on
// the same input.
type Importer struct {
	resolver   *entity.Resolver
	entities   *entity.Service
	events     *event.Service
	genres     *genre.Service
	assigner   *genre.Assigner
	aggregator *genre.Aggregator
	scraper    scrape.Scraper
	extractor  PerformanceExtractor
	profiles   ProfileSource
	festivals  FestivalNames
	bus        bus.Publisher

	timeout     time.Duration
	enrichDelay time.Duration
	segmenter   lineup.Segmenter
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

// New creates an Importer.
func New(d Deps) *Importer {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	publisher := d.Bus
	if publisher == nil {
		publisher = bus.Discard{}
	}
	return &Importer{
		resolver:    d.Resolver,
		entities:    d.Entities,
		events:      d.Events,
		genres:      d.Genres,
		assigner:    d.Assigner,
		aggregator:  d.Aggregator,
		scraper:     d.Scraper,
		extractor:   d.Extractor,
		profiles:    d.Profiles,
		festivals:   d.Festivals,
		bus:         publisher,
		timeout:     timeout,
		enrichDelay: d.EnrichDelay,
		segmenter:   lineup.Segmenter{MaxGap: d.MaxGap},
		sleep:       sleepCtx,
		logger:      d.Logger.With(slog.String("component", "importer")),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// pause waits the enrichment delay before a rate-limited call.
func (im *Importer) pause(ctx context.Context) error {
	return im.sleep(ctx, im.enrichDelay)
}

func (im *Importer) publish(topic bus.Topic, data map[string]any) {
	im.bus.Publish(bus.Message{Topic: topic, Timestamp: time.Now().UTC(), Data: data})
}

// degrade logs a failed enrichment step. The caller carries on without it.
func (im *Importer) degrade(step string, err error, attrs ...any) {
	args := append([]any{slog.String("step", step), slog.String("error", err.Error())}, attrs...)
	im.logger.Warn("enrichment skipped", args...)
}
