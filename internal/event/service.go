package event

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const eventColumns = `id, title, source_url, start_time, end_time, description, metadata, created_at, updated_at`

// Service provides event data operations.
type Service struct {
	db *sql.DB
}

// NewService creates an event service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetByID retrieves an event by primary key.
func (s *Service) GetByID(ctx context.Context, id string) (*Event, error) {
	e, err := s.getOne(ctx, `id = ?`, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("event not found: %s", id)
	}
	return e, nil
}

// GetBySourceURL returns the event imported from url, or nil.
func (s *Service) GetBySourceURL(ctx context.Context, url string) (*Event, error) {
	if url == "" {
		return nil, nil
	}
	return s.getOne(ctx, `source_url = ?`, url)
}

// GetByTitle returns the oldest event with the exact title and no source
// URL, or nil.
func (s *Service) GetByTitle(ctx context.Context, title string) (*Event, error) {
	return s.getOne(ctx, `title = ? AND source_url = '' ORDER BY created_at`, title)
}

// Upsert creates the event unless one with the same source URL (or, without
// a URL, the same title) exists. An existing event has its description and
// timing updated when they differ from e. Metadata is left to UpdateMetadata.
func (s *Service) Upsert(ctx context.Context, e *Event) (stored *Event, created bool, err error) {
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		return nil, false, ErrMissingTitle
	}

	existing, err := s.lookup(ctx, e)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if err := s.refresh(ctx, existing, e); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Metadata.SourceURL == "" {
		e.Metadata.SourceURL = e.SourceURL
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return nil, false, fmt.Errorf("marshaling metadata: %w", err)
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		e.ID, e.Title, e.SourceURL, formatTime(e.Start), formatTime(e.End), e.Description, string(meta),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, false, fmt.Errorf("inserting event: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, false, fmt.Errorf("inserting event: %w", err)
	} else if n == 1 {
		return e, true, nil
	}

	// Lost a race on the source URL.
	existing, err = s.lookup(ctx, e)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("inserting event %q: conflict but no row found", e.Title)
	}
	return existing, false, nil
}

func (s *Service) lookup(ctx context.Context, e *Event) (*Event, error) {
	if e.SourceURL != "" {
		return s.GetBySourceURL(ctx, e.SourceURL)
	}
	return s.GetByTitle(ctx, e.Title)
}

// refresh copies changed mutable fields from incoming into stored.
func (s *Service) refresh(ctx context.Context, stored, incoming *Event) error {
	var sets []string
	var args []any
	if incoming.Description != "" && incoming.Description != stored.Description {
		sets = append(sets, "description = ?")
		args = append(args, incoming.Description)
		stored.Description = incoming.Description
	}
	if !incoming.Start.IsZero() && !sameTime(incoming.Start, stored.Start) {
		sets = append(sets, "start_time = ?")
		args = append(args, formatTime(incoming.Start))
		stored.Start = incoming.Start
	}
	if !incoming.End.IsZero() && !sameTime(incoming.End, stored.End) {
		sets = append(sets, "end_time = ?")
		args = append(args, formatTime(incoming.End))
		stored.End = incoming.End
	}
	if len(sets) == 0 {
		return nil
	}

	now := time.Now().UTC()
	sets = append(sets, "updated_at = ?")
	args = append(args, now.Format(time.RFC3339), stored.ID)
	_, err := s.db.ExecContext(ctx,
		`UPDATE events SET `+strings.Join(sets, ", ")+` WHERE id = ?`, //nolint:gosec // G202: column list is built from fixed strings
		args...)
	if err != nil {
		return fmt.Errorf("updating event: %w", err)
	}
	stored.UpdatedAt = now
	return nil
}

// UpdateMetadata replaces an event's metadata bag.
func (s *Service) UpdateMetadata(ctx context.Context, id string, m Metadata) error {
	meta, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET metadata = ?, updated_at = ? WHERE id = ?`,
		string(meta), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating event metadata: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event not found: %s", id)
	}
	return nil
}

// AddArtistSet records a performance slot. It reports false when the same
// artists already play that stage and time at the event.
func (s *Service) AddArtistSet(ctx context.Context, set *ArtistSet) (bool, error) {
	sig := Signature(set.ArtistIDs)
	if sig == "" {
		return false, fmt.Errorf("artist set for event %s has no artists", set.EventID)
	}
	ids, err := json.Marshal(strings.Split(sig, ","))
	if err != nil {
		return false, fmt.Errorf("marshaling artist ids: %w", err)
	}
	if set.ID == "" {
		set.ID = uuid.New().String()
	}
	if set.Status == "" {
		set.Status = StatusConfirmed
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO event_artists (id, event_id, artist_ids, signature, stage, start_time, end_time, mode, custom_name, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		set.ID, set.EventID, string(ids), sig, set.Stage, set.Start, set.End, set.Mode, set.CustomName, set.Status,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("inserting artist set: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting artist set: %w", err)
	}
	return n == 1, nil
}

// ArtistSets lists an event's performance slots ordered by start and stage.
func (s *Service) ArtistSets(ctx context.Context, eventID string) ([]ArtistSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, artist_ids, stage, start_time, end_time, mode, custom_name, status
		FROM event_artists WHERE event_id = ?
		ORDER BY start_time, stage, signature`, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing artist sets: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var sets []ArtistSet
	for rows.Next() {
		var set ArtistSet
		var ids string
		if err := rows.Scan(&set.ID, &set.EventID, &ids, &set.Stage, &set.Start, &set.End,
			&set.Mode, &set.CustomName, &set.Status); err != nil {
			return nil, fmt.Errorf("scanning artist set: %w", err)
		}
		if err := json.Unmarshal([]byte(ids), &set.ArtistIDs); err != nil {
			return nil, fmt.Errorf("decoding artist ids: %w", err)
		}
		sets = append(sets, set)
	}
	return sets, rows.Err()
}

// AddPromoter links a promoter to an event. It reports false when the link
// already existed.
func (s *Service) AddPromoter(ctx context.Context, eventID, promoterID string) (bool, error) {
	return s.link(ctx, "event_promoters", "promoter_id", eventID, promoterID)
}

// AddVenue links a venue to an event. It reports false when the link already
// existed.
func (s *Service) AddVenue(ctx context.Context, eventID, venueID string) (bool, error) {
	return s.link(ctx, "event_venues", "venue_id", eventID, venueID)
}

// PromoterIDs lists the promoters linked to an event.
func (s *Service) PromoterIDs(ctx context.Context, eventID string) ([]string, error) {
	return s.linked(ctx, "event_promoters", "promoter_id", eventID)
}

// VenueIDs lists the venues linked to an event.
func (s *Service) VenueIDs(ctx context.Context, eventID string) ([]string, error) {
	return s.linked(ctx, "event_venues", "venue_id", eventID)
}

func (s *Service) link(ctx context.Context, table, col, eventID, otherID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (event_id, `+col+`, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`, //nolint:gosec // G202: table and column are fixed strings
		eventID, otherID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("inserting %s row: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting %s row: %w", table, err)
	}
	return n == 1, nil
}

func (s *Service) linked(ctx context.Context, table, col, eventID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+col+` FROM `+table+` WHERE event_id = ? ORDER BY created_at, `+col, //nolint:gosec // G202: table and column are fixed strings
		eventID)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Service) getOne(ctx context.Context, where string, args ...any) (*Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE `+where+` LIMIT 1`, args...) //nolint:gosec // G202: where is a fixed string
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting event: %w", err)
	}
	return e, nil
}

func scanEvent(row interface{ Scan(...any) error }) (*Event, error) {
	var e Event
	var start, end, meta, createdAt, updatedAt string
	if err := row.Scan(&e.ID, &e.Title, &e.SourceURL, &start, &end, &e.Description, &meta, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata of event %s: %w", e.ID, err)
	}
	e.Start = parseTime(start)
	e.End = parseTime(end)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}
