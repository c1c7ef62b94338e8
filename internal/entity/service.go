package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/lineup/internal/normalize"
)

const (
	baseColumns  = `id, name, name_key, image_url, description, created_at, updated_at`
	venueColumns = baseColumns + `, address, city, country_code, latitude, longitude`
)

func columns(k Kind) string {
	if k == KindVenue {
		return venueColumns
	}
	return baseColumns
}

// Service provides entity data operations.
type Service struct {
	db *sql.DB
}

// NewService creates an entity service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetByID retrieves an entity by primary key.
func (s *Service) GetByID(ctx context.Context, kind Kind, id string) (*Entity, error) {
	e, err := s.getOne(ctx, kind, `id = ?`, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%s not found: %s", kind, id)
	}
	return e, nil
}

// GetByNameKey retrieves an entity by its case-folded normalized name.
// Returns nil when there is none.
func (s *Service) GetByNameKey(ctx context.Context, kind Kind, key string) (*Entity, error) {
	return s.getOne(ctx, kind, `name_key = ?`, key)
}

// GetByExternalID retrieves the entity linked to an external platform id.
// Returns nil when there is none.
func (s *Service) GetByExternalID(ctx context.Context, kind Kind, platform, externalID string) (*Entity, error) {
	if externalID == "" {
		return nil, nil
	}
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT entity_id FROM entity_links WHERE kind = ? AND platform = ? AND external_id = ?`,
		string(kind), platform, externalID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s by %s id: %w", kind, platform, err)
	}
	return s.getOne(ctx, kind, `id = ?`, id)
}

// Candidates lists every entity of a kind for fuzzy matching.
func (s *Service) Candidates(ctx context.Context, kind Kind) ([]normalize.Candidate, error) {
	table := kind.table()
	if table == "" {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM `+table+` ORDER BY created_at, id`) //nolint:gosec // G202: table is from a fixed switch
	if err != nil {
		return nil, fmt.Errorf("listing %s candidates: %w", kind, err)
	}
	defer rows.Close() //nolint:errcheck

	var out []normalize.Candidate
	for rows.Next() {
		var c normalize.Candidate
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scanning %s candidate: %w", kind, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertOrGet inserts e unless a row with the same name key already exists,
// in which case the existing row is returned. created reports which
// happened. A concurrent insert of the same name resolves to the same row.
func (s *Service) InsertOrGet(ctx context.Context, e *Entity) (stored *Entity, created bool, err error) {
	table := e.Kind.table()
	if table == "" {
		return nil, false, fmt.Errorf("unknown entity kind %q", e.Kind)
	}
	if e.NameKey == "" {
		return nil, false, ErrEmptyName
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	ts := now.Format(time.RFC3339)

	var res sql.Result
	if e.Kind == KindVenue {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO venues (`+venueColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(name_key) DO NOTHING`,
			e.ID, e.Name, e.NameKey, e.ImageURL, e.Description, ts, ts,
			e.Address, e.City, e.CountryCode, nullFloat(e.Latitude), nullFloat(e.Longitude),
		)
	} else {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO `+table+` (`+baseColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(name_key) DO NOTHING`, //nolint:gosec // G202: table is from a fixed switch
			e.ID, e.Name, e.NameKey, e.ImageURL, e.Description, ts, ts,
		)
	}
	if err != nil {
		return nil, false, fmt.Errorf("inserting %s: %w", e.Kind, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("inserting %s: %w", e.Kind, err)
	}
	if n == 1 {
		e.CreatedAt = now
		e.UpdatedAt = now
		e.Links = map[string]Link{}
		return e, true, nil
	}

	existing, err := s.GetByNameKey(ctx, e.Kind, e.NameKey)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("inserting %s: name key %q conflicted but no row found", e.Kind, e.NameKey)
	}
	return existing, false, nil
}

// AddLink records an external platform identity for an entity. It reports
// false without error when the entity already has a link on that platform
// or when the external id belongs to another entity.
func (s *Service) AddLink(ctx context.Context, kind Kind, entityID, platform string, l Link) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_links (kind, entity_id, platform, external_id, url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		string(kind), entityID, platform, l.ExternalID, l.URL, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("adding %s link: %w", platform, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("adding %s link: %w", platform, err)
	}
	return n == 1, nil
}

// UpdateImage replaces an entity's image URL.
func (s *Service) UpdateImage(ctx context.Context, kind Kind, id, imageURL string) error {
	table := kind.table()
	if table == "" {
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE `+table+` SET image_url = ?, updated_at = ? WHERE id = ?`, //nolint:gosec // G202: table is from a fixed switch
		imageURL, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating %s image: %w", kind, err)
	}
	return nil
}

// Delete removes an entity and its links.
func (s *Service) Delete(ctx context.Context, kind Kind, id string) error {
	table := kind.table()
	if table == "" {
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entity_links WHERE kind = ? AND entity_id = ?`, string(kind), id); err != nil {
		return fmt.Errorf("deleting %s links: %w", kind, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id); err != nil { //nolint:gosec // G202: table is from a fixed switch
		return fmt.Errorf("deleting %s: %w", kind, err)
	}
	return nil
}

// Count returns the number of entities of a kind.
func (s *Service) Count(ctx context.Context, kind Kind) (int, error) {
	table := kind.table()
	if table == "" {
		return 0, fmt.Errorf("unknown entity kind %q", kind)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil { //nolint:gosec // G202: table is from a fixed switch
		return 0, fmt.Errorf("counting %s: %w", kind, err)
	}
	return n, nil
}

func (s *Service) getOne(ctx context.Context, kind Kind, where string, args ...any) (*Entity, error) {
	table := kind.table()
	if table == "" {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+columns(kind)+` FROM `+table+` WHERE `+where, args...) //nolint:gosec // G202: table and where are fixed strings
	e, err := scanEntity(row, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", kind, err)
	}
	if e.Links, err = s.links(ctx, kind, e.ID); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) links(ctx context.Context, kind Kind, id string) (map[string]Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT platform, external_id, url FROM entity_links WHERE kind = ? AND entity_id = ?`,
		string(kind), id)
	if err != nil {
		return nil, fmt.Errorf("listing %s links: %w", kind, err)
	}
	defer rows.Close() //nolint:errcheck

	links := make(map[string]Link)
	for rows.Next() {
		var platform string
		var l Link
		if err := rows.Scan(&platform, &l.ExternalID, &l.URL); err != nil {
			return nil, fmt.Errorf("scanning %s link: %w", kind, err)
		}
		links[platform] = l
	}
	return links, rows.Err()
}

func scanEntity(row interface{ Scan(...any) error }, kind Kind) (*Entity, error) {
	e := Entity{Kind: kind}
	var createdAt, updatedAt string
	dest := []any{&e.ID, &e.Name, &e.NameKey, &e.ImageURL, &e.Description, &createdAt, &updatedAt}

	var lat, lng sql.NullFloat64
	if kind == KindVenue {
		dest = append(dest, &e.Address, &e.City, &e.CountryCode, &lat, &lng)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if lat.Valid {
		e.Latitude = &lat.Float64
	}
	if lng.Valid {
		e.Longitude = &lng.Float64
	}
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
