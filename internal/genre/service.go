package genre

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/lineup/internal/normalize"
)

const genreColumns = `id, name, slug, description, external_url, banned, created_at`

// Service provides genre and genre-pivot data operations.
type Service struct {
	db *sql.DB
}

// NewService creates a genre service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetByID retrieves a genre by primary key.
func (s *Service) GetByID(ctx context.Context, id string) (*Genre, error) {
	g, err := s.getOne(ctx, `id = ?`, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("genre not found: %s", id)
	}
	return g, nil
}

// GetBySlug returns the genre with the given slug, or nil.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Genre, error) {
	if slug == "" {
		return nil, nil
	}
	return s.getOne(ctx, `slug = ?`, slug)
}

// GetByExternalURL returns the genre with the given reference link, or nil.
func (s *Service) GetByExternalURL(ctx context.Context, url string) (*Genre, error) {
	if url == "" {
		return nil, nil
	}
	return s.getOne(ctx, `external_url = ?`, url)
}

// InsertOrGet inserts g unless its slug is taken, in which case the
// existing genre is returned.
func (s *Service) InsertOrGet(ctx context.Context, g *Genre) (stored *Genre, created bool, err error) {
	if g.Slug == "" {
		g.Slug = normalize.Slug(g.Name)
	}
	if g.Slug == "" {
		return nil, false, fmt.Errorf("genre %q has an empty slug", g.Name)
	}
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO genres (`+genreColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO NOTHING`,
		g.ID, g.Name, g.Slug, g.Description, g.ExternalURL, boolToInt(g.Banned), now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, false, fmt.Errorf("inserting genre: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("inserting genre: %w", err)
	}
	if n == 1 {
		g.CreatedAt = now
		return g, true, nil
	}

	existing, err := s.GetBySlug(ctx, g.Slug)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("inserting genre: slug %q conflicted but no row found", g.Slug)
	}
	return existing, false, nil
}

// BannedIDs returns the ids of genres flagged banned in the store or whose
// name isBanned reports as banned.
func (s *Service) BannedIDs(ctx context.Context, isBanned func(name string) bool) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, banned FROM genres`)
	if err != nil {
		return nil, fmt.Errorf("listing genres: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[string]bool)
	for rows.Next() {
		var id, name string
		var banned int
		if err := rows.Scan(&id, &name, &banned); err != nil {
			return nil, fmt.Errorf("scanning genre: %w", err)
		}
		if banned == 1 || (isBanned != nil && isBanned(name)) {
			out[id] = true
		}
	}
	return out, rows.Err()
}

// AddArtistGenre links a genre to an artist. Existing links are left alone.
func (s *Service) AddArtistGenre(ctx context.Context, artistID, genreID string) error {
	return s.addPivot(ctx, "artist_genres", "artist_id", artistID, genreID)
}

// AddEventGenre links a genre to an event. Existing links are left alone.
func (s *Service) AddEventGenre(ctx context.Context, eventID, genreID string) error {
	return s.addPivot(ctx, "event_genres", "event_id", eventID, genreID)
}

// AddPromoterGenre links a genre to a promoter. Existing links are left alone.
func (s *Service) AddPromoterGenre(ctx context.Context, promoterID, genreID string) error {
	return s.addPivot(ctx, "promoter_genres", "promoter_id", promoterID, genreID)
}

// ArtistGenreIDs lists an artist's genre ids.
func (s *Service) ArtistGenreIDs(ctx context.Context, artistID string) ([]string, error) {
	return s.pivotIDs(ctx, "artist_genres", "artist_id", artistID)
}

// EventGenreIDs lists an event's genre ids.
func (s *Service) EventGenreIDs(ctx context.Context, eventID string) ([]string, error) {
	return s.pivotIDs(ctx, "event_genres", "event_id", eventID)
}

// PromoterGenreIDs lists a promoter's genre ids.
func (s *Service) PromoterGenreIDs(ctx context.Context, promoterID string) ([]string, error) {
	return s.pivotIDs(ctx, "promoter_genres", "promoter_id", promoterID)
}

// EventArtistGenres returns, for each distinct artist performing at the
// event, that artist's genre ids.
func (s *Service) EventArtistGenres(ctx context.Context, eventID string) ([][]string, error) {
	return s.childSets(ctx, `
		SELECT DISTINCT ag.artist_id, ag.genre_id
		FROM event_artists ea, json_each(ea.artist_ids) j
		JOIN artist_genres ag ON ag.artist_id = j.value
		WHERE ea.event_id = ?
		ORDER BY ag.artist_id, ag.genre_id`, eventID)
}

// PromoterEventGenres returns, for each event the promoter organized, that
// event's genre ids.
func (s *Service) PromoterEventGenres(ctx context.Context, promoterID string) ([][]string, error) {
	return s.childSets(ctx, `
		SELECT ep.event_id, eg.genre_id
		FROM event_promoters ep
		JOIN event_genres eg ON eg.event_id = ep.event_id
		WHERE ep.promoter_id = ?
		ORDER BY ep.event_id, eg.genre_id`, promoterID)
}

func (s *Service) childSets(ctx context.Context, query, parentID string) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("listing child genres: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var sets [][]string
	last := ""
	for rows.Next() {
		var child, genreID string
		if err := rows.Scan(&child, &genreID); err != nil {
			return nil, fmt.Errorf("scanning child genre: %w", err)
		}
		if len(sets) == 0 || child != last {
			sets = append(sets, nil)
			last = child
		}
		sets[len(sets)-1] = append(sets[len(sets)-1], genreID)
	}
	return sets, rows.Err()
}

func (s *Service) addPivot(ctx context.Context, table, parentCol, parentID, genreID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (`+parentCol+`, genre_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING`, //nolint:gosec // G202: table and column are fixed strings
		parentID, genreID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("adding %s row: %w", table, err)
	}
	return nil
}

func (s *Service) pivotIDs(ctx context.Context, table, parentCol, parentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT genre_id FROM `+table+` WHERE `+parentCol+` = ? ORDER BY created_at, genre_id`, //nolint:gosec // G202: table and column are fixed strings
		parentID)
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

func (s *Service) getOne(ctx context.Context, where string, arg any) (*Genre, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+genreColumns+` FROM genres WHERE `+where+` LIMIT 1`, arg) //nolint:gosec // G202: where is a fixed string
	g, err := scanGenre(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting genre: %w", err)
	}
	return g, nil
}

func scanGenre(row interface{ Scan(...any) error }) (*Genre, error) {
	var g Genre
	var banned int
	var createdAt string
	if err := row.Scan(&g.ID, &g.Name, &g.Slug, &g.Description, &g.ExternalURL, &banned, &createdAt); err != nil {
		return nil, err
	}
	g.Banned = banned == 1
	g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &g, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
