package genre

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sydlexius/lineup/internal/database"
	"github.com/sydlexius/lineup/internal/normalize"
	"github.com/sydlexius/lineup/internal/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// exec runs a fixture statement.
func exec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("fixture %q: %v", query, err)
	}
}

func insertArtist(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	exec(t, db, `INSERT INTO artists (id, name, name_key, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, id, id, now, now)
}

type fakeLists struct {
	banned  map[string]bool
	aliases map[string]string
}

func (l fakeLists) IsBannedGenre(name string) bool {
	return l.banned[normalize.Slug(name)]
}

func (l fakeLists) GenreAlias(tag string) (string, bool) {
	c, ok := l.aliases[normalize.Slug(tag)]
	return c, ok
}

func defaultFakeLists() fakeLists {
	return fakeLists{
		banned:  map[string]bool{"80s": true, "chill": true, "soundcloud": true},
		aliases: map[string]string{"dnb": "Drum and Bass", "drumnbass": "Drum and Bass"},
	}
}

type fakeDescriptions struct {
	mu    sync.Mutex
	descs map[string]string
	fail  map[string]bool
	calls []string
}

func (f *fakeDescriptions) TagDescription(_ context.Context, tag string) (*provider.TagInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tag)
	if f.fail[tag] {
		return nil, &provider.ErrProviderUnavailable{Provider: provider.NameLastFM, Cause: errors.New("timeout")}
	}
	d, ok := f.descs[tag]
	if !ok {
		return nil, nil
	}
	return &provider.TagInfo{Name: tag, URL: "https://www.last.fm/tag/" + tag, Description: d}, nil
}

type fakeCatalog struct {
	entries map[string][]provider.CatalogEntry
	limit   int
}

func (c *fakeCatalog) RecentTracks(_ context.Context, userID string, limit int) ([]provider.CatalogEntry, error) {
	c.limit = limit
	e, ok := c.entries[userID]
	if !ok {
		return nil, &provider.ErrNotFound{Provider: provider.NameSoundCloud, ID: userID}
	}
	return e, nil
}
