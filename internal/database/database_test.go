package database

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenAndMigrate(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "nested", "lineup.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// Running twice is a no-op.
	if err := Migrate(db); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	for _, table := range []string{
		"artists", "promoters", "venues", "entity_links", "genres", "events",
		"event_artists", "event_promoters", "event_venues",
		"artist_genres", "event_genres", "promoter_genres",
	} {
		var name string
		err := db.QueryRowContext(context.Background(),
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestMigrate_InMemory(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx,
		`INSERT INTO artists (id, name, name_key, created_at, updated_at) VALUES ('a', 'A', 'a', '', '')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO artists (id, name, name_key, created_at, updated_at) VALUES ('b', 'A', 'a', '', '')`); err == nil {
		t.Error("expected unique name_key violation")
	}
}

func TestMigrateContext_ReportsApplied(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applied, err := MigrateContext(context.Background(), db)
	if err != nil {
		t.Fatalf("MigrateContext: %v", err)
	}
	if len(applied) != 1 || applied[0] != 1 {
		t.Errorf("applied = %v, want [1]", applied)
	}

	applied, err = MigrateContext(context.Background(), db)
	if err != nil {
		t.Fatalf("second MigrateContext: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("second run applied %v", applied)
	}
}
