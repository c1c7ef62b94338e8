package event

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/sydlexius/lineup/internal/database"
	"github.com/sydlexius/lineup/internal/lineup"
)

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

func TestUpsert_BySourceURL(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()
	start := time.Date(2025, 6, 7, 22, 0, 0, 0, time.UTC)

	first, created, err := svc.Upsert(ctx, &Event{
		Title: "Warehouse Night", SourceURL: "https://example.com/events/1",
		Start: start, End: start.Add(8 * time.Hour), Description: "v1",
	})
	if err != nil || !created {
		t.Fatalf("first Upsert: created=%v err=%v", created, err)
	}
	if first.Metadata.SourceURL != "https://example.com/events/1" {
		t.Errorf("metadata source url = %q", first.Metadata.SourceURL)
	}

	second, created, err := svc.Upsert(ctx, &Event{
		Title: "Warehouse Night (renamed)", SourceURL: "https://example.com/events/1",
		Start: start, End: start.Add(10 * time.Hour), Description: "v2",
	})
	if err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if created || second.ID != first.ID {
		t.Fatalf("second Upsert created=%v id=%s, want existing %s", created, second.ID, first.ID)
	}

	got, err := svc.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Description != "v2" || !got.End.Equal(start.Add(10*time.Hour)) {
		t.Errorf("stored event = %+v, want description and end updated", got)
	}
	if got.Title != "Warehouse Night" {
		t.Errorf("title = %q, want the original", got.Title)
	}
}

func TestUpsert_KeepsZoneOffset(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 22, 0, 0, 0, time.FixedZone("", 2*60*60))

	ev, _, err := svc.Upsert(ctx, &Event{Title: "Berlin Night", SourceURL: "https://example.com/events/tz", Start: start})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := svc.GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.Start.Equal(start) {
		t.Fatalf("start = %v, want %v", got.Start, start)
	}
	if h := got.Start.Hour(); h != 22 {
		t.Errorf("reloaded start hour = %d, want the local 22", h)
	}
	if _, off := got.Start.Zone(); off != 2*60*60 {
		t.Errorf("reloaded offset = %d, want 7200", off)
	}
}

func TestUpsert_ByTitle(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	a, _, err := svc.Upsert(ctx, &Event{Title: "  Open Air  "})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	b, created, err := svc.Upsert(ctx, &Event{Title: "Open Air"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if created || b.ID != a.ID {
		t.Errorf("same title should reuse %s, got %s (created=%v)", a.ID, b.ID, created)
	}

	if _, _, err := svc.Upsert(ctx, &Event{Title: " "}); !errors.Is(err, ErrMissingTitle) {
		t.Errorf("blank title: got %v, want ErrMissingTitle", err)
	}
}

func TestUpdateMetadata(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()
	e, _, _ := svc.Upsert(ctx, &Event{Title: "Fest", SourceURL: "https://example.com/fest"})

	day := time.Date(2025, 7, 4, 14, 0, 0, 0, time.UTC)
	meta := Metadata{
		SourceURL: e.SourceURL,
		Stages:    []string{"Main", "Tent"},
		FestivalDays: []lineup.FestivalDay{
			{Day: 1, Date: "2025-07-04", Start: day, End: day.Add(10 * time.Hour)},
		},
		Festival: &lineup.Classification{IsFestival: true, Confidence: 75, Reasons: []string{"duration"}},
	}
	if err := svc.UpdateMetadata(ctx, e.ID, meta); err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}
	got, err := svc.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.Metadata.IsFestival() || !reflect.DeepEqual(got.Metadata.Stages, meta.Stages) {
		t.Errorf("metadata = %+v", got.Metadata)
	}
	if len(got.Metadata.FestivalDays) != 1 || !got.Metadata.FestivalDays[0].End.Equal(day.Add(10*time.Hour)) {
		t.Errorf("festival days = %+v", got.Metadata.FestivalDays)
	}

	if err := svc.UpdateMetadata(ctx, "missing", meta); err == nil {
		t.Error("UpdateMetadata on a missing event should fail")
	}
}

func TestArtistSets(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	e, _, _ := svc.Upsert(ctx, &Event{Title: "Night"})

	set := &ArtistSet{EventID: e.ID, ArtistIDs: []string{"b", "a"}, Stage: "Main",
		Start: "2025-06-07T23:00:00Z", End: "2025-06-08T01:00:00Z", Mode: "B2B", CustomName: "A b2b B"}
	added, err := svc.AddArtistSet(ctx, set)
	if err != nil || !added {
		t.Fatalf("AddArtistSet: added=%v err=%v", added, err)
	}

	// Same artists in another order on the same slot is the same set.
	dup := &ArtistSet{EventID: e.ID, ArtistIDs: []string{"a", "b", "a"}, Stage: "Main",
		Start: "2025-06-07T23:00:00Z", End: "2025-06-08T01:00:00Z"}
	if added, err := svc.AddArtistSet(ctx, dup); err != nil || added {
		t.Errorf("duplicate AddArtistSet: added=%v err=%v", added, err)
	}

	solo := &ArtistSet{EventID: e.ID, ArtistIDs: []string{"a"}, Stage: "Main",
		Start: "2025-06-07T21:00:00Z", End: "2025-06-07T23:00:00Z"}
	if _, err := svc.AddArtistSet(ctx, solo); err != nil {
		t.Fatalf("AddArtistSet: %v", err)
	}
	if _, err := svc.AddArtistSet(ctx, &ArtistSet{EventID: e.ID}); err == nil {
		t.Error("AddArtistSet without artists should fail")
	}

	sets, err := svc.ArtistSets(ctx, e.ID)
	if err != nil {
		t.Fatalf("ArtistSets: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("got %d sets, want 2", len(sets))
	}
	if !reflect.DeepEqual(sets[0].ArtistIDs, []string{"a"}) || sets[0].Status != StatusConfirmed {
		t.Errorf("first set = %+v", sets[0])
	}
	if !reflect.DeepEqual(sets[1].ArtistIDs, []string{"a", "b"}) || sets[1].CustomName != "A b2b B" {
		t.Errorf("second set = %+v", sets[1])
	}
}

func TestPromoterAndVenueLinks(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	e, _, _ := svc.Upsert(ctx, &Event{Title: "Night"})

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := db.ExecContext(ctx, `INSERT INTO promoters (id, name, name_key, created_at, updated_at) VALUES ('p1', 'P', 'p', ?, ?)`, now, now); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO venues (id, name, name_key, created_at, updated_at) VALUES ('v1', 'V', 'v', ?, ?)`, now, now); err != nil {
		t.Fatal(err)
	}

	for i, want := range []bool{true, false} {
		added, err := svc.AddPromoter(ctx, e.ID, "p1")
		if err != nil || added != want {
			t.Errorf("AddPromoter #%d = %v, %v; want %v", i, added, err, want)
		}
	}
	if added, err := svc.AddVenue(ctx, e.ID, "v1"); err != nil || !added {
		t.Errorf("AddVenue = %v, %v", added, err)
	}

	if ids, _ := svc.PromoterIDs(ctx, e.ID); !reflect.DeepEqual(ids, []string{"p1"}) {
		t.Errorf("PromoterIDs = %q", ids)
	}
	if ids, _ := svc.VenueIDs(ctx, e.ID); !reflect.DeepEqual(ids, []string{"v1"}) {
		t.Errorf("VenueIDs = %q", ids)
	}
}

func TestSignature(t *testing.T) {
	if got := Signature([]string{"c", "a", "", "c", "b"}); got != "a,b,c" {
		t.Errorf("Signature = %q", got)
	}
}
