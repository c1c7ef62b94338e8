package genre

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"
)

func TestConsensus(t *testing.T) {
	caps := DefaultCaps()
	tests := []struct {
		name     string
		children [][]string
		banned   map[string]bool
		festival bool
		want     []string
	}{
		{
			name:     "threshold",
			children: [][]string{{"a", "b"}, {"a", "c"}, {"a", "b"}, {"d"}},
			want:     []string{"a", "b"},
		},
		{
			name:     "banned dropped",
			children: [][]string{{"a", "b"}, {"a", "b"}},
			banned:   map[string]bool{"b": true},
			want:     []string{"a"},
		},
		{
			name:     "fallback when nothing repeats",
			children: [][]string{{"e"}, {"c"}, {"a"}, {"d"}, {"b"}},
			want:     []string{"a", "b", "c"},
		},
		{
			name:     "fallback still excludes banned",
			children: [][]string{{"a"}, {"b"}, {"c"}, {"d"}},
			banned:   map[string]bool{"a": true},
			want:     []string{"b", "c", "d"},
		},
		{
			name:     "duplicates within one child count once",
			children: [][]string{{"a", "a"}, {"b"}},
			want:     []string{"a", "b"},
		},
		{
			name:     "only banned",
			children: [][]string{{"a"}, {"a"}},
			banned:   map[string]bool{"a": true},
			want:     nil,
		},
		{name: "no children", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Consensus(tt.children, tt.banned, tt.festival, caps)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Consensus = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConsensus_Caps(t *testing.T) {
	var ids []string
	for i := range 12 {
		ids = append(ids, fmt.Sprintf("g%02d", i))
	}
	children := [][]string{ids, ids}

	if got := Consensus(children, nil, false, DefaultCaps()); len(got) != 5 || got[0] != "g00" {
		t.Errorf("non-festival = %q, want 5 ids starting at g00", got)
	}
	if got := Consensus(children, nil, true, DefaultCaps()); len(got) != 10 || got[9] != "g09" {
		t.Errorf("festival = %q, want 10 ids ending at g09", got)
	}
}

func TestConsensus_OrderByCount(t *testing.T) {
	children := [][]string{{"z", "m"}, {"z", "m"}, {"z", "a"}, {"a"}}
	got := Consensus(children, nil, false, DefaultCaps())
	want := []string{"z", "a", "m"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Consensus = %q, want %q", got, want)
	}
}

func TestAggregator_Event(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	now := time.Now().UTC().Format(time.RFC3339)

	techno, _, _ := svc.InsertOrGet(ctx, &Genre{Name: "Techno"})
	acid, _, _ := svc.InsertOrGet(ctx, &Genre{Name: "Acid"})
	chill, _, _ := svc.InsertOrGet(ctx, &Genre{Name: "Chill"})

	for _, id := range []string{"a1", "a2", "a3"} {
		insertArtist(t, db, id)
	}
	for artist, genres := range map[string][]string{
		"a1": {techno.ID, acid.ID, chill.ID},
		"a2": {techno.ID, chill.ID},
		"a3": {acid.ID},
	} {
		for _, g := range genres {
			if err := svc.AddArtistGenre(ctx, artist, g); err != nil {
				t.Fatalf("AddArtistGenre: %v", err)
			}
		}
	}

	exec(t, db, `INSERT INTO events (id, title, created_at, updated_at) VALUES ('e1', 'Night', ?, ?)`, now, now)
	exec(t, db, `INSERT INTO event_artists (id, event_id, artist_ids, signature, created_at)
		VALUES ('s1', 'e1', '["a1","a2"]', 'a1,a2', ?), ('s2', 'e1', '["a3"]', 'a3', ?), ('s3', 'e1', '["a1"]', 'a1', ?)`,
		now, now, now)

	agg := NewAggregator(svc, defaultFakeLists(), DefaultCaps(), testLogger())
	got, err := agg.AssignEventGenres(ctx, "e1", false)
	if err != nil {
		t.Fatalf("AssignEventGenres: %v", err)
	}
	if len(got) != 2 || !contains(got, techno.ID) || !contains(got, acid.ID) {
		t.Errorf("event genres = %q, want techno and acid without chill", got)
	}

	// Re-running leaves the pivot unchanged.
	if _, err := agg.AssignEventGenres(ctx, "e1", false); err != nil {
		t.Fatalf("second AssignEventGenres: %v", err)
	}
	stored, err := svc.EventGenreIDs(ctx, "e1")
	if err != nil || len(stored) != 2 {
		t.Errorf("EventGenreIDs = %q, %v; want 2 rows", stored, err)
	}

	exec(t, db, `INSERT INTO promoters (id, name, name_key, created_at, updated_at) VALUES ('p1', 'Promo', 'promo', ?, ?)`, now, now)
	exec(t, db, `INSERT INTO event_promoters (event_id, promoter_id, created_at) VALUES ('e1', 'p1', ?)`, now)
	promo, err := agg.AssignPromoterGenres(ctx, "p1")
	if err != nil {
		t.Fatalf("AssignPromoterGenres: %v", err)
	}
	// One event only: nothing repeats, so the fallback picks both.
	if len(promo) != 2 {
		t.Errorf("promoter genres = %q, want 2", promo)
	}
	if ids, _ := svc.PromoterGenreIDs(ctx, "p1"); len(ids) != 2 {
		t.Errorf("PromoterGenreIDs = %q", ids)
	}
}

func TestAggregator_NoChildren(t *testing.T) {
	svc := NewService(setupTestDB(t))
	agg := NewAggregator(svc, defaultFakeLists(), DefaultCaps(), testLogger())
	got, err := agg.AssignPromoterGenres(context.Background(), "nobody")
	if err != nil || got != nil {
		t.Errorf("AssignPromoterGenres = %q, %v; want nil, nil", got, err)
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
