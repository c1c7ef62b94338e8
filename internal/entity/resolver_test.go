package entity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/sydlexius/lineup/internal/normalize"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type exceptions map[string]string

func (e exceptions) NameException(original string) (string, bool) {
	v, ok := e[original]
	return v, ok
}

func (e exceptions) IsNameExceptionTarget(name string) bool {
	for _, v := range e {
		if v == name {
			return true
		}
	}
	return false
}

type fakeHost struct {
	mu     sync.Mutex
	calls  []string
	reject map[string]bool
}

func (h *fakeHost) Host(_ context.Context, src, kind, id string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, src)
	if h.reject[src] {
		return "", errors.New("too small")
	}
	return "/images/" + kind + "/" + id + ".jpg", nil
}

type fakePreviews map[string]string

func (f fakePreviews) PreviewImage(_ context.Context, page string) (string, error) {
	if v, ok := f[page]; ok {
		return v, nil
	}
	return "", errors.New("unreachable")
}

func newResolver(t *testing.T, host ImageHost, previews PreviewSource) (*Resolver, *Service) {
	t.Helper()
	svc := NewService(setupTestDB(t))
	return NewResolver(ResolverDeps{
		Store:      svc,
		Normalizer: normalize.New(exceptions{"Kölsch": "Kölsch"}),
		Matcher:    normalize.DefaultMatcher(),
		Images:     host,
		Previews:   previews,
		Logger:     testLogger(),
	}), svc
}

func TestResolve_ExactAndCaseInsensitive(t *testing.T) {
	r, svc := newResolver(t, nil, nil)
	ctx := context.Background()

	first, err := r.Resolve(ctx, KindVenue, "  Café Test!! ", Hints{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !first.Created || first.Name != "Cafe Test" || first.Match != MatchCreated {
		t.Errorf("first = %+v", first)
	}

	second, err := r.Resolve(ctx, KindVenue, "CAFE TEST", Hints{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if second.ID != first.ID || second.Created || second.Match != MatchName {
		t.Errorf("second = %+v, want name match on %s", second, first.ID)
	}

	if n, _ := svc.Count(ctx, KindVenue); n != 1 {
		t.Errorf("venue count = %d, want 1", n)
	}
}

func TestResolve_ExternalID(t *testing.T) {
	r, svc := newResolver(t, nil, nil)
	ctx := context.Background()
	hints := Hints{ExternalID: "1001", URL: "https://soundcloud.com/alpha"}

	first, err := r.Resolve(ctx, KindArtist, "Alpha", hints)
	if err != nil {
		t.Fatal(err)
	}
	if first.Links[PlatformSoundCloud].ExternalID != "1001" {
		t.Errorf("links = %+v", first.Links)
	}

	// A completely different spelling still resolves through the id.
	second, err := r.Resolve(ctx, KindArtist, "DJ Alpha (Official)", hints)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID || second.Match != MatchExternalID {
		t.Errorf("second = %+v", second)
	}
	if n, _ := svc.Count(ctx, KindArtist); n != 1 {
		t.Errorf("artist count = %d, want 1", n)
	}
}

func TestResolve_Fuzzy(t *testing.T) {
	r, _ := newResolver(t, nil, nil)
	ctx := context.Background()

	orig, err := r.Resolve(ctx, KindPromoter, "Straf_Werk", Hints{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.Resolve(ctx, KindPromoter, "Strafwerk", Hints{})
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != orig.ID || got.Match != MatchFuzzy || got.Score < normalize.DefaultThreshold {
		t.Errorf("fuzzy = %+v, want match on %s", got, orig.ID)
	}

	other, err := r.Resolve(ctx, KindPromoter, "Dekmantel", Hints{})
	if err != nil {
		t.Fatal(err)
	}
	if other.ID == orig.ID || !other.Created {
		t.Errorf("unrelated name should create a new entity: %+v", other)
	}
}

func TestResolve_MergesMissingLink(t *testing.T) {
	r, svc := newResolver(t, nil, nil)
	ctx := context.Background()

	first, _ := r.Resolve(ctx, KindPromoter, "Night Shift", Hints{})
	if len(first.Links) != 0 {
		t.Fatalf("links = %+v", first.Links)
	}
	second, err := r.Resolve(ctx, KindPromoter, "Night Shift", Hints{ExternalID: "555", URL: "https://facebook.com/ns"})
	if err != nil {
		t.Fatal(err)
	}
	if second.Links[PlatformFacebook].ExternalID != "555" {
		t.Errorf("links after merge = %+v", second.Links)
	}
	stored, _ := svc.GetByExternalID(ctx, KindPromoter, PlatformFacebook, "555")
	if stored == nil || stored.ID != first.ID {
		t.Errorf("stored link points to %+v", stored)
	}
}

func TestResolve_Validation(t *testing.T) {
	r, _ := newResolver(t, nil, nil)
	for _, name := range []string{"", "   ", "!!!"} {
		if _, err := r.Resolve(context.Background(), KindArtist, name, Hints{}); !errors.Is(err, ErrEmptyName) {
			t.Errorf("Resolve(%q): got %v, want ErrEmptyName", name, err)
		}
	}
	if _, err := r.Resolve(context.Background(), Kind("label"), "X", Hints{}); err == nil {
		t.Error("unknown kind: expected error")
	}
}

func TestResolve_Exceptions(t *testing.T) {
	r, _ := newResolver(t, nil, nil)
	got, err := r.Resolve(context.Background(), KindArtist, "Kölsch", Hints{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Kölsch" {
		t.Errorf("Name = %q, want exception kept verbatim", got.Name)
	}
}

func TestResolve_ImageOnCreate(t *testing.T) {
	host := &fakeHost{reject: map[string]bool{}}
	previews := fakePreviews{"https://facebook.com/ns": "https://cdn.example/og.jpg"}
	r, _ := newResolver(t, host, previews)

	got, err := r.Resolve(context.Background(), KindPromoter, "Night Shift", Hints{
		PageURL:   "https://facebook.com/ns",
		AvatarURL: "https://cdn.example/p50x50/ns.jpg",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.ImageURL != "/images/promoter/"+got.ID+".jpg" {
		t.Errorf("ImageURL = %q", got.ImageURL)
	}
	if len(host.calls) != 1 || host.calls[0] != "https://cdn.example/og.jpg" {
		t.Errorf("host calls = %v, want preview image first", host.calls)
	}
}

func TestResolve_ImageFallbackOrder(t *testing.T) {
	avatar := "https://i1.sndcdn.com/avatars-abc-large.jpg"
	highRes := "https://i1.sndcdn.com/avatars-abc-t500x500.jpg"
	host := &fakeHost{reject: map[string]bool{highRes: true}}
	r, _ := newResolver(t, host, fakePreviews{})

	got, err := r.Resolve(context.Background(), KindArtist, "Alpha", Hints{
		PageURL:   "https://soundcloud.com/alpha",
		AvatarURL: avatar,
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(host.calls, ",") != highRes+","+avatar {
		t.Errorf("host calls = %v", host.calls)
	}
	if got.ImageURL == "" {
		t.Error("expected the raw avatar to be hosted")
	}
}

func TestResolve_ReenrichLowQuality(t *testing.T) {
	r, svc := newResolver(t, nil, nil)
	ctx := context.Background()
	avatar := "https://i1.sndcdn.com/avatars-abc-large.jpg"

	first, err := r.Resolve(ctx, KindArtist, "Alpha", Hints{AvatarURL: avatar})
	if err != nil {
		t.Fatal(err)
	}
	// Without a host, the first candidate (the high-res variant) is stored.
	if first.ImageURL != "https://i1.sndcdn.com/avatars-abc-t500x500.jpg" {
		t.Fatalf("ImageURL = %q", first.ImageURL)
	}

	if err := svc.UpdateImage(ctx, KindArtist, first.ID, avatar); err != nil {
		t.Fatal(err)
	}
	again, err := r.Resolve(ctx, KindArtist, "Alpha", Hints{})
	if err != nil {
		t.Fatal(err)
	}
	if again.ImageURL != "https://i1.sndcdn.com/avatars-abc-t500x500.jpg" {
		t.Errorf("low-quality image was not upgraded: %q", again.ImageURL)
	}

	// A good image is left alone.
	third, _ := r.Resolve(ctx, KindArtist, "Alpha", Hints{AvatarURL: "https://cdn.example/other.jpg"})
	if third.ImageURL != again.ImageURL {
		t.Errorf("good image replaced with %q", third.ImageURL)
	}
}

func TestResolve_ConcurrentSameName(t *testing.T) {
	r, svc := newResolver(t, nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Resolve(ctx, KindArtist, "Race Condition", Hints{})
			errs[i] = err
			if res != nil {
				ids[i] = res.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("Resolve %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("resolver %d got %s, want %s", i, ids[i], ids[0])
		}
	}
	if n, _ := svc.Count(ctx, KindArtist); n != 1 {
		t.Errorf("artist count = %d, want 1", n)
	}
}

func TestResolve_AmbiguousCreates(t *testing.T) {
	svc := NewService(setupTestDB(t))
	r := NewResolver(ResolverDeps{
		Store:      svc,
		Normalizer: normalize.New(nil),
		Matcher:    normalize.Matcher{Threshold: 0.75, MinMargin: 0.2},
		Logger:     testLogger(),
	})
	ctx := context.Background()
	for _, n := range []string{"Marco Bailey", "Marco Baileys"} {
		if _, _, err := svc.InsertOrGet(ctx, &Entity{Kind: KindArtist, Name: n, NameKey: normalize.Fold(n)}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := r.Resolve(ctx, KindArtist, "Marco Baile", Hints{})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Created {
		t.Errorf("two close candidates should not auto-merge: %+v", got)
	}
	if n, _ := svc.Count(ctx, KindArtist); n != 3 {
		t.Errorf("artist count = %d, want 3", n)
	}
}
