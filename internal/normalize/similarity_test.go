package normalize

import (
	"math"
	"testing"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Amelie Lens", "Amelie Lens", 1},
		{"Amelie Lens", "amelie lens", 1},
		{"a", "a", 1},
		{"", "", 1},
		{"", "x", 0},
		{"a", "b", 0},
		{"night", "nacht", 0.25},
		{"Adam Beyer", "AdamBeyer", 1},
	}
	for _, tt := range tests {
		got := Similarity(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"Charlotte de Witte", "Charlotte de Wite"},
		{"Dax J", "Dax J."},
		{"Ben Klock", "Ben Klocke"},
		{"FJAAK", "Fjaak Live"},
		{"x", ""},
	}
	for _, p := range pairs {
		ab := Similarity(p[0], p[1])
		ba := Similarity(p[1], p[0])
		if ab != ba {
			t.Errorf("Similarity not symmetric for %q/%q: %v vs %v", p[0], p[1], ab, ba)
		}
		if ab < 0 || ab > 1 {
			t.Errorf("Similarity(%q, %q) = %v out of range", p[0], p[1], ab)
		}
	}
}

func TestSimilarity_Multiset(t *testing.T) {
	// "aaaa" has three "aa" bigrams, "aa" has one: 2*1/(3+1).
	if got := Similarity("aaaa", "aa"); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Similarity(aaaa, aa) = %v, want 0.5", got)
	}
}

func TestMatcher_Best(t *testing.T) {
	candidates := []Candidate{
		{ID: "1", Name: "Charlotte de Witte"},
		{ID: "2", Name: "Amelie Lens"},
	}
	m := DefaultMatcher()

	got, ok := m.Best("Charlotte de Wite", candidates)
	if !ok {
		t.Fatal("expected a match")
	}
	if got.ID != "1" {
		t.Errorf("matched %q, want 1", got.ID)
	}
	if got.Score < DefaultThreshold {
		t.Errorf("score %v below threshold", got.Score)
	}

	if _, ok := m.Best("Surgeon", candidates); ok {
		t.Error("expected no match for unrelated name")
	}
	if _, ok := m.Best("Anything", nil); ok {
		t.Error("expected no match for empty candidate list")
	}
}

func TestMatcher_AmbiguousMargin(t *testing.T) {
	candidates := []Candidate{
		{ID: "1", Name: "Adam Beyer"},
		{ID: "2", Name: "Adam Beyer."},
	}

	strict := Matcher{Threshold: 0.75, MinMargin: 0.1}
	got, ok := strict.Best("adam beyer", candidates)
	if ok {
		t.Fatal("expected ambiguous result to be rejected")
	}
	if !got.Ambiguous {
		t.Error("expected Ambiguous flag")
	}
	if got.ID != "1" || got.RunnerUp == 0 {
		t.Errorf("unexpected match details: %+v", got)
	}

	lenient := Matcher{Threshold: 0.75}
	got, ok = lenient.Best("adam beyer", candidates)
	if !ok || got.ID != "1" {
		t.Errorf("expected best candidate 1 without margin, got %+v ok=%v", got, ok)
	}
}
