package normalize

import "testing"

type staticExceptions map[string]string

func (e staticExceptions) NameException(original string) (string, bool) {
	v, ok := e[original]
	return v, ok
}

func (e staticExceptions) IsNameExceptionTarget(name string) bool {
	for _, v := range e {
		if v == name {
			return true
		}
	}
	return false
}

func TestNormalize(t *testing.T) {
	n := New(nil)
	tests := []struct {
		in, want string
	}{
		{"Café Test", "Cafe Test"},
		{"  --DJ Koze--  ", "DJ Koze"},
		{"A.D.H.D.", "A.D.H.D"},
		{"Ø Phase", "Ø Phase"},
		{"Héctor  Oaks", "Hector Oaks"},
		{"***", ""},
		{"", ""},
		{"(Live) Set", "Live) Set"},
	}
	for _, tt := range tests {
		if got := n.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n := New(staticExceptions{"Kölsch": "Kölsch"})
	inputs := []string{
		"Café Test", "CAFE TEST", "  ~Nina Kraviz~ ", "Kölsch", "Ben Klock & Marcel Dettmann",
		"!!!", "Âme", "DVS1", "I Hate Models.", "Ørjan Nilsen",
	}
	for _, in := range inputs {
		once := n.Normalize(in)
		twice := n.Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalize_IdempotentWithUncleanReplacement(t *testing.T) {
	n := New(staticExceptions{
		"Oz":       "Öz Berlin",
		"-Kink-":   "--KiNK--",
		"Ame Live": "Âme (Live)",
	})
	for _, in := range []string{"Oz", "-Kink-", "Ame Live", "Öz Berlin", "Oz Berlin"} {
		once := n.Normalize(in)
		twice := n.Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
	if got := n.Normalize("Oz"); got != "Öz Berlin" {
		t.Errorf("Normalize(Oz) = %q, want the replacement", got)
	}
	if got := n.Normalize("Oz Berlin"); got != "Oz Berlin" {
		t.Errorf("Normalize(Oz Berlin) = %q, rules should still apply to other names", got)
	}
}

func TestNormalize_Exceptions(t *testing.T) {
	n := New(staticExceptions{
		"Kölsch":     "Kölsch",
		"Jeff Mills!": "Jeff Mills (Axis)",
	})
	if got := n.Normalize("Kölsch"); got != "Kölsch" {
		t.Errorf("exception not applied: got %q", got)
	}
	if got := n.Normalize("  Jeff Mills! "); got != "Jeff Mills (Axis)" {
		t.Errorf("exception not applied to trimmed name: got %q", got)
	}
	if got := n.Normalize("Kolsch"); got != "Kolsch" {
		t.Errorf("rule result = %q, want Kolsch", got)
	}
}

func TestKey_CaseAndDiacritics(t *testing.T) {
	n := New(nil)
	if a, b := n.Key("Café Test"), n.Key("CAFE TEST"); a != b {
		t.Errorf("Key mismatch: %q vs %q", a, b)
	}
	if got := n.Key("Café Test"); got != "cafe test" {
		t.Errorf("Key = %q, want %q", got, "cafe test")
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hard-Techno", "hardtechno"},
		{"Drum & Bass", "drumbass"},
		{"  Électro ", "electro"},
		{"UK Garage", "ukgarage"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
