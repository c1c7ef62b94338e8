package genre

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// genreSuffixes are the words a raw tag may have glued to a qualifier.
var genreSuffixes = []string{
	"techno", "garage", "trance", "house", "disco", "dance", "step", "bass",
	"wave", "beat", "trap", "funk", "core", "hop",
}

var qualifiers = map[string]bool{
	"hard": true, "acid": true, "deep": true, "tech": true, "minimal": true,
	"progressive": true, "melodic": true, "hyper": true, "dark": true,
	"future": true, "uk": true, "afro": true, "bass": true, "dub": true,
	"hip": true, "nu": true, "psy": true, "electro": true, "dream": true,
	"synth": true, "italo": true, "jungle": true, "speed": true,
}

// Words that read as qualifier+suffix but are genre names in their own right.
var compoundWords = map[string]bool{
	"hardcore": true, "dubstep": true, "psytrance": true, "synthwave": true,
	"darkwave": true, "speedcore": true, "hardstyle": true,
}

var acronyms = map[string]string{
	"uk": "UK", "us": "US", "edm": "EDM", "idm": "IDM", "ebm": "EBM",
	"dnb": "DnB", "ukg": "UKG", "ai": "AI",
}

// FormatName turns a validated tag into a display name: qualifiers glued to
// a suffix word are separated, words are title-cased and known acronyms are
// upper-cased. "hardtechno" becomes "Hard Techno".
func FormatName(tag string) string {
	words := strings.Fields(strings.ToLower(tag))
	out := make([]string, 0, len(words)+1)
	for _, w := range words {
		out = append(out, splitSuffix(w)...)
	}
	caser := cases.Title(language.English)
	for i, w := range out {
		if a, ok := acronyms[w]; ok {
			out[i] = a
			continue
		}
		out[i] = caser.String(w)
	}
	return strings.Join(out, " ")
}

func splitSuffix(word string) []string {
	if compoundWords[word] {
		return []string{word}
	}
	for _, suffix := range genreSuffixes {
		prefix, ok := strings.CutSuffix(word, suffix)
		if !ok || prefix == "" {
			continue
		}
		if qualifiers[prefix] {
			return []string{prefix, suffix}
		}
	}
	return []string{word}
}
