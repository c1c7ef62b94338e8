package normalize

import (
	"strings"
	"unicode"
)

// DefaultThreshold is the minimum similarity for two names to count as the
// same entity.
const DefaultThreshold = 0.75

// Similarity scores a and b in [0,1] with the Dice coefficient over the
// multisets of adjacent-rune bigrams. Whitespace is ignored and both inputs
// are case-folded. Inputs shorter than two runes score 0 unless identical.
func Similarity(a, b string) float64 {
	a = compact(a)
	b = compact(b)
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) < 2 || len(rb) < 2 {
		return 0
	}

	ga := bigrams(ra)
	gb := bigrams(rb)
	shared := 0
	for g, n := range ga {
		if m, ok := gb[g]; ok {
			shared += min(n, m)
		}
	}
	return 2 * float64(shared) / float64(len(ra)-1+len(rb)-1)
}

func compact(s string) string {
	s = Fold(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func bigrams(r []rune) map[[2]rune]int {
	out := make(map[[2]rune]int, len(r)-1)
	for i := 0; i < len(r)-1; i++ {
		out[[2]rune{r[i], r[i+1]}]++
	}
	return out
}

// Candidate is a stored name that an input may be matched against.
type Candidate struct {
	ID   string
	Name string
}

// Match is the outcome of scoring an input against a candidate list.
type Match struct {
	Candidate
	Score float64
	// RunnerUp is the score of the second-best candidate at or above the threshold.
	RunnerUp float64
	// Ambiguous is set when the winner's lead over RunnerUp is below the
	// configured margin. Ambiguous matches are not returned as found.
	Ambiguous bool
}

// Matcher selects the best fuzzy candidate for a name.
type Matcher struct {
	Threshold float64
	// MinMargin is the lead the best candidate needs over the runner-up.
	// Zero disables the check.
	MinMargin float64
}

// DefaultMatcher returns a Matcher using DefaultThreshold and no margin.
func DefaultMatcher() Matcher {
	return Matcher{Threshold: DefaultThreshold}
}

// Best returns the highest-scoring candidate whose score reaches the
// threshold. Ties keep the earliest candidate. The bool is false when nothing
// qualifies or the winner is ambiguous; the returned Match still carries the
// scores so callers can log them.
func (m Matcher) Best(name string, candidates []Candidate) (Match, bool) {
	threshold := m.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var best Match
	found := false
	for _, c := range candidates {
		score := Similarity(name, c.Name)
		if score < threshold {
			continue
		}
		switch {
		case !found:
			best = Match{Candidate: c, Score: score}
			found = true
		case score > best.Score:
			best.RunnerUp = best.Score
			best.Candidate = c
			best.Score = score
		case score > best.RunnerUp:
			best.RunnerUp = score
		}
	}
	if !found {
		return Match{}, false
	}
	if m.MinMargin > 0 && best.RunnerUp > 0 && best.Score-best.RunnerUp < m.MinMargin {
		best.Ambiguous = true
		return best, false
	}
	return best, true
}
