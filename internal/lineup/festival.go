package lineup

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Confidence increments for each festival signal.
const (
	durationScore   = 60
	knownNameScore  = 30
	keywordScore    = 15
	multiDayScore   = 15
	venueScore      = 10
	forcedScore     = 95
	maxConfidence   = 100
	festivalMinSpan = 24 * time.Hour
)

// ReasonForced is the only reason of a forced classification.
const ReasonForced = "forced"

// DefaultMaxGap separates two festival days.
const DefaultMaxGap = 8 * time.Hour

var (
	festivalKeywords = regexp.MustCompile(`(?i)\b(festival|fest|open[ -]?air|line[ -]?up|day ?[1-9]|stages?)\b`)
	multiDayKeywords = regexp.MustCompile(`(?i)\b([2-9]|two|three|four) days?\b|\b(weekend|multi[ -]?day|all weekend)\b`)
	venueKeywords    = regexp.MustCompile(`(?i)\b(park|parc|field|fields|grounds?|fairground|beach|island|forest|lake|farm|meadow|airfield|airport|racecourse|domain|domaine)\b`)
)

// ClassifyInput is what festival classification looks at.
type ClassifyInput struct {
	Name        string
	Description string
	VenueName   string
	Start       time.Time
	End         time.Time
	// Forced marks the event as a festival regardless of other signals.
	Forced bool
}

// Classification is the festival verdict for one event.
type Classification struct {
	IsFestival bool     `json:"is_festival"`
	Confidence int      `json:"confidence"`
	Reasons    []string `json:"reasons,omitempty"`
}

// Classify scores an event against the festival signals. knownFestivals are
// lower-case names matched as substrings of the event name.
func Classify(in ClassifyInput, knownFestivals []string) Classification {
	if in.Forced {
		return Classification{IsFestival: true, Confidence: forcedScore, Reasons: []string{ReasonForced}}
	}

	var c Classification
	add := func(score int, reason string) {
		c.Confidence += score
		c.Reasons = append(c.Reasons, reason)
	}

	if !in.Start.IsZero() && !in.End.IsZero() && in.End.Sub(in.Start) > festivalMinSpan {
		add(durationScore, "duration over 24h")
	}

	name := strings.ToLower(in.Name)
	for _, f := range knownFestivals {
		if f != "" && strings.Contains(name, f) {
			add(knownNameScore, "known festival: "+f)
			break
		}
	}

	text := in.Name + "\n" + in.Description
	if m := festivalKeywords.FindString(text); m != "" {
		add(keywordScore, "festival keyword: "+strings.ToLower(m))
	}
	if m := multiDayKeywords.FindString(text); m != "" {
		add(multiDayScore, "multi-day keyword: "+strings.ToLower(m))
	}
	if m := venueKeywords.FindString(in.VenueName); m != "" {
		add(venueScore, "venue keyword: "+strings.ToLower(m))
	}

	if c.Confidence > maxConfidence {
		c.Confidence = maxConfidence
	}
	c.IsFestival = c.Confidence > 0
	return c
}

// Forced reports whether c came from a forced classification.
func (c Classification) Forced() bool {
	return len(c.Reasons) == 1 && c.Reasons[0] == ReasonForced
}

// Slot is a performance with both ends resolved.
type Slot struct {
	Start time.Time
	End   time.Time
}

// FestivalDay is one cluster of performances.
type FestivalDay struct {
	Day   int       `json:"day"`
	Date  string    `json:"date"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Segmenter splits performances into festival days.
type Segmenter struct {
	MaxGap time.Duration
}

// Days sorts slots by start time and starts a new day whenever the next slot
// begins more than MaxGap after the latest end seen in the current day.
// Slots with a zero start or end are ignored.
func (s Segmenter) Days(slots []Slot) []FestivalDay {
	gap := s.MaxGap
	if gap <= 0 {
		gap = DefaultMaxGap
	}

	sorted := make([]Slot, 0, len(slots))
	for _, sl := range slots {
		if sl.Start.IsZero() || sl.End.IsZero() {
			continue
		}
		sorted = append(sorted, sl)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var days []FestivalDay
	for _, sl := range sorted {
		n := len(days)
		if n > 0 && sl.Start.Sub(days[n-1].End) <= gap {
			d := &days[n-1]
			if sl.End.After(d.End) {
				d.End = sl.End
			}
			continue
		}
		days = append(days, FestivalDay{
			Day:   n + 1,
			Date:  sl.Start.Format("2006-01-02"),
			Start: sl.Start,
			End:   sl.End,
		})
	}
	return days
}

// Slots resolves the start and end of each performance against ref, keeping
// only those where both parse. Ends that fall before their start are moved
// to the next day.
func Slots(perfs []Performance, ref time.Time) []Slot {
	var out []Slot
	for _, p := range perfs {
		start, ok := ResolveTime(p.Start, ref)
		if !ok {
			continue
		}
		end, ok := ResolveTime(p.End, start)
		if !ok {
			continue
		}
		if end.Before(start) {
			end = end.AddDate(0, 0, 1)
		}
		out = append(out, Slot{Start: start, End: end})
	}
	return out
}
