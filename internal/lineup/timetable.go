package lineup

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

// ErrNoHeader is returned when a timetable has no Start/End/Name/Location header row.
var ErrNoHeader = errors.New("timetable header row not found")

var (
	modePattern   = regexp.MustCompile(`\b(B2B|B3B|F2F|VS)\b`)
	suffixPattern = regexp.MustCompile(`(?i)\s+(A/V|\(live\))$`)
	splitPattern  = regexp.MustCompile(`(?i)\s+(?:b2b|b3b|f2f|vs|x)\s+|\s+&\s+`)
)

// unsplittable names contain a separator but are a single act.
var unsplittable = map[string]bool{"b2b2b2b2b": true}

type timetableRow struct {
	start, end, name, stage string
}

// ParseTimetable reads a festival timetable export. Leading "//" comment
// markers are stripped, the header row is the first line starting with
// "Start," that also names End, Name and Location, and rows missing any of
// those four fields are skipped. Entries come back sorted by (time, stage).
func ParseTimetable(r io.Reader) ([]Performance, error) {
	rows, err := readTimetable(r)
	if err != nil {
		return nil, err
	}

	type slot struct{ start, end, stage string }
	index := make(map[slot]int)
	var slots []slot
	var names [][]string
	for _, row := range rows {
		k := slot{row.start, row.end, row.stage}
		i, ok := index[k]
		if !ok {
			i = len(slots)
			index[k] = i
			slots = append(slots, k)
			names = append(names, nil)
		}
		names[i] = append(names[i], row.name)
	}

	var out []Performance
	for i, s := range slots {
		start, end := timetableTime(s.start), timetableTime(s.end)
		for _, combined := range names[i] {
			artists := SplitArtists(combined)
			if len(artists) > 1 {
				custom := cleanActName(combined)
				for _, a := range artists {
					out = append(out, Performance{
						ArtistIDs:  []string{},
						ArtistName: a,
						Start:      start,
						End:        end,
						Stage:      s.stage,
						Mode:       "B2B",
						CustomName: custom,
					})
				}
				continue
			}
			out = append(out, Performance{
				ArtistIDs:  []string{},
				ArtistName: cleanActName(combined),
				Start:      start,
				End:        end,
				Stage:      s.stage,
				Mode:       DetectMode(combined),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].Stage < out[j].Stage
	})
	return out, nil
}

// SplitArtists splits a combined act name on collaboration separators
// (B2B, B3B, F2F, VS, X and " & "), dropping A/V and (live) suffixes.
func SplitArtists(combined string) []string {
	if unsplittable[strings.ToLower(strings.TrimSpace(combined))] {
		return []string{cleanActName(combined)}
	}
	var out []string
	for _, part := range splitPattern.Split(combined, -1) {
		if n := cleanActName(part); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// DetectMode returns the collaboration token (B2B, B3B, F2F, VS) in a name.
func DetectMode(name string) string {
	if m := modePattern.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return ""
}

func cleanActName(name string) string {
	return strings.TrimSpace(suffixPattern.ReplaceAllString(strings.TrimSpace(name), ""))
}

// timetableTime converts "YYYY/MM/DD HH:MM" to "YYYY-MM-DDTHH:MM". Malformed
// values become "".
func timetableTime(raw string) string {
	parts := strings.Fields(raw)
	if len(parts) != 2 {
		return ""
	}
	date := strings.Split(parts[0], "/")
	if len(date) != 3 {
		return ""
	}
	return fmt.Sprintf("%s-%s-%sT%s", date[0], date[1], date[2], parts[1])
}

func readTimetable(r io.Reader) ([]timetableRow, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	header := -1
	for sc.Scan() {
		line := sc.Text()
		if trimmed := strings.TrimLeft(line, " \t"); strings.HasPrefix(trimmed, "//") {
			line = strings.TrimLeft(trimmed[2:], " \t")
		}
		if header < 0 && isHeader(line) {
			header = len(lines)
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading timetable: %w", err)
	}
	if header < 0 {
		return nil, ErrNoHeader
	}

	cr := csv.NewReader(strings.NewReader(strings.Join(lines[header:], "\n")))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	cols, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading timetable header: %w", err)
	}
	pos := make(map[string]int, len(cols))
	for i, c := range cols {
		pos[strings.TrimSpace(c)] = i
	}
	field := func(rec []string, name string) string {
		i, ok := pos[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []timetableRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading timetable: %w", err)
		}
		row := timetableRow{
			start: field(rec, "Start"),
			end:   field(rec, "End"),
			name:  field(rec, "Name"),
			stage: field(rec, "Location"),
		}
		if row.start == "" || row.end == "" || row.name == "" || row.stage == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isHeader(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "Start,") &&
		strings.Contains(t, "End") &&
		strings.Contains(t, "Name") &&
		strings.Contains(t, "Location")
}
