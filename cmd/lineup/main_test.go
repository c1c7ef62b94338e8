package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/sydlexius/lineup/internal/lineup"
)

const timetableCSV = `// Start,End,Name,Location
2025/07/05 14:00,2025/07/05 15:30,Alpha B2B Beta,Hangar
2025/07/05 12:00,2025/07/05 14:00,Delta (live),Hangar
`

func writeTimetable(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "timetable.csv")
	if err := os.WriteFile(path, []byte(timetableCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunTimetable_Stdout(t *testing.T) {
	var out bytes.Buffer
	if err := runTimetable([]string{writeTimetable(t)}, &out); err != nil {
		t.Fatalf("runTimetable: %v", err)
	}

	var perfs []lineup.Performance
	if err := json.Unmarshal(out.Bytes(), &perfs); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(perfs) != 3 {
		t.Fatalf("got %d performances, want 3", len(perfs))
	}
	if perfs[0].ArtistName != "Delta" {
		t.Errorf("first performance = %q, want Delta", perfs[0].ArtistName)
	}
}

func TestRunTimetable_OutputFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out.json")
	var out bytes.Buffer
	if err := runTimetable([]string{writeTimetable(t), "-o", target}, &out); err != nil {
		t.Fatalf("runTimetable: %v", err)
	}
	if !strings.Contains(out.String(), target) {
		t.Errorf("expected confirmation naming %s, got %q", target, out.String())
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(data), `"custom_name": "Alpha B2B Beta"`) {
		t.Errorf("output missing custom name: %s", data)
	}
}

func TestRunTimetable_NoRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := os.WriteFile(path, []byte("Start,End,Name,Location\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := runTimetable([]string{path}, &bytes.Buffer{}); err == nil {
		t.Error("expected an error for a timetable without rows")
	}
}

func TestReorder(t *testing.T) {
	got := reorder([]string{"a.json", "-festival", "b.json", "-timetable", "t.csv"})
	want := []string{"-festival", "-timetable", "t.csv", "a.json", "b.json"}
	if !slices.Equal(got, want) {
		t.Errorf("reorder = %v, want %v", got, want)
	}
}
