// Package event stores imported events and their relations to artists,
// promoters and venues.
package event

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/sydlexius/lineup/internal/lineup"
)

// ErrMissingTitle is returned when an event has no title.
var ErrMissingTitle = errors.New("event title is empty")

// Set statuses.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Event is one imported event.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	SourceURL   string    `json:"source_url,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description,omitempty"`
	Metadata    Metadata  `json:"metadata"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Metadata is the free-form bag stored alongside an event.
type Metadata struct {
	SourceURL    string                 `json:"source_url,omitempty"`
	Stages       []string               `json:"stages,omitempty"`
	FestivalDays []lineup.FestivalDay   `json:"festival_days,omitempty"`
	Festival     *lineup.Classification `json:"festival,omitempty"`
}

// IsFestival reports whether the stored classification marks a festival.
func (m Metadata) IsFestival() bool {
	return m.Festival != nil && m.Festival.IsFestival
}

// ArtistSet is one performance slot at an event. Several artist ids mean a
// collaborative set.
type ArtistSet struct {
	ID         string   `json:"id"`
	EventID    string   `json:"event_id"`
	ArtistIDs  []string `json:"artist_ids"`
	Stage      string   `json:"stage,omitempty"`
	Start      string   `json:"start,omitempty"`
	End        string   `json:"end,omitempty"`
	Mode       string   `json:"mode,omitempty"`
	CustomName string   `json:"custom_name,omitempty"`
	Status     string   `json:"status"`
}

// Signature identifies the set of artists regardless of order.
func Signature(artistIDs []string) string {
	ids := make([]string, 0, len(artistIDs))
	seen := make(map[string]bool, len(artistIDs))
	for _, id := range artistIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

// formatTime keeps the zone offset so clock-only set times resolve against
// the event's local wall clock after a reload.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// sameTime reports whether a and b are the same instant with the same offset.
func sameTime(a, b time.Time) bool {
	if !a.Equal(b) {
		return false
	}
	_, ao := a.Zone()
	_, bo := b.Zone()
	return ao == bo
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
