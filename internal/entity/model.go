// Package entity stores artists, promoters and venues and resolves raw
// scraped names to one canonical row per real-world entity.
package entity

import (
	"errors"
	"fmt"
	"time"
)

// Kind selects the entity table.
type Kind string

// Entity kinds.
const (
	KindArtist   Kind = "artist"
	KindPromoter Kind = "promoter"
	KindVenue    Kind = "venue"
)

// Platforms whose identifiers are stored as external links.
const (
	PlatformSoundCloud = "soundcloud"
	PlatformFacebook   = "facebook"
)

// ErrEmptyName is returned when a name normalizes to nothing.
var ErrEmptyName = errors.New("entity name is empty")

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindArtist, KindPromoter, KindVenue:
		return k, nil
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// DefaultPlatform is the platform an entity's hints refer to when none is
// given: artists link to their catalog account, the others to their social page.
func (k Kind) DefaultPlatform() string {
	if k == KindArtist {
		return PlatformSoundCloud
	}
	return PlatformFacebook
}

func (k Kind) table() string {
	switch k {
	case KindArtist:
		return "artists"
	case KindPromoter:
		return "promoters"
	case KindVenue:
		return "venues"
	}
	return ""
}

// Link is an entity's identity on one external platform.
type Link struct {
	ExternalID string `json:"external_id,omitempty"`
	URL        string `json:"url,omitempty"`
}

// Entity is one artist, promoter or venue row.
type Entity struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	Name        string          `json:"name"`
	NameKey     string          `json:"-"`
	ImageURL    string          `json:"image_url,omitempty"`
	Description string          `json:"description,omitempty"`
	Links       map[string]Link `json:"links,omitempty"`

	// Venue only.
	Address     string   `json:"address,omitempty"`
	City        string   `json:"city,omitempty"`
	CountryCode string   `json:"country_code,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// parseTime parses a time string, handling both RFC3339 and SQLite datetime formats.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
