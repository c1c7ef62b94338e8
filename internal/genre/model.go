// Package genre derives genre tags for artists from their catalog uploads,
// validates them against a genre-description service and aggregates artist
// genres into consensus sets for events and promoters.
package genre

import "time"

// Genre is one taxonomy entry.
type Genre struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	ExternalURL string    `json:"external_url,omitempty"`
	Banned      bool      `json:"banned"`
	CreatedAt   time.Time `json:"created_at"`
}

// Lists is the curated data the genre pipeline consults.
type Lists interface {
	IsBannedGenre(name string) bool
	GenreAlias(tag string) (canonical string, ok bool)
}
