// Package provider holds what the external-service adapters share: service
// names, result types, typed errors, rate limiting and credentials.
package provider

import (
	"errors"
	"fmt"
	"time"
)

// ProviderName uniquely identifies an external service.
type ProviderName string

// Known provider names.
const (
	NameLastFM     ProviderName = "lastfm"
	NameSoundCloud ProviderName = "soundcloud"
	NameOpenAI     ProviderName = "openai"
	NameScraper    ProviderName = "scraper"
	NameWeb        ProviderName = "web"
)

// DisplayName returns a human-readable name for the provider.
func (n ProviderName) DisplayName() string {
	switch n {
	case NameLastFM:
		return "Last.fm"
	case NameSoundCloud:
		return "SoundCloud"
	case NameOpenAI:
		return "OpenAI"
	case NameScraper:
		return "Event scraper"
	case NameWeb:
		return "Web"
	default:
		return string(n)
	}
}

// TagInfo is a tag description as returned by a genre-description service.
type TagInfo struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
	// Description is the raw description, possibly containing markup.
	Description string `json:"description"`
}

// CatalogEntry is one recent upload from an artist's catalog account.
type CatalogEntry struct {
	Title   string `json:"title,omitempty"`
	Genre   string `json:"genre,omitempty"`
	TagList string `json:"tag_list,omitempty"`
}

// UserProfile is an artist account on a catalog platform.
type UserProfile struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PermalinkURL string `json:"permalink_url,omitempty"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	Description  string `json:"description,omitempty"`
}

// ErrProviderUnavailable indicates a transient failure (rate-limited, timeout, server error).
type ErrProviderUnavailable struct {
	Provider   ProviderName
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrProviderUnavailable) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Cause)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Cause }

// ErrNotFound indicates the provider has no data for the requested ID.
type ErrNotFound struct {
	Provider ProviderName
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("provider %s: %s not found", e.Provider, e.ID)
}

// ErrAuthRequired indicates the provider needs credentials but none are configured
// or the configured ones were rejected.
type ErrAuthRequired struct {
	Provider ProviderName
}

func (e *ErrAuthRequired) Error() string {
	return fmt.Sprintf("provider %s: credentials not configured", e.Provider)
}

// IsNotFound reports whether err is an *ErrNotFound.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}

// IsExternal reports whether err came from an external service rather than
// from local code.
func IsExternal(err error) bool {
	var (
		unavailable *ErrProviderUnavailable
		notFound    *ErrNotFound
		auth        *ErrAuthRequired
	)
	return errors.As(err, &unavailable) || errors.As(err, &notFound) || errors.As(err, &auth)
}
