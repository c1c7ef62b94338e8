// Package soundcloud is the catalog adapter: recent uploads with their genre
// and tag fields, plus user lookups for avatars and profile links.
package soundcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/lineup/internal/provider"
)

const defaultBaseURL = "https://api.soundcloud.com"

// Adapter talks to the SoundCloud API with an OAuth2 bearer token.
type Adapter struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	creds   provider.CredentialProvider
	logger  *slog.Logger
	baseURL string
}

// New creates a SoundCloud adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, creds provider.CredentialProvider, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, creds, logger, defaultBaseURL)
}

// NewWithBaseURL creates a SoundCloud adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, creds provider.CredentialProvider, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		creds:   creds,
		logger:  logger.With(slog.String("provider", "soundcloud")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameSoundCloud }

// RecentTracks returns up to limit of the user's most recent uploads.
func (a *Adapter) RecentTracks(ctx context.Context, userID string, limit int) ([]provider.CatalogEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	params := url.Values{
		"limit":               {strconv.Itoa(limit)},
		"linked_partitioning": {"true"},
	}
	body, err := a.doRequest(ctx, "/users/"+url.PathEscape(userID)+"/tracks?"+params.Encode(), userID)
	if err != nil {
		return nil, err
	}

	tracks, err := decodeTracks(body)
	if err != nil {
		return nil, fmt.Errorf("parsing tracks: %w", err)
	}
	if len(tracks) > limit {
		tracks = tracks[:limit]
	}

	entries := make([]provider.CatalogEntry, 0, len(tracks))
	for _, t := range tracks {
		entries = append(entries, provider.CatalogEntry{
			Title:   t.Title,
			Genre:   t.Genre,
			TagList: t.TagList,
		})
	}
	return entries, nil
}

// User fetches a profile by numeric user id.
func (a *Adapter) User(ctx context.Context, userID string) (*provider.UserProfile, error) {
	body, err := a.doRequest(ctx, "/users/"+url.PathEscape(userID), userID)
	if err != nil {
		return nil, err
	}
	return decodeUser(body)
}

// ResolveProfile looks up a profile by its public page URL.
func (a *Adapter) ResolveProfile(ctx context.Context, pageURL string) (*provider.UserProfile, error) {
	body, err := a.doRequest(ctx, "/resolve?"+url.Values{"url": {pageURL}}.Encode(), pageURL)
	if err != nil {
		return nil, err
	}
	return decodeUser(body)
}

// decodeTracks accepts both the bare array and the paginated response shape.
func decodeTracks(body []byte) ([]Track, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var tracks []Track
		err := json.Unmarshal(trimmed, &tracks)
		return tracks, err
	}
	var page trackPage
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, err
	}
	return page.Collection, nil
}

func decodeUser(body []byte) (*provider.UserProfile, error) {
	var u User
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("parsing user: %w", err)
	}
	if u.Kind != "" && u.Kind != "user" {
		return nil, &provider.ErrNotFound{Provider: provider.NameSoundCloud, ID: u.Permalink}
	}
	return &provider.UserProfile{
		ID:           strconv.FormatInt(u.ID, 10),
		Username:     u.Username,
		PermalinkURL: u.PermalinkURL,
		AvatarURL:    u.AvatarURL,
		Description:  u.Description,
	}, nil
}

func (a *Adapter) doRequest(ctx context.Context, path, id string) ([]byte, error) {
	token, err := a.creds.Token(ctx, provider.NameSoundCloud)
	if err != nil {
		return nil, err
	}
	if err := a.limiter.Wait(ctx, provider.NameSoundCloud); err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameSoundCloud,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+token)
	req.Header.Set("Accept", "application/json; charset=utf-8")
	req.Header.Set("User-Agent", "Lineup/1.0")

	a.logger.Debug("requesting", slog.String("path", req.URL.Path))

	resp, err := a.client.Do(req) //nolint:gosec // URL constructed from trusted base + escaped params
	if err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameSoundCloud,
			Cause:    err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrNotFound{Provider: provider.NameSoundCloud, ID: id}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrAuthRequired{Provider: provider.NameSoundCloud}
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		var retry time.Duration
		if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			retry = time.Duration(s) * time.Second
		}
		return nil, &provider.ErrProviderUnavailable{
			Provider:   provider.NameSoundCloud,
			Cause:      fmt.Errorf("HTTP %d", resp.StatusCode),
			RetryAfter: retry,
		}
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameSoundCloud,
			Cause:    fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
}
