// Package lastfm adapts the Last.fm tag API as a genre-description service.
package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sydlexius/lineup/internal/provider"
)

const (
	defaultBaseURL = "https://ws.audioscrobbler.com/2.0"
	tagPageURL     = "https://www.last.fm/tag/"
)

// Adapter looks up tag descriptions on Last.fm.
type Adapter struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	creds   provider.CredentialProvider
	logger  *slog.Logger
	baseURL string
}

// New creates a Last.fm adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, creds provider.CredentialProvider, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, creds, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Last.fm adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, creds provider.CredentialProvider, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		creds:   creds,
		logger:  logger.With(slog.String("provider", "lastfm")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameLastFM }

// TagInfo fetches the description of a tag. It returns nil, nil when Last.fm
// knows the tag but has no description for it, and *provider.ErrNotFound when
// the tag does not exist.
func (a *Adapter) TagInfo(ctx context.Context, tag string) (*provider.TagInfo, error) {
	apiKey, err := a.creds.Token(ctx, provider.NameLastFM)
	if err != nil {
		return nil, err
	}

	if err := a.limiter.Wait(ctx, provider.NameLastFM); err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameLastFM,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}

	params := url.Values{
		"method":  {"tag.getinfo"},
		"tag":     {tag},
		"api_key": {apiKey},
		"format":  {"json"},
	}
	body, err := a.doRequest(ctx, a.baseURL+"/?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp TagInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing tag info: %w", err)
	}
	if resp.Error == errTagNotFound {
		return nil, &provider.ErrNotFound{Provider: provider.NameLastFM, ID: tag}
	}
	if resp.Error != 0 {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameLastFM,
			Cause:    fmt.Errorf("api error %d: %s", resp.Error, resp.Message),
		}
	}

	desc := resp.Tag.Wiki.Summary
	if strings.TrimSpace(desc) == "" {
		desc = resp.Tag.Wiki.Content
	}
	if strings.TrimSpace(desc) == "" {
		return nil, nil
	}

	name := resp.Tag.Name
	if name == "" {
		name = tag
	}
	return &provider.TagInfo{
		Name:        name,
		URL:         tagPageURL + url.PathEscape(strings.ToLower(name)),
		Description: desc,
	}, nil
}

// TagDescription implements the genre validator's description source. A
// missing tag is reported as "no description" rather than an error.
func (a *Adapter) TagDescription(ctx context.Context, tag string) (*provider.TagInfo, error) {
	info, err := a.TagInfo(ctx, tag)
	var nf *provider.ErrNotFound
	if errors.As(err, &nf) {
		return nil, nil
	}
	return info, err
}

func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Lineup/1.0")
	req.Header.Set("Accept", "application/json")

	a.logger.Debug("requesting", slog.String("method", "tag.getinfo"))

	resp, err := a.client.Do(req) //nolint:gosec // URL constructed from trusted base + API params
	if err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameLastFM,
			Cause:    err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrAuthRequired{Provider: provider.NameLastFM}
	}
	// Last.fm reports unknown tags with a JSON error body and a 404 status.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameLastFM,
			Cause:    fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 512*1024))
}
