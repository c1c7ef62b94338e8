// Package scrape defines the raw event descriptor produced by the event-page
// scraper and the clients that obtain one.
package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/lineup/internal/provider"
)

// RawEvent is an event as scraped from its source page.
type RawEvent struct {
	SourceURL   string    `json:"source_url"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Start       string    `json:"start_timestamp,omitempty"`
	End         string    `json:"end_timestamp,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	Hosts       []Host    `json:"hosts,omitempty"`
	Location    *Location `json:"location,omitempty"`
	TicketURL   string    `json:"ticket_url,omitempty"`
	// Festival forces festival classification.
	Festival bool `json:"festival,omitempty"`
}

// Host is an organizer listed on the event page.
type Host struct {
	Name       string `json:"name"`
	ExternalID string `json:"external_id,omitempty"`
	URL        string `json:"url,omitempty"`
	AvatarURL  string `json:"avatar_uri,omitempty"`
}

// Location is the venue listed on the event page.
type Location struct {
	Name        string       `json:"name"`
	ExternalID  string       `json:"external_id,omitempty"`
	URL         string       `json:"url,omitempty"`
	Address     string       `json:"address,omitempty"`
	City        string       `json:"city,omitempty"`
	CountryCode string       `json:"country_code,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Scraper turns an event URL into a raw event descriptor.
type Scraper interface {
	Scrape(ctx context.Context, sourceURL string) (*RawEvent, error)
}

// ParseTimestamp reads a scraped timestamp: RFC 3339, a naive ISO 8601
// date-time, or Unix seconds. It returns the zero time for anything else.
func ParseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC()
	}
	return time.Time{}
}

// Client calls a scraper service over HTTP: GET <endpoint>?url=<source>
// returning a RawEvent as JSON.
type Client struct {
	endpoint string
	client   *http.Client
	limiter  *provider.RateLimiterMap
	logger   *slog.Logger
}

// NewClient creates a scraper client for endpoint.
func NewClient(endpoint string, limiter *provider.RateLimiterMap, logger *slog.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
		limiter:  limiter,
		logger:   logger.With(slog.String("provider", "scraper")),
	}
}

// Scrape implements Scraper.
func (c *Client) Scrape(ctx context.Context, sourceURL string) (*RawEvent, error) {
	if err := c.limiter.Wait(ctx, provider.NameScraper); err != nil {
		return nil, &provider.ErrProviderUnavailable{Provider: provider.NameScraper, Cause: fmt.Errorf("rate limiter: %w", err)}
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing scraper endpoint: %w", err)
	}
	q := u.Query()
	q.Set("url", sourceURL)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("scraping", slog.String("url", sourceURL))

	resp, err := c.client.Do(req) //nolint:gosec // endpoint comes from configuration
	if err != nil {
		return nil, &provider.ErrProviderUnavailable{Provider: provider.NameScraper, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrNotFound{Provider: provider.NameScraper, ID: sourceURL}
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrProviderUnavailable{Provider: provider.NameScraper, Cause: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	var ev RawEvent
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&ev); err != nil {
		return nil, fmt.Errorf("decoding scraped event: %w", err)
	}
	if ev.SourceURL == "" {
		ev.SourceURL = sourceURL
	}
	return &ev, nil
}

// FileScraper reads RawEvent JSON documents from disk. Sources that are not
// existing files are passed to Next.
type FileScraper struct {
	Next Scraper
}

// Scrape implements Scraper.
func (f FileScraper) Scrape(ctx context.Context, source string) (*RawEvent, error) {
	data, err := os.ReadFile(source) //nolint:gosec // G304: path given on the command line
	if err != nil {
		if os.IsNotExist(err) && f.Next != nil {
			return f.Next.Scrape(ctx, source)
		}
		return nil, fmt.Errorf("reading %s: %w", source, err)
	}
	var ev RawEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", source, err)
	}
	return &ev, nil
}
