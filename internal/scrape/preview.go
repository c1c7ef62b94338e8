package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sydlexius/lineup/internal/provider"
)

// previewProperties are the meta tags that carry a page's share image, in
// order of preference.
var previewProperties = []string{"og:image:secure_url", "og:image", "twitter:image", "twitter:image:src"}

// PreviewFetcher reads the rich-preview image of a web page.
type PreviewFetcher struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	logger  *slog.Logger
}

// NewPreviewFetcher creates a PreviewFetcher.
func NewPreviewFetcher(limiter *provider.RateLimiterMap, logger *slog.Logger) *PreviewFetcher {
	return &PreviewFetcher{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		logger:  logger.With(slog.String("component", "preview")),
	}
}

// PreviewImage returns the absolute URL of pageURL's share image, or "" when
// the page declares none.
func (p *PreviewFetcher) PreviewImage(ctx context.Context, pageURL string) (string, error) {
	if err := p.limiter.Wait(ctx, provider.NameWeb); err != nil {
		return "", &provider.ErrProviderUnavailable{Provider: provider.NameWeb, Cause: fmt.Errorf("rate limiter: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Lineup/1.0)")
	req.Header.Set("Accept", "text/html")

	resp, err := p.client.Do(req) //nolint:gosec // URL comes from scraped event data
	if err != nil {
		return "", &provider.ErrProviderUnavailable{Provider: provider.NameWeb, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &provider.ErrProviderUnavailable{Provider: provider.NameWeb, Cause: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	found := metaImages(io.LimitReader(resp.Body, 2<<20))
	for _, prop := range previewProperties {
		if v := found[prop]; v != "" {
			return absolute(resp.Request.URL, v), nil
		}
	}
	p.logger.Debug("no preview image", slog.String("url", pageURL))
	return "", nil
}

// metaImages collects <meta property|name=... content=...> values from the
// document head. It stops at <body>.
func metaImages(r io.Reader) map[string]string {
	found := make(map[string]string)
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return found
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.DataAtom == atom.Body {
				return found
			}
			if tok.DataAtom != atom.Meta {
				continue
			}
			var key, content string
			for _, a := range tok.Attr {
				switch strings.ToLower(a.Key) {
				case "property", "name":
					key = strings.ToLower(strings.TrimSpace(a.Val))
				case "content":
					content = strings.TrimSpace(a.Val)
				}
			}
			if key != "" && content != "" && found[key] == "" {
				found[key] = content
			}
		}
	}
}

func absolute(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil || base == nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
