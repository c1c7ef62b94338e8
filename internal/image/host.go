package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sydlexius/lineup/internal/filesystem"
)

// ErrTooSmall is returned when the source image is below MinSide.
var ErrTooSmall = errors.New("image below minimum resolution")

const (
	defaultMaxSide = 1000
	maxDownload    = 10 << 20
)

var safeName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// LocalHost stores images under Dir/<kind>/<id>.<ext> and serves them from
// BaseURL/<kind>/<id>.<ext>.
type LocalHost struct {
	dir     string
	baseURL string
	maxSide int
	client  *http.Client
	logger  *slog.Logger
}

// NewLocalHost creates an image host rooted at dir.
func NewLocalHost(dir, baseURL string, logger *slog.Logger) *LocalHost {
	return &LocalHost{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		maxSide: defaultMaxSide,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger.With(slog.String("component", "image-host")),
	}
}

// Host downloads sourceURL, scales it and stores it for the entity. It
// returns the hosted URL.
func (h *LocalHost) Host(ctx context.Context, sourceURL, kind, id string) (string, error) {
	if !safeName.MatchString(kind) || !safeName.MatchString(id) {
		return "", fmt.Errorf("invalid image key %q/%q", kind, id)
	}

	data, err := h.fetch(ctx, sourceURL)
	if err != nil {
		return "", err
	}

	w, ht, err := Dimensions(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	if IsLowResolution(w, ht) {
		return "", fmt.Errorf("%dx%d: %w", w, ht, ErrTooSmall)
	}

	out, format, err := Resize(bytes.NewReader(data), h.maxSide)
	if err != nil {
		return "", err
	}

	name := id + extension(format)
	target := filepath.Join(h.dir, kind, name)
	if err := filesystem.WriteFileAtomic(target, out, 0o644); err != nil {
		return "", fmt.Errorf("storing image: %w", err)
	}
	removeStaleFormats(target, h.logger)

	h.logger.Debug("hosted image",
		slog.String("kind", kind),
		slog.String("id", id),
		slog.Int("width", w),
		slog.Int("height", ht),
		slog.String("format", format))

	return h.baseURL + "/" + kind + "/" + name, nil
}

func (h *LocalHost) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Lineup/1.0")

	resp, err := h.client.Do(req) //nolint:gosec // URL comes from scraped event data or a provider API
	if err != nil {
		return nil, fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetching image: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if len(data) > maxDownload {
		return nil, fmt.Errorf("image exceeds %d bytes", maxDownload)
	}
	return data, nil
}
