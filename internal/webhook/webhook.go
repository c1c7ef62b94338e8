// Package webhook forwards bus notifications to HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sydlexius/lineup/internal/bus"
)

const (
	maxAttempts    = 3
	requestTimeout = 10 * time.Second
)

// Notifier POSTs every message it receives as JSON to each configured URL.
type Notifier struct {
	urls       []string
	httpClient *http.Client
	sleep      func(time.Duration)
	logger     *slog.Logger
}

// NewNotifier creates a Notifier for urls.
func NewNotifier(urls []string, logger *slog.Logger) *Notifier {
	return &Notifier{
		urls:       urls,
		httpClient: &http.Client{Timeout: requestTimeout},
		sleep:      time.Sleep,
		logger:     logger.With(slog.String("component", "webhook")),
	}
}

// Attach subscribes the notifier to every topic on b. It does nothing when
// no URL is configured.
func (n *Notifier) Attach(b *bus.Bus) {
	if len(n.urls) == 0 {
		return
	}
	b.SubscribeAll(n.Handle)
}

// Handle delivers m to every URL, retrying failed deliveries with
// exponential backoff. It runs on the bus goroutine.
func (n *Notifier) Handle(m bus.Message) {
	body, err := json.Marshal(m)
	if err != nil {
		n.logger.Error("encoding notification", slog.String("topic", string(m.Topic)), slog.String("error", err.Error()))
		return
	}
	for _, u := range n.urls {
		n.deliver(u, m.Topic, body)
	}
}

func (n *Notifier) deliver(url string, topic bus.Topic, body []byte) {
	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			n.sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}
		if lastErr = n.send(url, body); lastErr == nil {
			n.logger.Debug("webhook delivered",
				slog.String("topic", string(topic)),
				slog.Int("attempt", attempt+1))
			return
		}
		n.logger.Warn("webhook delivery failed",
			slog.String("topic", string(topic)),
			slog.Int("attempt", attempt+1),
			slog.String("error", lastErr.Error()))
	}
	n.logger.Error("webhook delivery exhausted retries",
		slog.String("url", url),
		slog.String("topic", string(topic)),
		slog.String("error", lastErr.Error()))
}

func (n *Notifier) send(url string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Lineup-Webhook/1.0")

	resp, err := n.httpClient.Do(req) //nolint:gosec // URL comes from configuration
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()        //nolint:errcheck
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
