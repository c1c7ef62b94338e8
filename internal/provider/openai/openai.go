// Package openai extracts performing artists from free-text event
// descriptions with an OpenAI-compatible chat completion endpoint.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	oai "github.com/sashabaranov/go-openai"

	"github.com/sydlexius/lineup/internal/lineup"
	"github.com/sydlexius/lineup/internal/provider"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

const systemPrompt = `You extract the line-up of a music event from its description.
Return a JSON object {"performances": [...]} where each performance has:
"name" (one artist per entry, required), "time" and "end_time" (ISO 8601 or HH:MM, empty if unknown),
"stage" (empty if unknown), "performance_mode" ("B2B", "B3B", "F2F", "VS" or empty),
"soundcloud" (the artist's SoundCloud handle or URL if written in the text, else empty).
Artists sharing a back-to-back set get one entry each with the same time, stage and performance_mode.
Do not invent artists. Return {"performances": []} if no artists are listed.`

// Adapter calls the chat completion API.
type Adapter struct {
	limiter    *provider.RateLimiterMap
	creds      provider.CredentialProvider
	logger     *slog.Logger
	model      string
	baseURL    string
	httpClient *http.Client
}

// Config holds the adapter settings.
type Config struct {
	Model   string
	BaseURL string // empty for the public OpenAI endpoint
}

// New creates an extractor adapter.
func New(cfg Config, limiter *provider.RateLimiterMap, creds provider.CredentialProvider, logger *slog.Logger) *Adapter {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Adapter{
		limiter:    limiter,
		creds:      creds,
		logger:     logger.With(slog.String("provider", "openai")),
		model:      model,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameOpenAI }

type extraction struct {
	Performances []lineup.Performance `json:"performances"`
}

// ExtractPerformances returns the artists named in description.
func (a *Adapter) ExtractPerformances(ctx context.Context, description string) ([]lineup.Performance, error) {
	if strings.TrimSpace(description) == "" {
		return nil, nil
	}

	apiKey, err := a.creds.Token(ctx, provider.NameOpenAI)
	if err != nil {
		return nil, err
	}
	if err := a.limiter.Wait(ctx, provider.NameOpenAI); err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameOpenAI,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}

	cfg := oai.DefaultConfig(apiKey)
	if a.baseURL != "" {
		cfg.BaseURL = a.baseURL
	}
	cfg.HTTPClient = a.httpClient
	client := oai.NewClientWithConfig(cfg)

	start := time.Now()
	resp, err := client.CreateChatCompletion(ctx, oai.ChatCompletionRequest{
		Model: a.model,
		Messages: []oai.ChatCompletionMessage{
			{Role: oai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: oai.ChatMessageRoleUser, Content: description},
		},
		Temperature: 0,
		ResponseFormat: &oai.ChatCompletionResponseFormat{
			Type: oai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		a.logger.Warn("completion failed", slog.Duration("elapsed", time.Since(start)), slog.String("error", err.Error()))
		return nil, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameOpenAI,
			Cause:    errors.New("no choices in response"),
		}
	}

	a.logger.Debug("completion finished",
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens),
		slog.Duration("elapsed", time.Since(start)))

	perfs, err := parsePerformances(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, &provider.ErrProviderUnavailable{Provider: provider.NameOpenAI, Cause: err}
	}
	return perfs, nil
}

// parsePerformances accepts the JSON object, possibly wrapped in a markdown
// code fence, or a bare array of performances.
func parsePerformances(content string) ([]lineup.Performance, error) {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var perfs []lineup.Performance
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &perfs); err != nil {
			return nil, fmt.Errorf("parsing performances: %w", err)
		}
	} else {
		var ex extraction
		if err := json.Unmarshal([]byte(s), &ex); err != nil {
			return nil, fmt.Errorf("parsing performances: %w", err)
		}
		perfs = ex.Performances
	}

	out := perfs[:0]
	for _, p := range perfs {
		p.ArtistName = strings.TrimSpace(p.ArtistName)
		if p.ArtistName == "" {
			continue
		}
		p.Mode = strings.ToUpper(strings.TrimSpace(p.Mode))
		out = append(out, p)
	}
	return out, nil
}

func classifyError(err error) error {
	var apiErr *oai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden {
			return &provider.ErrAuthRequired{Provider: provider.NameOpenAI}
		}
		return &provider.ErrProviderUnavailable{Provider: provider.NameOpenAI, Cause: err}
	}
	var reqErr *oai.RequestError
	if errors.As(err, &reqErr) && (reqErr.HTTPStatusCode == http.StatusUnauthorized || reqErr.HTTPStatusCode == http.StatusForbidden) {
		return &provider.ErrAuthRequired{Provider: provider.NameOpenAI}
	}
	return &provider.ErrProviderUnavailable{Provider: provider.NameOpenAI, Cause: err}
}
