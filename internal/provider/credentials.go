package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// CredentialProvider supplies the secret an adapter authenticates with: an
// API key or a bearer token, depending on the service.
type CredentialProvider interface {
	Token(ctx context.Context, name ProviderName) (string, error)
}

// StaticCredentials serves fixed API keys.
type StaticCredentials map[ProviderName]string

// Token returns the configured key or *ErrAuthRequired.
func (s StaticCredentials) Token(_ context.Context, name ProviderName) (string, error) {
	if v := s[name]; v != "" {
		return v, nil
	}
	return "", &ErrAuthRequired{Provider: name}
}

// OAuthCredentials exchanges client credentials for bearer tokens. Tokens are
// cached and refreshed by the underlying oauth2.TokenSource once they expire.
type OAuthCredentials struct {
	mu      sync.RWMutex
	sources map[ProviderName]oauth2.TokenSource
}

// NewOAuthCredentials creates an empty OAuth credential provider.
func NewOAuthCredentials() *OAuthCredentials {
	return &OAuthCredentials{sources: make(map[ProviderName]oauth2.TokenSource)}
}

// Register configures the client-credentials grant for a provider. client,
// when non-nil, is used for token requests.
func (c *OAuthCredentials) Register(name ProviderName, cfg clientcredentials.Config, client *http.Client) {
	ctx := context.Background()
	if client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[name] = cfg.TokenSource(ctx)
}

// Token returns a valid access token, fetching a new one if the cached token
// has expired.
func (c *OAuthCredentials) Token(_ context.Context, name ProviderName) (string, error) {
	c.mu.RLock()
	src, ok := c.sources[name]
	c.mu.RUnlock()
	if !ok {
		return "", &ErrAuthRequired{Provider: name}
	}

	tok, err := src.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil &&
			(re.Response.StatusCode == http.StatusUnauthorized || re.Response.StatusCode == http.StatusBadRequest) {
			return "", &ErrAuthRequired{Provider: name}
		}
		return "", &ErrProviderUnavailable{Provider: name, Cause: fmt.Errorf("fetching token: %w", err)}
	}
	return tok.AccessToken, nil
}

// ChainCredentials asks each provider in turn and returns the first token.
type ChainCredentials []CredentialProvider

// Token implements CredentialProvider.
func (c ChainCredentials) Token(ctx context.Context, name ProviderName) (string, error) {
	for _, p := range c {
		tok, err := p.Token(ctx, name)
		if err == nil {
			return tok, nil
		}
		var auth *ErrAuthRequired
		if !errors.As(err, &auth) {
			return "", err
		}
	}
	return "", &ErrAuthRequired{Provider: name}
}
