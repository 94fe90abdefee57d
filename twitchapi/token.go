package twitchapi

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenURL is Twitch's OAuth token endpoint.
const DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

// TokenSource fetches and caches a Twitch app access (client credentials) token.
// NOTE: an app token only authorizes Helix reads; it carries no user scopes.
type TokenSource struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	HTTPClient   *http.Client

	mu  sync.Mutex
	src oauth2.TokenSource
}

// Get returns a valid (fresh or cached) app access token.
func (ts *TokenSource) Get(ctx context.Context) (string, error) {
	ts.mu.Lock()
	if ts.src == nil {
		if ts.ClientID == "" || ts.ClientSecret == "" {
			ts.mu.Unlock()
			return "", errors.New("missing client id/secret for twitch app token")
		}
		ts.src = ts.newSource()
	}
	src := ts.src
	ts.mu.Unlock()

	tok, err := src.Token()
	if err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", errors.New("empty access_token in twitch response")
	}
	return tok.AccessToken, nil
}

// Invalidate drops the cached token so the next Get requests a new one.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	ts.src = nil
	ts.mu.Unlock()
}

func (ts *TokenSource) newSource() oauth2.TokenSource {
	tokenURL := ts.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	cfg := clientcredentials.Config{
		ClientID:     ts.ClientID,
		ClientSecret: ts.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	// The token source outlives any single poll, so it is bound to a
	// background context carrying only the HTTP client.
	ctx := context.Background()
	if ts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, ts.HTTPClient)
	}
	return cfg.TokenSource(ctx)
}
