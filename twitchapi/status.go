// Package twitchapi queries Twitch Helix for the live status of a broadcaster,
// authenticating with the application's client id and, when configured, an app
// access token.
package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nicklaw5/helix/v2"

	"github.com/onnwee/golive/live"
)

// DefaultTimeout bounds a single status request.
const DefaultTimeout = 10 * time.Second

// Options configures a StatusClient.
type Options struct {
	ClientID string
	// ClientSecret enables client-credentials app tokens.
	ClientSecret string
	// AppToken is a pre-issued app access token, used when ClientSecret is empty.
	AppToken   string
	TokenURL   string
	HTTPClient *http.Client
}

// StatusClient answers "is this login live right now" via GET /helix/streams.
type StatusClient struct {
	mu     sync.Mutex
	client *helix.Client
	tokens *TokenSource
	status *statusTransport
}

var _ live.StatusFetcher = (*StatusClient)(nil)

// NewStatusClient builds a Helix client for status queries.
func NewStatusClient(opts Options) (*StatusClient, error) {
	if strings.TrimSpace(opts.ClientID) == "" {
		return nil, errors.New("twitch client id empty")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	// helix drops the status code when it cannot decode a body, so the
	// transport keeps it for classification.
	st := &statusTransport{base: hc.Transport}
	helixHTTP := *hc
	helixHTTP.Transport = st
	client, err := helix.NewClient(&helix.Options{
		ClientID:       opts.ClientID,
		AppAccessToken: opts.AppToken,
		HTTPClient:     &helixHTTP,
	})
	if err != nil {
		return nil, fmt.Errorf("helix: NewClient: %w", err)
	}

	sc := &StatusClient{client: client, status: st}
	if opts.ClientSecret != "" {
		sc.tokens = &TokenSource{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
			HTTPClient:   hc,
		}
	}
	return sc, nil
}

// FetchStatus reports whether login is live. An empty data array means
// offline; otherwise the first stream's fields fill the snapshot.
func (c *StatusClient) FetchStatus(ctx context.Context, login string) (live.Snapshot, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	if login == "" {
		return live.Snapshot{}, errors.New("login empty")
	}
	if err := ctx.Err(); err != nil {
		return live.Snapshot{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tokens != nil {
		tok, err := c.tokens.Get(ctx)
		if err != nil {
			return live.Snapshot{}, fmt.Errorf("twitch app token: %v: %w", err, live.ErrTransport)
		}
		c.client.SetAppAccessToken(tok)
	}

	c.status.reset()
	resp, err := c.client.GetStreams(&helix.StreamsParams{
		UserLogins: []string{login},
	})
	if err != nil {
		// Only a 2xx body that fails to decode is malformed; an undecodable
		// error page (proxy 403, CDN 429) is an upstream failure.
		if code := c.status.last(); code >= 200 && code < 300 && isDecodeError(err) {
			return live.Snapshot{}, fmt.Errorf("helix: GetStreams %s: %v: %w", login, err, live.ErrMalformedResponse)
		}
		return live.Snapshot{}, fmt.Errorf("helix: GetStreams %s: %v: %w", login, err, live.ErrTransport)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized && c.tokens != nil {
			c.tokens.Invalidate()
		}
		return live.Snapshot{}, fmt.Errorf("helix: GetStreams %s failed (%d: %s) %s: %w",
			login, resp.StatusCode, resp.Error, resp.ErrorMessage, live.ErrTransport)
	}

	streams := resp.Data.Streams
	if len(streams) == 0 {
		return live.Snapshot{}, nil
	}
	s := streams[0]
	if s.UserName == "" && s.UserLogin == "" {
		return live.Snapshot{}, fmt.Errorf("helix: GetStreams %s: stream without user fields: %w", login, live.ErrMalformedResponse)
	}
	name := s.UserName
	if name == "" {
		name = s.UserLogin
	}
	return live.Snapshot{
		Online:      true,
		DisplayName: name,
		Title:       s.Title,
		GameName:    s.GameName,
		ViewerCount: s.ViewerCount,
		StartedAt:   s.StartedAt,
	}, nil
}

// isDecodeError reports whether err came from decoding the response body.
// helix does not always wrap the json error, so the message is checked too.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"decode", "unmarshal", "invalid character", "unexpected end of json"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// statusTransport records the status code of the last response it carried.
type statusTransport struct {
	base http.RoundTripper
	code atomic.Int32
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err == nil {
		t.code.Store(int32(resp.StatusCode))
	}
	return resp, err
}

func (t *statusTransport) reset()    { t.code.Store(0) }
func (t *statusTransport) last() int { return int(t.code.Load()) }
