// Package testutil holds test doubles shared across packages.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// MockTwitchServer creates a test server that mocks Twitch Helix API responses.
// Requests are routed by URL path; unknown paths return 404.
type MockTwitchServer struct {
	*httptest.Server

	mu       sync.Mutex
	Handlers map[string]http.HandlerFunc
	streams  map[string][]map[string]interface{}
	requests []*http.Request
}

// NewMockTwitchServer creates a new mock Twitch API server
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
		streams:  make(map[string][]map[string]interface{}),
	}
	m.Handlers["/helix/streams"] = m.serveStreams
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests = append(m.requests, r.Clone(r.Context()))
		handler, ok := m.Handlers[r.URL.Path]
		m.mu.Unlock()
		if ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// SetLive marks login as live with the given display name.
func (m *MockTwitchServer) SetLive(login, displayName, title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[strings.ToLower(login)] = []map[string]interface{}{{
		"id":           "stream-" + login,
		"user_login":   strings.ToLower(login),
		"user_name":    displayName,
		"game_name":    "Just Chatting",
		"type":         "live",
		"title":        title,
		"viewer_count": 42,
		"started_at":   "2024-10-15T14:30:00Z",
	}}
}

// SetOffline marks login as offline (empty data array).
func (m *MockTwitchServer) SetOffline(login string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.streams, strings.ToLower(login))
}

// MockStreamsResponse replaces the streams handler with a fixed response.
func (m *MockTwitchServer) MockStreamsResponse(streams []map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handlers["/helix/streams"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"data": streams,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockRawStreamsResponse replaces the streams handler with a raw body and status.
func (m *MockTwitchServer) MockRawStreamsResponse(status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handlers["/helix/streams"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

// ServeStreamState reinstalls the default streams handler, which answers from
// the state set with SetLive and SetOffline.
func (m *MockTwitchServer) ServeStreamState() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handlers["/helix/streams"] = m.serveStreams
}

// MockOAuthTokenResponse adds a handler for OAuth token endpoint
func (m *MockTwitchServer) MockOAuthTokenResponse(accessToken string, expiresIn int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"access_token": accessToken,
			"expires_in":   expiresIn,
			"token_type":   "bearer",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// Requests returns copies of the requests received so far.
func (m *MockTwitchServer) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*http.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestsTo returns the number of requests received for path.
func (m *MockTwitchServer) RequestsTo(path string) int {
	n := 0
	for _, r := range m.Requests() {
		if r.URL.Path == path {
			n++
		}
	}
	return n
}

// Client returns an *http.Client that sends every request to the mock server,
// whatever host the caller targets.
func (m *MockTwitchServer) Client() *http.Client {
	return &http.Client{Transport: &RewriteTransport{Transport: http.DefaultTransport, Host: m.URL}}
}

func (m *MockTwitchServer) serveStreams(w http.ResponseWriter, r *http.Request) {
	login := strings.ToLower(r.URL.Query().Get("user_login"))
	m.mu.Lock()
	data, ok := m.streams[login]
	m.mu.Unlock()
	if !ok {
		data = []map[string]interface{}{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck // test mock response
		"data":       data,
		"pagination": map[string]string{},
	})
}

// RewriteTransport rewrites all requests to use the test server
type RewriteTransport struct {
	Transport http.RoundTripper
	Host      string
}

func (t *RewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = "http"
	if t.Host != "" {
		host := t.Host
		host = strings.TrimPrefix(host, "http://")
		host = strings.TrimPrefix(host, "https://")
		req.URL.Host = host
		req.Host = host
	}
	return t.Transport.RoundTrip(req)
}
