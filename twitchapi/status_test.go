package twitchapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/golive/live"
	"github.com/onnwee/golive/testutil"
)

func newTestClient(t *testing.T, m *testutil.MockTwitchServer, secret string) *StatusClient {
	t.Helper()
	client, err := NewStatusClient(Options{
		ClientID:     "test-client-id",
		ClientSecret: secret,
		HTTPClient:   m.Client(),
	})
	if err != nil {
		t.Fatalf("NewStatusClient() error = %v", err)
	}
	return client
}

func TestStatusClient_FetchStatusLiveAndOffline(t *testing.T) {
	m := testutil.NewMockTwitchServer(t)
	m.SetLive("dpsosiris", "dpsOsiris", "Live Now")
	client := newTestClient(t, m, "")

	snap, err := client.FetchStatus(context.Background(), "DPSOsiris")
	if err != nil {
		t.Fatalf("FetchStatus() error = %v", err)
	}
	if !snap.Online {
		t.Fatal("expected online snapshot")
	}
	if snap.DisplayName != "dpsOsiris" {
		t.Errorf("DisplayName = %q, want dpsOsiris", snap.DisplayName)
	}
	if snap.Title != "Live Now" || snap.GameName != "Just Chatting" || snap.ViewerCount != 42 {
		t.Errorf("unexpected stream fields: %+v", snap)
	}
	wantStart := time.Date(2024, 10, 15, 14, 30, 0, 0, time.UTC)
	if !snap.StartedAt.Equal(wantStart) {
		t.Errorf("StartedAt = %v, want %v", snap.StartedAt, wantStart)
	}

	snap, err = client.FetchStatus(context.Background(), "arthlight")
	if err != nil {
		t.Fatalf("FetchStatus() error = %v", err)
	}
	if snap.Online {
		t.Fatalf("expected offline snapshot for empty data, got %+v", snap)
	}

	reqs := m.Requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(reqs))
	}
	for _, r := range reqs {
		if r.URL.Path != "/helix/streams" {
			t.Errorf("path = %s, want /helix/streams", r.URL.Path)
		}
		if got := r.Header.Get("Client-Id"); got != "test-client-id" {
			t.Errorf("Client-Id header = %q, want test-client-id", got)
		}
	}
	if got := reqs[0].URL.Query().Get("user_login"); got != "dpsosiris" {
		t.Errorf("user_login = %q, want dpsosiris", got)
	}
}

func TestStatusClient_AppTokenFromClientCredentials(t *testing.T) {
	m := testutil.NewMockTwitchServer(t)
	m.MockOAuthTokenResponse("app-token", 3600)
	m.SetLive("arthlight", "arthlight", "hi")
	client := newTestClient(t, m, "test-secret")

	for i := 0; i < 2; i++ {
		if _, err := client.FetchStatus(context.Background(), "arthlight"); err != nil {
			t.Fatalf("FetchStatus() error = %v", err)
		}
	}

	if got := m.RequestsTo("/oauth2/token"); got != 1 {
		t.Errorf("expected 1 token request (cached), got %d", got)
	}
	for _, r := range m.Requests() {
		if r.URL.Path != "/helix/streams" {
			continue
		}
		if got := r.Header.Get("Authorization"); got != "Bearer app-token" {
			t.Errorf("Authorization = %q, want Bearer app-token", got)
		}
	}
}

func TestStatusClient_UnauthorizedInvalidatesToken(t *testing.T) {
	m := testutil.NewMockTwitchServer(t)
	m.MockOAuthTokenResponse("app-token", 3600)
	m.MockRawStreamsResponse(http.StatusUnauthorized, `{"error":"Unauthorized","status":401,"message":"Invalid OAuth token"}`)
	client := newTestClient(t, m, "test-secret")

	_, err := client.FetchStatus(context.Background(), "arthlight")
	if !errors.Is(err, live.ErrTransport) {
		t.Fatalf("FetchStatus() error = %v, want ErrTransport", err)
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error should carry status code, got %v", err)
	}

	_, _ = client.FetchStatus(context.Background(), "arthlight")
	if got := m.RequestsTo("/oauth2/token"); got != 2 {
		t.Errorf("expected token to be re-requested after 401, got %d token requests", got)
	}
}

func TestStatusClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{"error":"Internal Server Error","status":500}`, live.ErrTransport},
		{"rate limited", http.StatusTooManyRequests, `{"error":"Too Many Requests","status":429}`, live.ErrTransport},
		{"data is not an array", http.StatusOK, `{"data":"oops"}`, live.ErrMalformedResponse},
		{"not json", http.StatusOK, `not json at all`, live.ErrMalformedResponse},
		{"stream without user fields", http.StatusOK, `{"data":[{"id":"1","type":"live"}]}`, live.ErrMalformedResponse},
		{"forbidden html page", http.StatusForbidden, `<html><body>Access denied</body></html>`, live.ErrTransport},
		{"rate limited html page", http.StatusTooManyRequests, `<html>slow down</html>`, live.ErrTransport},
		{"gateway error page", http.StatusBadGateway, `<html>bad gateway</html>`, live.ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testutil.NewMockTwitchServer(t)
			m.MockRawStreamsResponse(tt.status, tt.body)
			client := newTestClient(t, m, "")

			_, err := client.FetchStatus(context.Background(), "arthlight")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("FetchStatus() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStatusClient_TransportFailure(t *testing.T) {
	m := testutil.NewMockTwitchServer(t)
	client := newTestClient(t, m, "")
	m.Close()

	_, err := client.FetchStatus(context.Background(), "arthlight")
	if !errors.Is(err, live.ErrTransport) {
		t.Fatalf("FetchStatus() error = %v, want ErrTransport", err)
	}
}

func TestStatusClient_TokenFailureIsTransport(t *testing.T) {
	m := testutil.NewMockTwitchServer(t) // no token handler -> 404
	client := newTestClient(t, m, "test-secret")

	_, err := client.FetchStatus(context.Background(), "arthlight")
	if !errors.Is(err, live.ErrTransport) {
		t.Fatalf("FetchStatus() error = %v, want ErrTransport", err)
	}
	if m.RequestsTo("/helix/streams") != 0 {
		t.Error("streams must not be queried without a token")
	}
}

func TestStatusClient_InvalidInput(t *testing.T) {
	if _, err := NewStatusClient(Options{}); err == nil {
		t.Error("NewStatusClient() with empty client id should fail")
	}

	m := testutil.NewMockTwitchServer(t)
	client := newTestClient(t, m, "")
	if _, err := client.FetchStatus(context.Background(), "  "); err == nil {
		t.Error("FetchStatus() with empty login should fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.FetchStatus(ctx, "arthlight"); !errors.Is(err, context.Canceled) {
		t.Errorf("FetchStatus() on cancelled ctx = %v, want context.Canceled", err)
	}
	if len(m.Requests()) != 0 {
		t.Error("no request expected for invalid input")
	}
}

type countingNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *countingNotifier) Notify(_ context.Context, login, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, login)
	return nil
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// An HTML error page in the middle of a stream must not re-arm the broadcaster.
func TestStatusClient_ErrorPageKeepsStreakWithMonitor(t *testing.T) {
	m := testutil.NewMockTwitchServer(t)
	m.SetLive("arthlight", "arthlight", "live")
	client := newTestClient(t, m, "")
	n := &countingNotifier{}
	mon := live.NewMonitor(client, n, []string{"arthlight"})

	mon.Cycle(context.Background())

	m.MockRawStreamsResponse(http.StatusForbidden, `<html><body>Access denied</body></html>`)
	mon.Cycle(context.Background())
	b := mon.Broadcasters()[0]
	if !b.Online {
		t.Fatal("error page must keep the last-known online state")
	}
	if b.LastErr == "" {
		t.Error("expected LastErr to record the failed query")
	}

	m.ServeStreamState()
	mon.Cycle(context.Background())

	if got := n.count(); got != 1 {
		t.Fatalf("notifications over one uninterrupted streak = %d, want 1", got)
	}
}
