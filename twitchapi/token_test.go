package twitchapi

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/onnwee/golive/testutil"
)

func TestTokenSource_GetCached(t *testing.T) {
	m := testutil.NewMockTwitchServer(t)
	m.MockOAuthTokenResponse("test-token-123", 3600)

	ts := &TokenSource{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		HTTPClient:   m.Client(),
	}

	ctx := context.Background()
	token1, err := ts.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if token1 != "test-token-123" {
		t.Errorf("Get() = %s, want test-token-123", token1)
	}

	token2, err := ts.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if token2 != token1 {
		t.Errorf("cached token = %s, want %s", token2, token1)
	}
	if got := m.RequestsTo("/oauth2/token"); got != 1 {
		t.Errorf("expected 1 token request (cached), got %d", got)
	}
}

func TestTokenSource_SendsClientCredentialsInBody(t *testing.T) {
	m := testutil.NewMockTwitchServer(t)
	var form url.Values
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600,"token_type":"bearer"}`))
	}

	ts := &TokenSource{ClientID: "cid", ClientSecret: "secret", HTTPClient: m.Client()}
	if _, err := ts.Get(context.Background()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if form.Get("grant_type") != "client_credentials" {
		t.Errorf("grant_type = %q, want client_credentials", form.Get("grant_type"))
	}
	if form.Get("client_id") != "cid" || form.Get("client_secret") != "secret" {
		t.Errorf("client credentials not sent in body: %v", form)
	}
}

func TestTokenSource_Invalidate(t *testing.T) {
	m := testutil.NewMockTwitchServer(t)
	m.MockOAuthTokenResponse("tok", 3600)
	ts := &TokenSource{ClientID: "cid", ClientSecret: "secret", HTTPClient: m.Client()}

	if _, err := ts.Get(context.Background()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	ts.Invalidate()
	if _, err := ts.Get(context.Background()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := m.RequestsTo("/oauth2/token"); got != 2 {
		t.Errorf("expected 2 token requests after Invalidate, got %d", got)
	}
}

func TestTokenSource_MissingCredentials(t *testing.T) {
	ts := &TokenSource{ClientID: "only-id"}
	if _, err := ts.Get(context.Background()); err == nil {
		t.Error("Get() without secret should fail")
	}
}
