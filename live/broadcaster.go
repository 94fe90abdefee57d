package live

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrTransport marks a network or upstream failure (status query or delivery).
	ErrTransport = errors.New("transport error")
	// ErrMalformedResponse marks a status response that could not be interpreted.
	ErrMalformedResponse = errors.New("malformed response")
)

// TrackedBroadcaster is one entry of the monitored list.
type TrackedBroadcaster struct {
	Login       string    `json:"login"`
	Online      bool      `json:"online"`
	DisplayName string    `json:"display_name,omitempty"`
	LiveSince   time.Time `json:"live_since,omitempty"`
	LastCheck   time.Time `json:"last_check,omitempty"`
	LastErr     string    `json:"last_error,omitempty"`
}

// Snapshot is the result of one status query for one broadcaster.
type Snapshot struct {
	Online      bool
	DisplayName string
	Title       string
	GameName    string
	ViewerCount int
	StartedAt   time.Time
}

// StatusFetcher queries the current live status of a broadcaster by login.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, login string) (Snapshot, error)
}

// Notifier announces that a broadcaster just went live.
type Notifier interface {
	Notify(ctx context.Context, login, displayName string) error
}

// NormalizeLogins trims and lower-cases logins, dropping blanks and duplicates
// while keeping the first-seen order.
func NormalizeLogins(logins []string) []string {
	seen := make(map[string]struct{}, len(logins))
	out := make([]string, 0, len(logins))
	for _, l := range logins {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
