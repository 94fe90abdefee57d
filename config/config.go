// Package config loads environment variables and provides a typed Config used across the service.
// It applies the defaults of the original deployment so only the two credentials are required.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultDiscordChannelID = "635425292252348419"
	DefaultTrackedStreamers = "arthlight,dpsosiris"
	DefaultPollInterval     = 10 * time.Second
	DefaultTwitchTimeout    = 10 * time.Second
	DefaultHTTPAddr         = ":8080"
)

// HTTPAddrOff disables the operational HTTP server when used as HTTP_ADDR.
const HTTPAddrOff = "off"

type Config struct {
	// Discord
	DiscordToken     string
	DiscordChannelID string

	// Twitch
	TwitchClientID     string
	TwitchClientSecret string
	TwitchAppToken     string
	TwitchHTTPTimeout  time.Duration

	// Poller
	TrackedStreamers []string
	PollInterval     time.Duration

	// Ops HTTP server; empty when disabled.
	HTTPAddr string
}

// StartupConfigError reports required settings that are missing. The process
// cannot start without them.
type StartupConfigError struct {
	Missing []string
}

func (e *StartupConfigError) Error() string {
	return "missing required configuration: " + strings.Join(e.Missing, ", ")
}

// Load reads environment variables and applies defaults. A missing credential
// yields a *StartupConfigError; a malformed value yields a plain error.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DiscordToken = strings.TrimSpace(os.Getenv("DISCORD_TOKEN"))
	cfg.DiscordChannelID = strings.TrimSpace(os.Getenv("DISCORD_CHANNEL_ID"))
	if cfg.DiscordChannelID == "" {
		cfg.DiscordChannelID = DefaultDiscordChannelID
	}

	cfg.TwitchClientID = strings.TrimSpace(os.Getenv("TWITCH_CLIENT_ID"))
	cfg.TwitchClientSecret = strings.TrimSpace(os.Getenv("TWITCH_CLIENT_SECRET"))
	cfg.TwitchAppToken = strings.TrimSpace(os.Getenv("TWITCH_APP_TOKEN"))

	var err error
	if cfg.TwitchHTTPTimeout, err = durationEnv("TWITCH_HTTP_TIMEOUT", DefaultTwitchTimeout); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = durationEnv("POLL_INTERVAL", DefaultPollInterval); err != nil {
		return nil, err
	}

	streamers := os.Getenv("TRACKED_STREAMERS")
	if strings.TrimSpace(streamers) == "" {
		streamers = DefaultTrackedStreamers
	}
	cfg.TrackedStreamers = ParseList(streamers)

	cfg.HTTPAddr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	switch {
	case cfg.HTTPAddr == "":
		cfg.HTTPAddr = DefaultHTTPAddr
	case strings.EqualFold(cfg.HTTPAddr, HTTPAddrOff):
		cfg.HTTPAddr = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the process cannot run without.
func (c *Config) Validate() error {
	var missing []string
	if c.DiscordToken == "" {
		missing = append(missing, "DISCORD_TOKEN")
	}
	if c.TwitchClientID == "" {
		missing = append(missing, "TWITCH_CLIENT_ID")
	}
	if len(c.TrackedStreamers) == 0 {
		missing = append(missing, "TRACKED_STREAMERS")
	}
	if len(missing) > 0 {
		return &StartupConfigError{Missing: missing}
	}
	return nil
}

// ParseList splits a comma-separated value into lower-cased entries, dropping
// blanks and duplicates while keeping order.
func ParseList(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(s, ",") {
		v := strings.ToLower(strings.TrimSpace(part))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s (Go duration, e.g. 10s): %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %s", key, v)
	}
	return d, nil
}
