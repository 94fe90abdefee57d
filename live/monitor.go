package live

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hako/durafmt"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/golive/telemetry"
)

// DefaultInterval is the pause between two poll cycles.
const DefaultInterval = 10 * time.Second

const tracerName = "golive/live"

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval overrides the pause between poll cycles. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithClock injects the clock used for the inter-cycle wait and timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(m *Monitor) {
		if c != nil {
			m.clock = c
		}
	}
}

// Monitor polls the tracked broadcasters and fires a notification on every
// offline -> online transition.
type Monitor struct {
	fetcher  StatusFetcher
	notifier Notifier
	interval time.Duration
	clock    clockwork.Clock

	// mu guards tracked and lastCycle. The poll loop is the only writer; the
	// ops HTTP server reads through Broadcasters and LastCycle.
	mu        sync.RWMutex
	tracked   []TrackedBroadcaster
	lastCycle time.Time
}

// NewMonitor builds a Monitor for the given logins. Logins are normalised with
// NormalizeLogins and every broadcaster starts as offline.
func NewMonitor(fetcher StatusFetcher, notifier Notifier, logins []string, opts ...Option) *Monitor {
	m := &Monitor{
		fetcher:  fetcher,
		notifier: notifier,
		interval: DefaultInterval,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, l := range NormalizeLogins(logins) {
		m.tracked = append(m.tracked, TrackedBroadcaster{Login: l})
		telemetry.SetBroadcasterLive(l, false)
	}
	return m
}

// Interval returns the configured pause between cycles.
func (m *Monitor) Interval() time.Duration { return m.interval }

// Run polls until ctx is cancelled. The first cycle starts immediately.
func (m *Monitor) Run(ctx context.Context) error {
	logins := make([]string, 0, len(m.tracked))
	for _, b := range m.Broadcasters() {
		logins = append(logins, b.Login)
	}
	slog.Info("live monitor: started poller", slog.Duration("interval", m.interval), slog.Any("broadcasters", logins))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.Cycle(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.clock.After(m.interval):
		}
	}
}

// Cycle runs one poll pass over every tracked broadcaster in configured order
// and returns how many notifications were fired.
func (m *Monitor) Cycle(ctx context.Context) int {
	ctx = telemetry.WithCorrelation(ctx, uuid.New().String())
	ctx, span := telemetry.StartSpan(ctx, tracerName, "live.cycle", attribute.Int("broadcasters", len(m.tracked)))
	defer span.End()

	start := m.clock.Now()
	fired := 0
	for i := range m.tracked {
		if ctx.Err() != nil {
			break
		}
		if m.check(ctx, i) {
			fired++
		}
	}

	done := m.clock.Now()
	telemetry.ObserveCycle(done.Sub(start))
	m.mu.Lock()
	m.lastCycle = done
	m.mu.Unlock()

	telemetry.LoggerWithCorr(ctx).Debug("live monitor: cycle complete", slog.Int("notified", fired), slog.Duration("took", done.Sub(start)))
	return fired
}

// check polls one broadcaster and applies the edge-triggered transition.
// It reports whether a notification was fired.
func (m *Monitor) check(ctx context.Context, i int) bool {
	login := m.tracked[i].Login
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("broadcaster", login))

	snap, err := m.fetcher.FetchStatus(ctx, login)
	now := m.clock.Now()
	lastErr := ""
	switch {
	case err == nil:
		if snap.Online {
			telemetry.RecordStatusCheck(telemetry.ResultOnline)
		} else {
			telemetry.RecordStatusCheck(telemetry.ResultOffline)
		}
	case errors.Is(err, ErrMalformedResponse):
		log.Warn("live monitor: malformed status response; treating as offline", slog.Any("err", err))
		telemetry.RecordStatusCheck(telemetry.ResultMalformed)
		snap = Snapshot{}
		lastErr = err.Error()
	default:
		log.Warn("live monitor: status query failed; keeping last-known state", slog.Any("err", err))
		telemetry.RecordStatusCheck(telemetry.ResultError)
		m.mu.Lock()
		m.tracked[i].LastCheck = now
		m.tracked[i].LastErr = err.Error()
		m.mu.Unlock()
		return false
	}

	m.mu.Lock()
	b := &m.tracked[i]
	b.LastCheck = now
	b.LastErr = lastErr
	wentLive := snap.Online && !b.Online
	wentOffline := !snap.Online && b.Online
	var streak time.Duration
	switch {
	case wentLive:
		b.Online = true
		b.DisplayName = snap.DisplayName
		b.LiveSince = snap.StartedAt
		if b.LiveSince.IsZero() {
			b.LiveSince = now
		}
	case wentOffline:
		streak = now.Sub(b.LiveSince)
		b.Online = false
		b.LiveSince = time.Time{}
	}
	m.mu.Unlock()

	switch {
	case wentLive:
		telemetry.SetBroadcasterLive(login, true)
		log.Info("live monitor: broadcaster went live",
			slog.String("display_name", snap.DisplayName),
			slog.String("title", snap.Title),
			slog.String("game", snap.GameName))
		m.notify(ctx, log, login, snap.DisplayName)
		return true
	case wentOffline:
		telemetry.SetBroadcasterLive(login, false)
		if streak < 0 {
			streak = 0
		}
		log.Info("live monitor: broadcaster went offline; re-armed",
			slog.String("streak", durafmt.Parse(streak.Truncate(time.Second)).LimitFirstN(2).String()))
	}
	return false
}

func (m *Monitor) notify(ctx context.Context, log *slog.Logger, login, displayName string) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "live.notify", attribute.String("broadcaster", login))
	defer span.End()

	if err := m.notifier.Notify(ctx, login, displayName); err != nil {
		telemetry.RecordError(span, err)
		log.Error("live monitor: notification delivery failed", slog.Any("err", err))
		return
	}
	telemetry.SetSpanSuccess(span)
}

// Broadcasters returns a copy of the tracked table in configured order.
func (m *Monitor) Broadcasters() []TrackedBroadcaster {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TrackedBroadcaster, len(m.tracked))
	copy(out, m.tracked)
	return out
}

// LastCycle returns when the most recent cycle finished, or the zero time.
func (m *Monitor) LastCycle() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastCycle
}
