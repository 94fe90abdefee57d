// Command golive watches a list of Twitch broadcasters and posts an
// announcement to a Discord channel each time one of them goes live.
// It:
//   - Loads configuration and initializes structured logging.
//   - Polls Twitch Helix for every tracked login on a fixed interval.
//   - Sends one embed per offline -> online transition through the Discord REST API.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/golive/config"
	"github.com/onnwee/golive/discord"
	"github.com/onnwee/golive/live"
	"github.com/onnwee/golive/server"
	"github.com/onnwee/golive/telemetry"
	"github.com/onnwee/golive/twitchapi"
)

const version = "1.0.0"

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	cfg, err := config.Load()
	if err != nil {
		var sce *config.StartupConfigError
		if errors.As(err, &sce) {
			slog.Error("required configuration missing", slog.Any("missing", sce.Missing))
		} else {
			slog.Error("config load failed", slog.Any("err", err))
		}
		os.Exit(1)
	}

	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("golive", version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	fetcher, err := twitchapi.NewStatusClient(twitchapi.Options{
		ClientID:     cfg.TwitchClientID,
		ClientSecret: cfg.TwitchClientSecret,
		AppToken:     cfg.TwitchAppToken,
		HTTPClient:   &http.Client{Timeout: cfg.TwitchHTTPTimeout},
	})
	if err != nil {
		slog.Error("twitch client init failed", slog.Any("err", err))
		os.Exit(1)
	}
	if cfg.TwitchClientSecret == "" && cfg.TwitchAppToken == "" {
		slog.Warn("no TWITCH_CLIENT_SECRET or TWITCH_APP_TOKEN; helix requests carry only the client id and may be rejected")
	}

	// REST only: announcements and user lookups need no gateway connection.
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		slog.Error("discord session init failed", slog.Any("err", err))
		os.Exit(1)
	}
	templates := discord.DefaultTemplates()
	for _, login := range cfg.TrackedStreamers {
		if _, ok := templates.Lookup(login); !ok {
			slog.Warn("tracked broadcaster has no announcement template; fallback message will be sent", slog.String("broadcaster", login))
		}
	}
	notifier, err := discord.NewNotifier(dg, cfg.DiscordChannelID, templates)
	if err != nil {
		slog.Error("discord notifier init failed", slog.Any("err", err))
		os.Exit(1)
	}

	monitor := live.NewMonitor(fetcher, notifier, cfg.TrackedStreamers, live.WithInterval(cfg.PollInterval))

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if os.Getenv("ENABLE_PPROF") == "1" {
		startPprof()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := monitor.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if cfg.HTTPAddr != "" {
		g.Go(func() error {
			return server.Start(gctx, cfg.HTTPAddr, server.NewMux(monitor))
		})
	} else {
		slog.Info("http server disabled (HTTP_ADDR=off)")
	}

	if err := g.Wait(); err != nil {
		slog.Error("exited with error", slog.Any("err", err))
		stop()
		shutdown()
		os.Exit(1)
	}
	slog.Info("shutting down")
}

// startPprof serves /debug/pprof on PPROF_ADDR (default localhost:6060).
func startPprof() {
	pprofAddr := os.Getenv("PPROF_ADDR")
	if pprofAddr == "" {
		pprofAddr = "localhost:6060"
	}
	go func() {
		slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
		// Use an http.Server with timeouts to satisfy G114 and avoid DoS risks
		srv := &http.Server{
			Addr:              pprofAddr,
			Handler:           nil, // default mux exposes /debug/pprof
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil {
			slog.Error("pprof server error", slog.Any("err", err))
		}
	}()
}
