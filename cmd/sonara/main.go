// Command sonara is the speech output service for the Spanish practice
// app: it speaks assistant replies through a remote premium voice, falls
// back to the local speech daemon when the remote backend fails, and
// serves diagnostics over HTTP.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/nvaldezz/sonara/internal/audit"
	"github.com/nvaldezz/sonara/internal/config"
	"github.com/nvaldezz/sonara/internal/health"
	"github.com/nvaldezz/sonara/internal/observe"
	"github.com/nvaldezz/sonara/internal/playback"
	"github.com/nvaldezz/sonara/pkg/audio"
	"github.com/nvaldezz/sonara/pkg/provider/tts"
	"github.com/nvaldezz/sonara/pkg/provider/tts/cloudtts"
	"github.com/nvaldezz/sonara/pkg/provider/tts/speechd"
	"github.com/nvaldezz/sonara/pkg/voice"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "sonara.yaml", "path to the YAML configuration file")
	speakText := flag.String("speak", "", "speak the given text once and exit")
	auditRun := flag.Bool("audit", false, "run a voice inventory audit, print JSON, and exit")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "sonara: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "sonara: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Backends ──────────────────────────────────────────────────────────────
	remote, err := cloudtts.New(cfg.Remote.BaseURL, cfg.Remote.APIKey,
		cloudtts.WithTimeout(cfg.Remote.Timeout.Std()))
	if err != nil {
		slog.Error("failed to create remote synthesis client", "err", err)
		return 1
	}

	local, err := speechd.Connect(ctx, cfg.Local.DaemonURL,
		speechd.WithLocale(cfg.Speech.Locale))
	if err != nil {
		// The remote path still works without the daemon; fallback and
		// audit will degrade.
		slog.Warn("local speech daemon unavailable", "url", cfg.Local.DaemonURL, "err", err)
	}
	defer closeLocal(local)

	if *auditRun {
		return runAudit(ctx, cfg, local)
	}

	device, err := audio.NewExecDevice(cfg.Speech.Player,
		"-autoexit", "-nodisp", "-loglevel", "quiet", "-i", "-")
	if err != nil {
		slog.Error("failed to create audio device", "player", cfg.Speech.Player, "err", err)
		return 1
	}

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	coord := playback.NewCoordinator(remote, localOrUnavailable(local), device,
		playback.Config{
			VoiceID:         cfg.Remote.VoiceID,
			Speed:           cfg.Speech.Speed,
			Pitch:           cfg.Speech.Pitch,
			Locale:          cfg.Speech.Locale,
			FallbackEnabled: cfg.Fallback.Enabled,
			VoiceWait:       cfg.Local.VoiceWait.Std(),
		},
		playback.WithMetrics(metrics),
	)

	if *speakText != "" {
		out := coord.Speak(ctx, *speakText, "")
		if !out.Succeeded {
			fmt.Fprintf(os.Stderr, "sonara: %s\n", out.ErrorMessage)
			return 1
		}
		slog.Info("spoken", "backend", out.Backend, "voice", out.VoiceUsed)
		return 0
	}

	return serve(ctx, cfg, *configPath, coord, local)
}

// serve runs the interactive loop: stdin lines are spoken, and the
// diagnostics HTTP server answers health, metrics, and audit queries.
func serve(ctx context.Context, cfg *config.Config, configPath string, coord *playback.Coordinator, local *speechd.Client) int {
	// Hot-reload speech settings on config edits. Transport changes need
	// a restart and are ignored by Diff.
	watcher, err := config.NewWatcher(configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			slog.SetDefault(newLogger(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.SpeechChanged {
			coord.InvalidateVoiceCache()
			slog.Info("speech settings changed; voice cache invalidated")
		}
		if d.FallbackChanged {
			coord.SetFallbackEnabled(d.NewFallback)
			slog.Info("fallback toggled", "enabled", d.NewFallback)
		}
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	g, ctx := errgroup.WithContext(ctx)

	// ── Diagnostics server ────────────────────────────────────────────────────
	if cfg.Server.ListenAddr != "" {
		mux := http.NewServeMux()

		checkers := []health.Checker{}
		if local != nil {
			checkers = append(checkers, health.LocalDaemon(local))
		}
		health.New(checkers...).Register(mux)

		mux.Handle("GET /metrics", promhttp.Handler())

		engine := audit.NewEngine(localOrUnavailable(local), audit.WithWait(cfg.Audit.VoiceWait.Std()))
		mux.HandleFunc("GET /audit", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			if err := json.NewEncoder(w).Encode(engine.Run(r.Context())); err != nil {
				http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
			}
		})

		srv := &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			slog.Info("diagnostics server listening", "addr", cfg.Server.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// ── Interactive speak loop ────────────────────────────────────────────────
	g.Go(func() error {
		slog.Info("ready — type a line to speak it, Ctrl+C to quit")
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			line := scanner.Text()
			if line == "" {
				continue
			}
			out := coord.Speak(ctx, line, "")
			if !out.Succeeded && !out.Stopped {
				fmt.Fprintf(os.Stderr, "sonara: %s\n", out.ErrorMessage)
			}
		}
		return scanner.Err()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	coord.Stop()
	slog.Info("goodbye")
	return 0
}

// runAudit prints one audit summary as indented JSON.
func runAudit(ctx context.Context, cfg *config.Config, local *speechd.Client) int {
	engine := audit.NewEngine(localOrUnavailable(local), audit.WithWait(cfg.Audit.VoiceWait.Std()))
	sum := engine.Run(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		slog.Error("failed to encode audit summary", "err", err)
		return 1
	}
	return 0
}

// unavailableLocal stands in for the daemon when the initial connection
// failed: every call reports the daemon as unreachable so fallback and
// audit degrade instead of panicking on a nil client.
type unavailableLocal struct{}

var errDaemonUnavailable = &tts.LocalError{Msg: "speech daemon is not connected"}

func (unavailableLocal) Voices(context.Context) ([]voice.Voice, error) {
	return nil, errDaemonUnavailable
}

func (unavailableLocal) WaitVoices(context.Context, time.Duration) ([]voice.Voice, error) {
	return nil, errDaemonUnavailable
}

func (unavailableLocal) Speak(context.Context, tts.Utterance) (tts.Job, error) {
	return nil, errDaemonUnavailable
}

func (unavailableLocal) Close() error { return nil }

func localOrUnavailable(c *speechd.Client) tts.Local {
	if c == nil {
		return unavailableLocal{}
	}
	return c
}

func closeLocal(local *speechd.Client) {
	if local == nil {
		return
	}
	if err := local.Close(); err != nil {
		slog.Warn("speech daemon close error", "err", err)
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
