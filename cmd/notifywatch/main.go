// notifywatch keeps a DevHuddle notification session open and mirrors its
// events into the local query cache.
// Usage: go run ./cmd/notifywatch --config configs/notifywatch.local.yaml
//
// Send SIGHUP to re-read auth.token_path and retry a session that gave
// up. SIGINT or SIGTERM logs out and
// exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/auth"
	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/cache"
	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/config"
	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/realtime"
	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/notifywatch.local.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "log every dispatched event")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "config", *configPath)
		os.Exit(1)
	}

	// Set up structured logging
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting notifywatch",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	if err := run(cfg, *verbose, logger); err != nil {
		logger.Error("notifywatch failed", "error", err)
		os.Exit(1)
	}
	logger.Info("notifywatch stopped")
}

func run(cfg *config.Config, verbose bool, logger *slog.Logger) error {
	creds, err := auth.LoadCredentials(cfg.Auth.Token, cfg.Auth.TokenPath, cfg.Auth.SubjectID)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	mgrCfg, err := cfg.Realtime.ManagerConfig()
	if err != nil {
		return err
	}
	logger.Info("configuration loaded",
		"endpoint", mgrCfg.URL,
		"subject_id", creds.SubjectID,
		"max_reconnect_attempts", mgrCfg.MaxReconnectAttempts,
	)

	dialer := realtime.NewWebSocketDialer(cfg.Realtime.TransportConfig(version.UserAgent()), logger)
	mgr := realtime.NewManager(mgrCfg, dialer, logger)
	store := cache.NewStore(0)
	sessions := newSessionBinder(mgr, store, cfg.Realtime.EventBufferSize, verbose, logger)

	mgr.Subscribe(func(s realtime.State) {
		logger.Info("session state", "state", s.String())
	})

	source := auth.NewSource(nil)
	source.Watch(sessions.apply)
	source.Set(creds)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	// Signals: SIGHUP reloads the token, SIGINT/SIGTERM shut down.
	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(sigCh)

		for {
			select {
			case <-ctx.Done():
				return nil
			case sig := <-sigCh:
				if sig != syscall.SIGHUP {
					logger.Info("received shutdown signal", "signal", sig)
					cancel()
					return nil
				}
				if cfg.Auth.TokenPath != "" {
					token, err := auth.ReadToken(cfg.Auth.TokenPath)
					if err != nil {
						logger.Warn("token reload failed", "error", err)
					} else {
						source.Set(&auth.Credentials{Token: token, SubjectID: cfg.Auth.SubjectID})
					}
				}
				// Retry now if the session gave up or was rejected.
				logger.Info("SIGHUP: reconnecting")
				mgr.Reconnect()
			}
		}
	})

	if cfg.Auth.WatchTokenFile {
		w := auth.NewFileWatcher(cfg.Auth.TokenPath, cfg.Auth.SubjectID, source, logger)
		g.Go(func() error { return w.Run(ctx) })
	}

	// Stats printer
	g.Go(func() error {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				st := mgr.Stats()
				attrs := []any{
					"state", st.State.String(),
					"attempt", st.Attempt,
					"events_received", st.EventsReceived,
					"frames_dropped", st.FramesDropped,
					"connect_attempts", st.ConnectAttempts,
				}
				if q, ok := sessions.queueStats(); ok {
					attrs = append(attrs, "queue_len", q.Len, "queue_capacity", q.Capacity)
				}
				logger.Info("stats", attrs...)
			}
		}
	})

	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Health.Port),
		Handler:           newHealthHandler(mgr, sessions, store),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	logger.Info("notifywatch running",
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Health.Port),
	)

	err = g.Wait()

	logger.Info("shutting down...")
	source.Clear()
	sessions.close()
	return err
}

// newLogger builds the slog handler selected by the log section.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
