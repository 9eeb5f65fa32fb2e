// devserver is a local notification server for exercising notifywatch.
// Usage: go run ./cmd/devserver --addr :4000 --drop-every 5
//
// Any token is accepted except --reject-token, which is answered with
// auth_error and close code 4001.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/config"
)

func main() {
	addr := flag.String("addr", ":4000", "listen address")
	path := flag.String("path", config.DefaultPath, "websocket path")
	interval := flag.Duration("interval", 2*time.Second, "time between pushed events")
	rejectToken := flag.String("reject-token", "bad-token", "token answered with auth_error")
	dropEvery := flag.Int("drop-every", 0, "drop the socket after N events (0 = never)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	srv := newServer(serverConfig{
		Interval:    *interval,
		RejectToken: *rejectToken,
		DropEvery:   *dropEvery,
	}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc(*path, srv.handleWS)

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("devserver listening", "addr", *addr, "path", *path)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("devserver failed", "error", err)
		os.Exit(1)
	}
	logger.Info("devserver stopped")
}
