// server exposes the agent over HTTP and resumes unfinished runs on start.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"tmdb-agent/internal/adapter/httpapi"
	"tmdb-agent/internal/di"
	"tmdb-agent/internal/infrastructure/env"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var addr string
	var publicURL string
	var checkpointDB string
	var jsonLogs bool

	flagSet := pflag.NewFlagSet("server", pflag.ContinueOnError)
	flagSet.StringVar(&addr, "addr", "", "listen address (overrides SERVER_ADDR)")
	flagSet.StringVar(&publicURL, "public-url", "", "URL advertised in the agent card")
	flagSet.StringVar(&checkpointDB, "checkpoint-db", "", "SQLite checkpoint database (overrides CHECKPOINT_DB)")
	flagSet.BoolVar(&jsonLogs, "json-access-log", false, "write access logs as JSON")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := di.LoadConfig(env.NewEnvService(), "server")
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.ServerAddr = addr
	}
	if checkpointDB != "" {
		cfg.CheckpointDB = checkpointDB
	}
	if publicURL == "" {
		publicURL = "http://localhost" + cfg.ServerAddr + "/"
	}

	container, err := di.NewContainer(cfg, nil)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resumed, err := container.Scheduler.Resume(ctx)
	if err != nil {
		container.Logger.Error("Resume failed", "error", err)
	} else if len(resumed) > 0 {
		container.Logger.Info("Resumed unfinished runs", "count", len(resumed))
	}

	router := httpapi.NewRouter(
		container.Scheduler,
		httpapi.DefaultAgentCard(publicURL),
		httpapi.NewAccessLogger("tmdb-agent", jsonLogs),
	)
	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		container.Logger.Info("Server started", "addr", cfg.ServerAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			container.Logger.Error("Server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stopping runs first releases /message handlers blocked on a result.
	container.Logger.Info("Shutting down")
	if err := container.Scheduler.Shutdown(shutdownCtx); err != nil {
		container.Logger.Warn("Runs still stopping", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		container.Logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	return container.Close(shutdownCtx)
}
