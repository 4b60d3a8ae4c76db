package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/parleyhq/parley/controller"
	"github.com/parleyhq/parley/observability"
	"github.com/parleyhq/parley/remote/httpapi"
	"github.com/parleyhq/parley/server"
)

const tokenEnvVar = "PARLEY_API_TOKEN"

func main() {
	var (
		configFile = flag.String("config", "", "Path to config JSON file (required)")
		addr       = flag.String("addr", "", "Listen address (overrides config)")
		agentRef   = flag.String("agent", "", "Remote agent identifier (overrides config)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: parleyd -config <file>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := server.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *addr != "" {
		cfg.Addr = *addr
	}
	if *agentRef != "" {
		cfg.Controller.AgentRef = *agentRef
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Rebind the registry's "slog" observer to the configured logger so the
	// controller's observer names resolve against it.
	observability.RegisterObserver("slog", observability.NewSlogObserver(logger))

	token := os.Getenv(tokenEnvVar)
	if token == "" {
		log.Fatalf("%s must be set", tokenEnvVar)
	}

	client, err := httpapi.New(&cfg.Remote, httpapi.StaticTokenCredential(token))
	if err != nil {
		log.Fatalf("Failed to create agent client: %v", err)
	}

	ctrl, err := controller.New(client, &cfg.Controller)
	if err != nil {
		log.Fatalf("Failed to create controller: %v", err)
	}

	srv, err := server.New(*cfg, ctrl, logger)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	logger.Info("listening", "addr", cfg.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}
