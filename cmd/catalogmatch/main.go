// Package main implements the entry point for the catalogmatch service,
// a multimodal product-retrieval system that matches catalog products by
// text or image similarity.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/catalogmatch/config"
	"github.com/c360/catalogmatch/service"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "catalogmatch"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}
	if cliCfg.IngestDir != "" {
		cfg.Ingest.DatasetDir = cliCfg.IngestDir
	}

	slog.Info("Starting catalogmatch",
		"version", Version,
		"config_path", cliCfg.ConfigPath,
		"index_url", cfg.Index.URL,
		"nats_url", cfg.Store.NATSURL)

	svc, err := service.New(cfg, service.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		return err
	}

	if cfg.Ingest.DatasetDir != "" {
		report, err := svc.PopulateIfEmpty(ctx, cfg.Ingest.DatasetDir)
		if err != nil {
			_ = svc.Stop(ctx)
			return fmt.Errorf("startup ingest: %w", err)
		}
		if report != nil {
			slog.Info("startup ingest complete",
				"total", report.Total,
				"accepted", report.Accepted,
				"rejected", report.Rejected,
				"failed", report.Failed,
				"duration", report.Duration)
		}
	}

	healthServer := startHealthServer(cliCfg.HealthPort, svc)

	return waitForShutdown(ctx, svc, healthServer, cliCfg.ShutdownTimeout)
}

// startHealthServer exposes the aggregate dependency health on /healthz.
// Returns nil when the port is disabled.
func startHealthServer(port int, svc *service.Service) *http.Server {
	if port == 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		report := svc.Health(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !report.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(report); err != nil {
			slog.Warn("health response encoding failed", "error", err)
		}
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		listener, err := net.Listen("tcp", server.Addr)
		if err != nil {
			slog.Error("health server listen failed", "error", err, "port", port)
			return
		}
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("health server failed", "error", err)
		}
	}()

	slog.Info("health endpoint listening", "port", port, "path", "/healthz")
	return server
}

// waitForShutdown blocks until SIGINT or SIGTERM, then stops everything
// within the shutdown timeout.
func waitForShutdown(ctx context.Context, svc *service.Service, healthServer *http.Server, timeout time.Duration) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if healthServer != nil {
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("health server shutdown failed", "error", err)
		}
	}

	return svc.Stop(shutdownCtx)
}
