package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/VinMeld/complaint-portal/internal/config"
	"github.com/VinMeld/complaint-portal/internal/logging"
	"github.com/VinMeld/complaint-portal/internal/server"
)

func main() {
	var configPath, port string
	flag.StringVar(&configPath, "config", "", "Path to the TOML settings file (overrides env CONFIG_FILE)")
	flag.StringVar(&port, "port", "", "Server port (overrides the configured ListenAddr)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if port != "" {
		cfg.ListenAddr = ":" + strings.TrimPrefix(port, ":")
	}

	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Dir:    cfg.LogDir,
	})
	if err != nil {
		log.Fatalf("Failed to init logging: %v", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}
	logger.Info("Configuration loaded", "identity", cfg.Identity)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to init server", "error", err)
		os.Exit(1)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", "error", err)
		}
	}()

	if err := srv.Start(); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	<-done
	logger.Info("Server stopped")
}
