package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/neuropayx/parley/internal/api"
	"github.com/neuropayx/parley/internal/config"
	"github.com/neuropayx/parley/internal/feed"
	"github.com/neuropayx/parley/internal/mailer"
	"github.com/neuropayx/parley/internal/session"
	"github.com/neuropayx/parley/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("parley starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// Visitor registry
	visitors, err := session.NewVisitorRegistry(cfg.RedisURL)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer visitors.Close()
	slog.Info("redis connected", "url", cfg.RedisURL)

	// Change feed
	feedClient, err := feed.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer feedClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Mailer (optional — parley works without email, just no notifications)
	mail := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.EmailFrom,
		FromName: cfg.EmailFromName,
	}, slog.Default())
	if mail.IsConfigured() {
		slog.Info("mailer ready", "host", cfg.SMTPHost)
	} else {
		slog.Warn("email not configured — notification endpoints disabled")
	}

	// Resolver
	resolver := session.NewResolver(db, feedClient, slog.Default())

	// HTTP API
	srv := api.NewServer(cfg.Port, db, resolver, visitors, api.NATSFeed{Client: feedClient}, mail, cfg.HistoryLimit, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("parley ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("parley stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
