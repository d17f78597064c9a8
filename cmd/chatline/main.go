package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/chatline/internal/anthropic"
	"github.com/MikeSquared-Agency/chatline/internal/api"
	"github.com/MikeSquared-Agency/chatline/internal/config"
	"github.com/MikeSquared-Agency/chatline/internal/conversation"
	"github.com/MikeSquared-Agency/chatline/internal/ephemeral"
	"github.com/MikeSquared-Agency/chatline/internal/hermes"
	"github.com/MikeSquared-Agency/chatline/internal/render"
	"github.com/MikeSquared-Agency/chatline/internal/store"
	"github.com/MikeSquared-Agency/chatline/internal/timeline"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("chatline starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Timeline storage: Postgres when configured, memory otherwise
	var kv timeline.Store
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare schema", "error", err)
			os.Exit(1)
		}
		kv = db
		slog.Info("database connected")
	} else {
		kv = store.NewMemory()
		slog.Warn("DATABASE_URL not set, conversations are kept in memory")
	}

	// Anthropic client
	if cfg.AnthropicAPIKey == "" {
		slog.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}
	llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.Model)
	slog.Info("anthropic client ready", "model", cfg.Model)

	// NATS/Hermes (optional, events are dropped without it)
	var publisher conversation.Publisher
	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Warn("NATS unavailable, running without events", "error", err)
	} else {
		defer hermesClient.Close()
		publisher = hermesClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	session := ephemeral.NewSession(ephemeral.SessionOpts{
		Budget:   cfg.TempSessionSeconds,
		Notifier: conversation.SessionNotifier(publisher, slog.Default()),
		Logger:   slog.Default(),
	})

	svc := conversation.New(conversation.Opts{
		Registry:     timeline.NewRegistry(kv, slog.Default()),
		Session:      session,
		Completer:    llm,
		Renderer:     render.New(slog.Default()),
		Publisher:    publisher,
		Logger:       slog.Default(),
		SystemPrompt: cfg.SystemPrompt,
		MaxTokens:    cfg.MaxTokens,
	})
	defer svc.Close()

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, svc)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	slog.Info("chatline ready", "port", cfg.Port, "temporary_session_seconds", cfg.TempSessionSeconds)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	cancel()
	slog.Info("chatline stopped")
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
