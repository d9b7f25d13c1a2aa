package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"telnest/internal/admin"
	"telnest/internal/config"
	"telnest/internal/microservices/tcp"
	"telnest/internal/presence"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Setup structured logging
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	store := newPresenceStore(cfg, logger)
	defer store.Close()

	server := tcp.NewServer(tcp.Options{
		ReadBufferSize:   cfg.ReadBufferSize,
		InboundRateLimit: rate.Limit(cfg.InboundRateLimit),
		InboundBurst:     cfg.InboundBurst,
		Logger:           logger,
	})

	logger.Info("starting_telnet_server",
		"telnet_addr", cfg.TelnetAddr(),
		"tick_interval", cfg.TickInterval().String(),
	)
	server.Listen(cfg.TelnetAddr())

	var adminServer *http.Server
	if cfg.AdminEnabled {
		gin.SetMode(ginMode(cfg))
		adminServer = &http.Server{
			Addr:    cfg.AdminAddr(),
			Handler: admin.NewRouter(admin.NewHandler(server, store)),
		}
		go func() {
			logger.Info("starting_admin_server", "admin_addr", cfg.AdminAddr())
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("admin_server_error", "error", err.Error())
			}
		}()
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	host := newChatHost(server, store, logger)
	ticker := time.NewTicker(cfg.TickInterval())
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case now := <-ticker.C:
			host.tick(ctx, now)
		case <-sigChan:
			logger.Info("received_shutdown_signal")
			if adminServer != nil {
				shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				adminServer.Shutdown(shutdownCtx)
				cancel()
			}
			server.Stop()
			logger.Info("server_stopped_gracefully")
			return
		}
	}
}

// ginMode keeps gin's route dump and debug warnings to development.
func ginMode(cfg *config.Config) string {
	if cfg.IsDevelopment() {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
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
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// newPresenceStore uses Redis when configured and falls back to memory
// when it is not or cannot be reached.
func newPresenceStore(cfg *config.Config, logger *slog.Logger) presence.Store {
	if cfg.RedisURL == "" {
		return presence.NewMemoryStore()
	}
	store, err := presence.NewRedisStore(cfg.RedisURL, cfg.RedisPassword, cfg.PresenceTTL)
	if err != nil {
		logger.Warn("presence_redis_unavailable", "error", err.Error())
		return presence.NewMemoryStore()
	}
	logger.Info("presence_redis_connected")
	return store
}
