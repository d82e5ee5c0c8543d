/*
Package main is the entry point for the Grow Chat application.

It is responsible for loading configuration, initializing the global logging system,
connecting the message store, assembling the history backend, setting up the HTTP server,
starting the chat router, and gracefully handling operating system interrupt signals
(SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
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

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"growchat/internal/app/chat"
	"growchat/internal/app/db"
	"growchat/internal/app/history"
	"growchat/internal/configs"
	"growchat/internal/handler"
	"growchat/internal/pkg/limiter"
	"growchat/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Strs("default_rooms", cfg.DefaultRooms).
		Bool("history_command", len(cfg.HistoryCommand) > 0).
		Bool("history_cache", cfg.RedisAddr != "").
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect the message store and apply migrations
	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to initialize database")
	}
	defer pool.Close()

	store := db.NewMessageStore(pool)

	// Assemble the history backend
	var gateway history.Gateway = store
	if len(cfg.HistoryCommand) > 0 {
		processGateway, err := history.NewProcessGateway(cfg.HistoryCommand)
		if err != nil {
			logx.Fatal(err, "Invalid HISTORY_COMMAND")
		}
		gateway = processGateway
	}

	var messageLog history.Logger = store

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logx.Warn("Redis is unreachable at startup; history cache will fall through until it recovers.",
				"redis_addr", cfg.RedisAddr, "error", err.Error())
		}

		cache := history.NewCache(redisClient, gateway, cfg.HistoryCacheTTL)
		gateway = cache
		messageLog = history.NewInvalidatingLogger(store, cache)
	}

	// Initialize chat router
	router := chat.NewRouter(messageLog, gateway, cfg.DefaultRooms)

	// Per-IP limiter for WebSocket upgrades
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(handler.ConnectRate), handler.ConnectBurst)

	// Setup HTTP server and routes
	deps := &handler.AppDeps{
		Router:         router,
		Config:         cfg,
		ConnectLimiter: connectLimiter,
	}

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler.Router(deps),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Grow Chat Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	router.Shutdown()
	connectLimiter.Stop()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logx.Error(err, "Failed to close Redis client")
		}
	}

	logx.Info("Server gracefully stopped.")
}
