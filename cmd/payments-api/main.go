package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"centavo-service/internal/config"
	"centavo-service/internal/gateway"
	"centavo-service/internal/notify"
	"centavo-service/internal/server"
	"centavo-service/internal/services"
	"centavo-service/internal/store"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "go.uber.org/automaxprocs"
)

const sweepInterval = 30 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	logHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
	})
	slog.SetDefault(slog.New(logHandler))

	// Optional local overrides; in containers everything comes from the
	// environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	st, err := store.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}()

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		MinIdleConns: 20,
		MaxRetries:   1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		IdleTimeout:  2 * time.Minute,
	})

	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		slog.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			slog.Error("Failed to close redis client", "error", err)
		}
	}()

	notifier := notify.NewRedisNotifier(redisClient)

	var gw gateway.PaymentGatewayInterface
	if cfg.GatewayURL != "" {
		gw = gateway.NewClient(cfg.GatewayURL, cfg.GatewayAPIKey)
	} else {
		slog.Warn("PAYMENT_GATEWAY_URL not set, mobile redirect links disabled")
	}

	sessions := services.NewSessionService(st, gw, cfg.StaticQRPayload)
	claims := services.NewClaimEngine(st, notifier)
	verifier := server.NewHMACTokenVerifier(cfg.TokenSecret)

	srv, err := server.NewServer(cfg.Port, sessions, claims, notifier, verifier, cfg.WebhookSecret)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	go claims.StartSweeper(ctx, sweepInterval)

	slog.Info("READY", "port", cfg.Port)
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
}
