package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/SteamVC/pairing-relay/internal/config"
	"github.com/SteamVC/pairing-relay/internal/handlers"
	httpx "github.com/SteamVC/pairing-relay/internal/http"
	"github.com/SteamVC/pairing-relay/internal/repo"
	"github.com/SteamVC/pairing-relay/internal/service"
)

const (
	serverName = "pairing-relay"
	version    = "1.0.0"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg config.Config, logger *slog.Logger) error {
	instanceID := uuid.NewString()

	// 集計値の書き出し先（REDIS_ADDR 未設定なら無効）
	var sink repo.StatsRepo
	if cfg.RedisEnabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			PoolSize:     4,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return errors.Join(errors.New("failed to connect to redis"), err)
		}
		logger.Info("connected to redis", "addr", cfg.RedisAddr)
		sink = repo.NewRedisStatsRepo(rdb, cfg.StatsTTL)
	}

	reg := service.NewRoomRegistry(cfg.RoomTTL)
	wsHandler := handlers.NewWebSocketHandler(reg, logger, handlers.WebSocketOptions{
		AllowedOrigins:    cfg.AllowedOrigins,
		MaxMessagesPerSec: cfg.MaxMessagesPerSec,
		PongWait:          cfg.MaintenanceInterval * 5 / 2,
	})
	roomHandler := handlers.NewRoomHandler(reg, wsHandler, logger)
	sysHandler := handlers.NewSystemHandler(handlers.ServerInfo{
		Name:        serverName,
		Version:     version,
		InstanceID:  instanceID,
		Environment: cfg.Environment,
		StartedAt:   time.Now(),
	}, reg, wsHandler)
	maint := handlers.NewMaintenance(wsHandler, reg, logger, cfg.MaintenanceInterval, cfg.StatsLogEvery, sink, instanceID)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpx.NewRouter(roomHandler, sysHandler, wsHandler, cfg.AllowedOrigins, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown用のシグナル
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Addr(), "environment", cfg.Environment, "instanceId", instanceID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return maint.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, shutting down gracefully...")

		// WebSocketはShutdownの対象外なので先に閉じる
		wsHandler.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
