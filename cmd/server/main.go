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

	"github.com/jonboulle/clockwork"

	"github.com/Shvan11/ShwNodApp-sub005/internal/batch"
	"github.com/Shvan11/ShwNodApp-sub005/internal/bridge"
	"github.com/Shvan11/ShwNodApp-sub005/internal/config"
	"github.com/Shvan11/ShwNodApp-sub005/internal/database"
	"github.com/Shvan11/ShwNodApp-sub005/internal/domain"
	"github.com/Shvan11/ShwNodApp-sub005/internal/hub"
	"github.com/Shvan11/ShwNodApp-sub005/internal/liveness"
	"github.com/Shvan11/ShwNodApp-sub005/internal/logging"
	"github.com/Shvan11/ShwNodApp-sub005/internal/redis"
	"github.com/Shvan11/ShwNodApp-sub005/internal/router"
	"github.com/Shvan11/ShwNodApp-sub005/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func runGracefulShutdown(srv *server.Server, stop func()) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stop()
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = database.RunMigrations(migrateCtx, pool)
	cancelMigrate()
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.NewClient(context.Background(), cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	// Collaborators
	appointments := database.NewAppointmentRepo(pool)
	patients := database.NewPatientRepo(pool)
	messaging := redis.NewMessagingStore(redisClient)
	viewers := redis.NewQRViewerStore(redisClient)

	// The hub releases QR registrations on whichever exit path runs first.
	onViewerReleased := func(viewerID string) {
		go func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := viewers.ReleaseViewer(releaseCtx, viewerID); err != nil {
				slog.Error("Failed to release QR viewer", "viewer_id", viewerID, "error", err)
			}
		}()
	}
	h := hub.New(clock, onViewerReleased)

	aggregator := batch.New(clock, batch.DefaultWindow, func(key string, updates []domain.StatusUpdate) {
		h.BroadcastRole(domain.RoleWAStatus, domain.Envelope{
			Type: domain.MsgBatchStatus,
			Data: map[string]any{"date": key, "updates": updates},
		}, bridge.DateFilter(key))
	})

	eventBridge := bridge.New(h, aggregator, patients)

	monitor := liveness.NewMonitor(h, viewers, clock, liveness.Config{})
	go monitor.Start(context.Background())

	rt := router.New(appointments, patients, messaging, clock)
	srv := server.NewServer(cfg, h, rt, eventBridge, appointments, viewers, clock, pool, redisClient)

	done := runGracefulShutdown(srv, func() {
		monitor.Stop()
		eventBridge.Stop()
		aggregator.Stop()
		h.Stop()
	})

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
