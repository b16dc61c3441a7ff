package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/25x8/recyclemart/internal/recyclemart/config"
	"github.com/25x8/recyclemart/internal/recyclemart/logger"
	"github.com/25x8/recyclemart/internal/recyclemart/server"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	zl, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if cfg.JWTSecret == config.DevJWTSecret {
		zl.Warn("JWT_SECRET not set, using the development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create and run server
	srv := server.NewServer(cfg, zl)
	go func() {
		if err := srv.Run(ctx); err != nil {
			zl.Error("server error", zap.Error(err))
			stop()
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	// Graceful shutdown
	zl.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown error", zap.Error(err))
		os.Exit(1)
	}

	zl.Info("server stopped")
}
