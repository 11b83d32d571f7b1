// cmd/historian/main.go drains the room event queue into postgres.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/wordchain/internal/cache"
	"github.com/jason-s-yu/wordchain/internal/config"
	"github.com/jason-s-yu/wordchain/internal/database"
	"github.com/jason-s-yu/wordchain/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.ConnectDB(ctx, cfg.Postgres, logger); err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer database.Close()
	if err := database.Migrate(ctx); err != nil {
		logger.Fatalf("migrate: %v", err)
	}

	rdb, err := cache.Connect(ctx, cfg.Redis)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	hs := historian.New(rdb, cfg.Redis.Queue, cfg.Historian.BatchSize, cfg.Historian.FlushDelay(), database.SaveRoomEvents, logger)
	hs.Run(ctx)
	logger.Info("Historian shutdown complete.")
}
