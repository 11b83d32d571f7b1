// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/wordchain/internal/auth"
	"github.com/jason-s-yu/wordchain/internal/cache"
	"github.com/jason-s-yu/wordchain/internal/config"
	"github.com/jason-s-yu/wordchain/internal/database"
	"github.com/jason-s-yu/wordchain/internal/dictionary"
	"github.com/jason-s-yu/wordchain/internal/game"
	"github.com/jason-s-yu/wordchain/internal/handlers"
	"github.com/jason-s-yu/wordchain/internal/hub"
	"github.com/jason-s-yu/wordchain/internal/router"
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

	signer, err := newSigner(cfg.Auth)
	if err != nil {
		logger.Fatalf("auth: %v", err)
	}

	dict := dictionary.LoadOrFallback(cfg.DictionaryPath, logger)

	// Postgres backs guests and stats. Without it the game still runs.
	var users *database.Users
	if err := database.ConnectDB(ctx, cfg.Postgres, logger); err != nil {
		logger.WithError(err).Warn("Database unavailable, stats disabled")
	} else {
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			logger.Fatalf("migrate: %v", err)
		}
		users = &database.Users{}
	}

	h := hub.New(logger)
	var notifier game.Notifier = h
	if rdb, err := cache.Connect(ctx, cfg.Redis); err != nil {
		logger.WithError(err).Warn("Redis unavailable, room history disabled")
	} else {
		defer rdb.Close()
		notifier = cache.NewRecordingNotifier(h, cache.NewRecorder(rdb, cfg.Redis.Queue), logger)
	}

	registry := game.NewRegistry(dict, notifier, game.RegistryOptions{
		Room: game.RoomOptions{
			MaxPlayers:    cfg.Game.MaxPlayers,
			RoundDuration: cfg.Game.RoundDuration,
			GameDuration:  cfg.Game.GameDuration,
			RoomTTL:       cfg.Game.RoomTTL,
		},
		FinishedRetention: cfg.Game.FinishedRetention,
	}, logger)

	srv := &handlers.Server{
		Registry: registry,
		Hub:      h,
		Signer:   signer,
		Logger:   logger,
	}
	var stats router.StatsStore
	if users != nil {
		srv.Users = users
		stats = users
	}
	srv.Router = router.New(registry, notifier, h, stats, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Infof("Running on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP shutdown incomplete")
	}
	for _, room := range registry.List() {
		room.Delete("Server shutting down")
	}
	srv.Router.Wait()
}

func newSigner(cfg config.AuthConfig) (*auth.Signer, error) {
	expiry, err := auth.ParseExpiry(cfg.TokenExpireTime)
	if err != nil {
		return nil, err
	}
	if cfg.PrivateKeyPath != "" && cfg.PublicKeyPath != "" {
		return auth.NewSignerFromPath(cfg.PrivateKeyPath, cfg.PublicKeyPath, expiry)
	}
	return auth.NewSigner(expiry)
}
