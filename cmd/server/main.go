package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"trader-game/internal/auth"
	"trader-game/internal/config"
	"trader-game/internal/database"
	"trader-game/internal/game"
	"trader-game/internal/limits"
	"trader-game/internal/logger"
	"trader-game/internal/metrics"
	"trader-game/internal/notification"
	"trader-game/internal/server"
)

func main() {
	cfg := config.Load()

	log, err := logger.New("trader-game", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewDatabase(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	// Operator overrides stored in game_settings win over env defaults.
	gameCfg, err := db.LoadGameConfig(cfg.Game)
	if err != nil {
		log.Warn("game settings not loaded, using defaults", zap.Error(err))
	} else {
		cfg.Game = gameCfg
	}

	var limitSvc game.LimitChecker
	if rdb, err := limits.ConnectRedis(cfg.RedisAddr); err != nil {
		// Daily limits fail open without redis; everything else still runs.
		log.Warn("redis unavailable, daily limits disabled", zap.Error(err))
	} else {
		limitSvc = limits.New(limits.NewRedisCounter(rdb), cfg.Game.DailyLimit, log.Named("limits"))
	}

	house, err := db.GetHouseBalance(cfg.Game.GameType)
	if err != nil {
		log.Fatal("house balance load failed", zap.Error(err))
	}

	alerts := notification.NewManager(db, log.Named("alerts"))

	authSvc := auth.New(cfg.JWTSecret)
	srv := server.NewGameServer(cfg, db, authSvc, limitSvc, alerts, house, log)

	metrics.StartServer(cfg.MetricsPort, func(context.Context) error { return db.Ping() })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx, ":"+cfg.HTTPPort); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
