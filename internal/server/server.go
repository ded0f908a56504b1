package server

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trader-game/internal/auth"
	"trader-game/internal/config"
	"trader-game/internal/database"
	"trader-game/internal/game"
	"trader-game/internal/models"
)

// GameServer is the broadcast/command gateway: it relays player commands
// into the engine and fans engine events out to every connected client.
type GameServer struct {
	router  *gin.Engine
	engine  *game.Engine
	db      *database.Database
	auth    *auth.Service
	log     *zap.Logger
	cfg     *config.Config
	clients sync.Map
}

// NewGameServer wires the engine to the gateway. The server itself is the
// engine's Broadcaster, and the engine reads the connected-client count from
// the hub.
func NewGameServer(cfg *config.Config, db *database.Database, authSvc *auth.Service,
	limits game.LimitChecker, alerts game.AlertSink, house models.HouseBalance,
	log *zap.Logger) *GameServer {

	s := &GameServer{
		router: gin.Default(),
		db:     db,
		auth:   authSvc,
		log:    log,
		cfg:    cfg,
	}

	opts := []game.Option{game.WithOnlineCount(s.Online)}
	if limits != nil {
		opts = append(opts, game.WithLimits(limits))
	}
	if alerts != nil {
		opts = append(opts, game.WithAlerts(alerts))
	}
	s.engine = game.New(cfg.Game, db, s, house, log.Named("engine"), opts...)

	s.setupRoutes()
	return s
}

// Run starts the engine loop and serves the gateway until the HTTP server
// stops.
func (s *GameServer) Run(ctx context.Context, addr string) error {
	go s.engine.Run(ctx)

	s.log.Info("server starting", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Engine exposes the round engine, mainly for tests.
func (s *GameServer) Engine() *game.Engine {
	return s.engine
}

func (s *GameServer) setupRoutes() {
	s.router.Use(s.securityMiddleware())

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	s.router.GET("/ws", s.handleWebSocket)

	api := s.router.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", s.Register)
			authRoutes.POST("/login", s.Login)
		}

		authenticated := api.Group("")
		authenticated.Use(s.AuthMiddleware())
		{
			authenticated.GET("/user/balance", s.GetBalance)
			authenticated.GET("/user/profile", s.GetProfile)
			authenticated.POST("/bet", s.PlaceBet)
			authenticated.POST("/cashout", s.CashOut)
			authenticated.GET("/game/current", s.GetCurrentRound)
			authenticated.GET("/game/history", s.GetHistory)
			authenticated.GET("/game/player/history", s.GetPlayerHistory)
			authenticated.POST("/game/verify", s.VerifyRound)
			authenticated.GET("/leaderboard", s.GetLeaderboard)
		}
	}
}
