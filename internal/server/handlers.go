package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trader-game/internal/game"
)

func (s *GameServer) GetBalance(c *gin.Context) {
	userID := c.GetString("userID")

	balance, err := s.db.GetUserBalance(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load balance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (s *GameServer) GetProfile(c *gin.Context) {
	userID := c.GetString("userID")

	profile, err := s.db.GetUserProfile(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}

	c.JSON(http.StatusOK, profile)
}

type betRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// PlaceBet is the REST twin of the websocket placeBet command. Both paths
// land on the same engine call, so the acceptance rules cannot drift.
func (s *GameServer) PlaceBet(c *gin.Context) {
	userID := c.GetString("userID")

	var req betRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bet payload"})
		return
	}

	bet, err := s.engine.PlaceBet(userID, req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  err.Error(),
			"reason": game.RejectionReason(err),
		})
		return
	}

	c.JSON(http.StatusOK, bet)
}

func (s *GameServer) CashOut(c *gin.Context) {
	userID := c.GetString("userID")

	cashOut, err := s.engine.CashOut(userID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  err.Error(),
			"reason": game.RejectionReason(err),
		})
		return
	}

	c.JSON(http.StatusOK, cashOut)
}

func (s *GameServer) GetCurrentRound(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Snapshot())
}

func (s *GameServer) GetHistory(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	c.JSON(http.StatusOK, gin.H{"rounds": s.engine.History(limit)})
}

func (s *GameServer) GetPlayerHistory(c *gin.Context) {
	userID := c.GetString("userID")

	rounds, err := s.db.GetPlayerRoundHistory(userID, 50)
	if err != nil {
		s.log.Warn("player history lookup failed", zap.String("player", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rounds": rounds})
}

type verifyRequest struct {
	RoundID string `json:"roundId" binding:"required"`
}

// VerifyRound lets a player check a finished round's seed against the hash
// that was published when the round started.
func (s *GameServer) VerifyRound(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "roundId required"})
		return
	}

	round, err := s.db.GetRoundByID(req.RoundID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "round not found"})
		return
	}

	if round.Seed == "" || round.Result == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "round not finished yet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"roundId": round.ID,
		"seed":    round.Seed,
		"hash":    round.Hash,
		"result":  round.Result,
		"valid":   game.VerifySeed(round.Seed, round.Hash),
	})
}

func (s *GameServer) GetLeaderboard(c *gin.Context) {
	timeFrame := c.DefaultQuery("timeFrame", "daily")

	stats, err := s.db.GetLeaderboard(timeFrame)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load leaderboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": stats, "timeFrame": timeFrame})
}
