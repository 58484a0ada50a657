package api

import (
	"errors"
	"net/http"

	"LdsEngine/internal/repository"
	"LdsEngine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PlayHandler 玩家侧接口：入场、退出、提交预测
type PlayHandler struct {
	gameRepo repository.GameRepository
	roster   *service.RosterService
	round    *service.RoundService
	logger   *logrus.Logger
}

// NewPlayHandler 创建 PlayHandler。roster/round须与调度器共享同一实例（每钱包锁在其内）
func NewPlayHandler(gameRepo repository.GameRepository, roster *service.RosterService, round *service.RoundService, logger *logrus.Logger) *PlayHandler {
	return &PlayHandler{
		gameRepo: gameRepo,
		roster:   roster,
		round:    round,
		logger:   logger,
	}
}

type joinRequest struct {
	Wallet  string `json:"wallet" binding:"required"`
	FreeBet bool   `json:"free_bet"`
}

type leaveRequest struct {
	Wallet string `json:"wallet" binding:"required"`
}

type predictRequest struct {
	Wallet    string `json:"wallet" binding:"required"`
	Direction string `json:"direction" binding:"required"`
}

// Join 入场 POST /api/games/:game_uuid/join
func (h *PlayHandler) Join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	player, err := h.roster.Join(c.Request.Context(), c.Param("game_uuid"), req.Wallet, req.FreeBet)
	if err != nil {
		status, code := errorCode(err)
		if status == http.StatusInternalServerError {
			h.logger.WithError(err).Error("Join failed")
		}
		c.JSON(status, gin.H{"error": err.Error(), "code": code})
		return
	}
	c.JSON(http.StatusCreated, player)
}

// Leave 开赛前退出 POST /api/games/:game_uuid/leave
func (h *PlayHandler) Leave(c *gin.Context) {
	var req leaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.roster.Leave(c.Request.Context(), c.Param("game_uuid"), req.Wallet); err != nil {
		status, code := errorCode(err)
		if status == http.StatusInternalServerError {
			h.logger.WithError(err).Error("Leave failed")
		}
		c.JSON(status, gin.H{"error": err.Error(), "code": code})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

// Predict 提交当前回合预测 POST /api/games/:game_uuid/predict
func (h *PlayHandler) Predict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	game, err := h.gameRepo.GetByUUID(c.Request.Context(), c.Param("game_uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": service.ErrGameNotFound.Error(), "code": "game_not_found"})
			return
		}
		h.logger.WithError(err).Error("Predict failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	pred, err := h.round.RecordPrediction(c.Request.Context(), game, game.CurrentRound, req.Wallet, req.Direction)
	if err != nil {
		status, code := errorCode(err)
		if status == http.StatusInternalServerError {
			h.logger.WithError(err).Error("Predict failed")
		}
		c.JSON(status, gin.H{"error": err.Error(), "code": code})
		return
	}
	c.JSON(http.StatusOK, pred)
}
