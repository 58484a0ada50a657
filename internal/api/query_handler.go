package api

import (
	"errors"
	"net/http"
	"strconv"

	"LdsEngine/internal/repository"
	"LdsEngine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// QueryHandler 查询接口：场次、名单、回合、预测、排行榜、钱包历史
type QueryHandler struct {
	gameRepo       repository.GameRepository
	playerRepo     repository.PlayerRepository
	roundRepo      repository.RoundRepository
	predictionRepo repository.PredictionRepository
	payoutRepo     repository.FailedPayoutRepository
	leaderboard    *service.LeaderboardService
	logger         *logrus.Logger
}

// NewQueryHandler 创建 QueryHandler（仓储由db现场构建，纯读侧无共享状态）
func NewQueryHandler(db *gorm.DB, logger *logrus.Logger) *QueryHandler {
	return &QueryHandler{
		gameRepo:       repository.NewGameRepository(db),
		playerRepo:     repository.NewPlayerRepository(db),
		roundRepo:      repository.NewRoundRepository(db),
		predictionRepo: repository.NewPredictionRepository(db),
		payoutRepo:     repository.NewFailedPayoutRepository(db),
		leaderboard:    service.NewLeaderboardService(repository.NewLeaderboardRepository(db), service.NewEloTierService(), logger),
		logger:         logger,
	}
}

// GetActiveGame 当前活跃场次 GET /api/games/active
func (h *QueryHandler) GetActiveGame(c *gin.Context) {
	game, err := h.gameRepo.GetActiveGame(c.Request.Context())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active game", "code": "game_not_found"})
			return
		}
		h.logger.WithError(err).Error("GetActiveGame failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, game)
}

// GetGame 场次详情 GET /api/games/:game_uuid
func (h *QueryHandler) GetGame(c *gin.Context) {
	game, err := h.gameRepo.GetByUUID(c.Request.Context(), c.Param("game_uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found", "code": "game_not_found"})
			return
		}
		h.logger.WithError(err).Error("GetGame failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, game)
}

// ListPlayers 在册名单 GET /api/games/:game_uuid/players
func (h *QueryHandler) ListPlayers(c *gin.Context) {
	game, err := h.gameRepo.GetByUUID(c.Request.Context(), c.Param("game_uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found", "code": "game_not_found"})
			return
		}
		h.logger.WithError(err).Error("ListPlayers failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	players, err := h.playerRepo.ListByGame(c.Request.Context(), game.ID)
	if err != nil {
		h.logger.WithError(err).Error("ListPlayers failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"game_uuid": game.GameUUID, "players": players})
}

// ListRounds 回合历史 GET /api/games/:game_uuid/rounds
func (h *QueryHandler) ListRounds(c *gin.Context) {
	game, err := h.gameRepo.GetByUUID(c.Request.Context(), c.Param("game_uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found", "code": "game_not_found"})
			return
		}
		h.logger.WithError(err).Error("ListRounds failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	rounds, err := h.roundRepo.ListByGame(c.Request.Context(), game.ID)
	if err != nil {
		h.logger.WithError(err).Error("ListRounds failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"game_uuid": game.GameUUID, "rounds": rounds})
}

// ListPredictions 某回合全部预测 GET /api/games/:game_uuid/rounds/:round_number/predictions
func (h *QueryHandler) ListPredictions(c *gin.Context) {
	game, err := h.gameRepo.GetByUUID(c.Request.Context(), c.Param("game_uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found", "code": "game_not_found"})
			return
		}
		h.logger.WithError(err).Error("ListPredictions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	roundNumber, err := strconv.Atoi(c.Param("round_number"))
	if err != nil || roundNumber < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "round_number is invalid"})
		return
	}
	preds, err := h.predictionRepo.ListByRound(c.Request.Context(), game.ID, roundNumber)
	if err != nil {
		h.logger.WithError(err).Error("ListPredictions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"game_uuid": game.GameUUID, "round_number": roundNumber, "predictions": preds})
}

// Leaderboard 全局排行榜 GET /api/leaderboard?by=payout|wins&limit=20
func (h *QueryHandler) Leaderboard(c *gin.Context) {
	by := c.DefaultQuery("by", "payout")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	rows, err := h.leaderboard.Top(c.Request.Context(), by, limit)
	if err != nil {
		if errors.Is(err, service.ErrInvalidLeaderboard) {
			status, code := errorCode(err)
			c.JSON(status, gin.H{"error": err.Error(), "code": code})
			return
		}
		// 查询侧故障是内部错误，不是调用方参数问题
		h.logger.WithError(err).Error("Leaderboard failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"by": by, "rows": rows})
}

// WalletStats 单钱包战绩 GET /api/wallets/:wallet/stats
func (h *QueryHandler) WalletStats(c *gin.Context) {
	wallet := c.Param("wallet")
	if wallet == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wallet is required"})
		return
	}
	stats, err := h.leaderboard.WalletStats(c.Request.Context(), wallet)
	if err != nil {
		h.logger.WithError(err).Error("WalletStats failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// WalletHistory 单钱包历史场次 GET /api/wallets/:wallet/history?page=1&page_size=20
func (h *QueryHandler) WalletHistory(c *gin.Context) {
	wallet := c.Param("wallet")
	if wallet == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wallet is required"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	rows, total, err := h.leaderboard.WalletHistory(c.Request.Context(), wallet, page, pageSize)
	if err != nil {
		h.logger.WithError(err).Error("WalletHistory failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"wallet":    wallet,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"rows":      rows,
	})
}

// WalletPayouts 单钱包待派奖/退款记录 GET /api/wallets/:wallet/payouts
func (h *QueryHandler) WalletPayouts(c *gin.Context) {
	wallet := c.Param("wallet")
	if wallet == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wallet is required"})
		return
	}
	records, err := h.payoutRepo.ListByWallet(c.Request.Context(), wallet)
	if err != nil {
		h.logger.WithError(err).Error("WalletPayouts failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallet": wallet, "payouts": records})
}
