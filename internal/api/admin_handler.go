package api

import (
	"net/http"
	"time"

	"LdsEngine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AdminHandler 管理端接口：建场与强制取消
type AdminHandler struct {
	lifecycle *service.LifecycleService
	logger    *logrus.Logger
}

// NewAdminHandler 创建 AdminHandler
func NewAdminHandler(lifecycle *service.LifecycleService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{lifecycle: lifecycle, logger: logger}
}

type createGameRequest struct {
	EntryFee           int64     `json:"entry_fee" binding:"required"`
	ScheduledStartTime time.Time `json:"scheduled_start_time" binding:"required"`
}

// CreateGame 建场 POST /api/admin/games
func (h *AdminHandler) CreateGame(c *gin.Context) {
	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	game, err := h.lifecycle.CreateGame(c.Request.Context(), req.EntryFee, req.ScheduledStartTime)
	if err != nil {
		status, code := errorCode(err)
		if status == http.StatusInternalServerError {
			h.logger.WithError(err).Error("CreateGame failed")
		}
		c.JSON(status, gin.H{"error": err.Error(), "code": code})
		return
	}
	c.JSON(http.StatusCreated, game)
}

// CancelGame 强制取消报名中场次 POST /api/admin/games/:game_uuid/cancel
func (h *AdminHandler) CancelGame(c *gin.Context) {
	gameUUID := c.Param("game_uuid")
	if gameUUID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "game_uuid is required"})
		return
	}

	if err := h.lifecycle.ForceCancel(c.Request.Context(), gameUUID); err != nil {
		status, code := errorCode(err)
		if status == http.StatusInternalServerError {
			h.logger.WithError(err).Error("CancelGame failed")
		}
		c.JSON(status, gin.H{"error": err.Error(), "code": code})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}
