package api

import (
	"errors"
	"net/http"

	"LdsEngine/internal/service"
)

// errorCode 把服务层哨兵翻译为机器可读code，前端据此解释拒绝原因
func errorCode(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidSchedule):
		return http.StatusBadRequest, "invalid_schedule"
	case errors.Is(err, service.ErrEntryFeeTooLow):
		return http.StatusBadRequest, "entry_fee_too_low"
	case errors.Is(err, service.ErrInvalidDirection):
		return http.StatusBadRequest, "invalid_direction"
	case errors.Is(err, service.ErrInvalidLeaderboard):
		return http.StatusBadRequest, "invalid_leaderboard"
	case errors.Is(err, service.ErrGameNotFound):
		return http.StatusNotFound, "game_not_found"
	case errors.Is(err, service.ErrRoundNotFound):
		return http.StatusNotFound, "round_not_found"
	case errors.Is(err, service.ErrPlayerNotFound):
		return http.StatusNotFound, "player_not_found"
	case errors.Is(err, service.ErrActiveGameExists):
		return http.StatusConflict, "active_game_exists"
	case errors.Is(err, service.ErrGameNotJoinable):
		return http.StatusConflict, "game_not_joinable"
	case errors.Is(err, service.ErrGameNotCancelable):
		return http.StatusConflict, "game_not_cancelable"
	case errors.Is(err, service.ErrDuplicateWallet):
		return http.StatusConflict, "duplicate_wallet"
	case errors.Is(err, service.ErrCrossGameConflict):
		return http.StatusConflict, "cross_game_conflict"
	case errors.Is(err, service.ErrPredictionWindowClosed):
		return http.StatusConflict, "prediction_window_closed"
	case errors.Is(err, service.ErrNotAlive):
		return http.StatusConflict, "not_alive"
	case errors.Is(err, service.ErrAlreadySettled):
		return http.StatusConflict, "already_settled"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
