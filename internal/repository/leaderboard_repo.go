package repository

import (
	"context"
	"time"

	"LdsEngine/internal/model"

	"gorm.io/gorm"
)

// WalletStats 单钱包历史战绩（仅统计completed场次）
type WalletStats struct {
	Wallet        string   `json:"wallet"`
	GamesPlayed   int64    `json:"games_played"`
	Wins          int64    `json:"wins"`
	TotalPayout   int64    `json:"total_payout"`
	BestPlacement *int     `json:"best_placement"`
	AvgPlacement  *float64 `json:"avg_placement"`
}

// LeaderboardRow 全局排行榜行
type LeaderboardRow struct {
	Wallet      string `json:"wallet"`
	TotalPayout int64  `json:"total_payout"`
	Wins        int64  `json:"wins"`
	GamesPlayed int64  `json:"games_played"`
}

// WalletHistoryRow 单钱包历史场次（分页）
type WalletHistoryRow struct {
	GameUUID          string     `json:"game_uuid"`
	EntryFee          int64      `json:"entry_fee"`
	Status            string     `json:"player_status"`
	Placement         *int       `json:"placement"`
	EliminatedAtRound *int       `json:"eliminated_at_round"`
	PayoutAmount      int64      `json:"payout_amount"`
	IsFreeBet         bool       `json:"is_free_bet"`
	EndTime           *time.Time `json:"end_time"`
}

// LeaderboardRepository 纯读侧聚合：只读completed聚合，与进行中场次并发安全
type LeaderboardRepository interface {
	WalletStats(ctx context.Context, wallet string) (*WalletStats, error)
	TopByPayout(ctx context.Context, limit int) ([]*LeaderboardRow, error)
	TopByWins(ctx context.Context, limit int) ([]*LeaderboardRow, error)
	WalletHistory(ctx context.Context, wallet string, page, pageSize int) ([]*WalletHistoryRow, int64, error)
}

type leaderboardRepository struct {
	db *gorm.DB
}

// NewLeaderboardRepository 创建排行榜仓储
func NewLeaderboardRepository(db *gorm.DB) LeaderboardRepository {
	return &leaderboardRepository{db: db}
}

func (r *leaderboardRepository) WalletStats(ctx context.Context, wallet string) (*WalletStats, error) {
	stats := &WalletStats{Wallet: wallet}
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(*)                                            AS games_played,
			COUNT(*) FILTER (WHERE p.placement = 1)             AS wins,
			COALESCE(SUM(p.payout_amount), 0)                   AS total_payout,
			MIN(p.placement)                                    AS best_placement,
			AVG(p.placement)                                    AS avg_placement
		FROM players p
		JOIN games g ON g.id = p.game_id
		WHERE p.wallet_address = ? AND g.status = ?`,
		wallet, model.GameStatusCompleted).
		Scan(stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *leaderboardRepository) TopByPayout(ctx context.Context, limit int) ([]*LeaderboardRow, error) {
	var rows []*LeaderboardRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			p.wallet_address                                    AS wallet,
			COALESCE(SUM(p.payout_amount), 0)                   AS total_payout,
			COUNT(*) FILTER (WHERE p.placement = 1)             AS wins,
			COUNT(*)                                            AS games_played
		FROM players p
		JOIN games g ON g.id = p.game_id
		WHERE g.status = ?
		GROUP BY p.wallet_address
		ORDER BY total_payout DESC
		LIMIT ?`, model.GameStatusCompleted, limit).
		Scan(&rows).Error
	return rows, err
}

func (r *leaderboardRepository) TopByWins(ctx context.Context, limit int) ([]*LeaderboardRow, error) {
	var rows []*LeaderboardRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			p.wallet_address                                    AS wallet,
			COALESCE(SUM(p.payout_amount), 0)                   AS total_payout,
			COUNT(*) FILTER (WHERE p.placement = 1)             AS wins,
			COUNT(*)                                            AS games_played
		FROM players p
		JOIN games g ON g.id = p.game_id
		WHERE g.status = ?
		GROUP BY p.wallet_address
		ORDER BY wins DESC, total_payout DESC
		LIMIT ?`, model.GameStatusCompleted, limit).
		Scan(&rows).Error
	return rows, err
}

func (r *leaderboardRepository) WalletHistory(ctx context.Context, wallet string, page, pageSize int) ([]*WalletHistoryRow, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	base := r.db.WithContext(ctx).Model(&model.Player{}).
		Joins("JOIN games ON games.id = players.game_id").
		Where("players.wallet_address = ? AND games.status = ?", wallet, model.GameStatusCompleted)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []*WalletHistoryRow
	err := base.
		Select(`games.game_uuid, games.entry_fee, players.status, players.placement,
			players.eliminated_at_round, players.payout_amount, players.is_free_bet, games.end_time`).
		Order("games.end_time DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Scan(&rows).Error
	return rows, total, err
}
