package service

import (
	"context"
	"fmt"

	"LdsEngine/internal/interfaces"
	"LdsEngine/internal/repository"

	"github.com/sirupsen/logrus"
)

// RankedRow 排行榜行，附带展示段位
type RankedRow struct {
	Rank int `json:"rank"`
	repository.LeaderboardRow
	Tier string `json:"tier"`
}

// LeaderboardService 纯读侧统计：只聚合completed场次，可与进行中场次并发
type LeaderboardService struct {
	repo   repository.LeaderboardRepository
	tiers  interfaces.TierProvider
	logger *logrus.Logger
}

// NewLeaderboardService 创建排行榜服务
func NewLeaderboardService(repo repository.LeaderboardRepository, tiers interfaces.TierProvider, logger *logrus.Logger) *LeaderboardService {
	return &LeaderboardService{repo: repo, tiers: tiers, logger: logger}
}

// Top 全局排行榜。by=payout按累计派奖降序，by=wins按夺冠数降序
func (s *LeaderboardService) Top(ctx context.Context, by string, limit int) ([]*RankedRow, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var (
		rows []*repository.LeaderboardRow
		err  error
	)
	switch by {
	case "", "payout":
		rows, err = s.repo.TopByPayout(ctx, limit)
	case "wins":
		rows, err = s.repo.TopByWins(ctx, limit)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidLeaderboard, by)
	}
	if err != nil {
		return nil, fmt.Errorf("排行榜查询失败: %w", err)
	}

	ranked := make([]*RankedRow, 0, len(rows))
	for i, row := range rows {
		ranked = append(ranked, &RankedRow{
			Rank:           i + 1,
			LeaderboardRow: *row,
			Tier:           s.tiers.Tier(displayRating(row), int(row.GamesPlayed)),
		})
	}
	return ranked, nil
}

// WalletStats 单钱包战绩
func (s *LeaderboardService) WalletStats(ctx context.Context, wallet string) (*repository.WalletStats, error) {
	return s.repo.WalletStats(ctx, wallet)
}

// WalletHistory 单钱包历史场次（分页）
func (s *LeaderboardService) WalletHistory(ctx context.Context, wallet string, page, pageSize int) ([]*repository.WalletHistoryRow, int64, error) {
	return s.repo.WalletHistory(ctx, wallet, page, pageSize)
}

// displayRating LDS侧的展示分：基准1000，夺冠+25，未夺冠-10
// 仅供段位展示，与对战子系统的真实ELO无关
func displayRating(row *repository.LeaderboardRow) int {
	losses := row.GamesPlayed - row.Wins
	return 1000 + int(row.Wins)*25 - int(losses)*10
}
