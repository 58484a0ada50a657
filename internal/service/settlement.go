package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"LdsEngine/internal/config"
	"LdsEngine/internal/model"
	"LdsEngine/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// SettlementService 结算引擎：抽成、按名次分配奖池、登记派奖义务
// 本服务无转账能力：所有应付金额入 failed_payouts 队列，由外部派奖worker消费
type SettlementService struct {
	gameRepo   repository.GameRepository
	playerRepo repository.PlayerRepository
	payoutRepo repository.FailedPayoutRepository
	cfg        *config.GameConfig
	logger     *logrus.Logger
}

// NewSettlementService 创建结算引擎
func NewSettlementService(
	gameRepo repository.GameRepository,
	playerRepo repository.PlayerRepository,
	payoutRepo repository.FailedPayoutRepository,
	cfg *config.GameConfig,
	logger *logrus.Logger,
) *SettlementService {
	return &SettlementService{
		gameRepo:   gameRepo,
		playerRepo: playerRepo,
		payoutRepo: payoutRepo,
		cfg:        cfg,
		logger:     logger,
	}
}

// ComputePayouts 纯函数：按名次份额表把可分配额拆给各名次的玩家
// 同名次档多人平分该档份额；整数除法余数归第1名（再有余数归该档最早入场者）
func ComputePayouts(distributable int64, table map[int]int64, players []*model.Player) map[string]int64 {
	byPlacement := make(map[int][]*model.Player)
	for _, p := range players {
		if p.Placement == nil {
			continue
		}
		byPlacement[*p.Placement] = append(byPlacement[*p.Placement], p)
	}

	payouts := make(map[string]int64)
	var firstPlace *model.Player
	var paid int64
	for placement, shareBps := range table {
		group, ok := byPlacement[placement]
		if !ok || shareBps == 0 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].JoinedAt.Before(group[j].JoinedAt) })
		groupTotal := distributable * shareBps / 10000
		each := groupTotal / int64(len(group))
		rem := groupTotal - each*int64(len(group))
		for i, p := range group {
			amount := each
			if i == 0 {
				amount += rem
			}
			payouts[p.WalletAddress] += amount
			paid += amount
			if placement == 1 && firstPlace == nil {
				firstPlace = p
			}
		}
	}

	// 份额表总和为10000时，把整除余数补给冠军，保证奖池分毫不差
	var tableTotal int64
	for _, s := range table {
		tableTotal += s
	}
	if tableTotal == 10000 && firstPlace != nil {
		payouts[firstPlace.WalletAddress] += distributable - paid
	}
	return payouts
}

// Settle 游戏完成时调用一次；重复调用为no-op（settled_at守卫）
func (s *SettlementService) Settle(ctx context.Context, game *model.Game) error {
	fresh, err := s.gameRepo.GetByID(ctx, game.ID)
	if err != nil {
		return fmt.Errorf("查询游戏失败: %w", err)
	}
	if fresh.Status != model.GameStatusCompleted {
		return ErrAlreadySettled
	}
	if fresh.SettledAt != nil {
		return ErrAlreadySettled
	}

	rake := fresh.PrizePool * s.cfg.RakeBps / 10000
	distributable := fresh.PrizePool - rake

	players, err := s.playerRepo.ListByGame(ctx, fresh.ID)
	if err != nil {
		return fmt.Errorf("读取名单失败: %w", err)
	}
	payouts := ComputePayouts(distributable, s.cfg.PayoutTable, players)

	for wallet, amount := range payouts {
		if amount <= 0 {
			continue
		}
		if err := s.playerRepo.SetPayout(ctx, fresh.ID, wallet, amount); err != nil {
			return fmt.Errorf("派奖金额落库失败: %w", err)
		}
		if err := s.payoutRepo.Enqueue(ctx, &model.FailedPayout{
			PayoutUUID: uuid.NewString(),
			GameType:   "lds",
			GameID:     fresh.ID,
			Wallet:     wallet,
			Amount:     amount,
			PayoutType: model.PayoutTypePrize,
			Reason:     "game_completed",
			Status:     model.PayoutStatusPending,
			Metadata:   datatypes.JSON(fmt.Sprintf(`{"game_uuid":%q}`, fresh.GameUUID)),
		}); err != nil {
			return fmt.Errorf("派奖义务入队失败: %w", err)
		}
	}

	if err := s.gameRepo.MarkSettled(ctx, fresh.ID, rake); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return ErrAlreadySettled
		}
		return fmt.Errorf("结算守卫落库失败: %w", err)
	}

	s.logger.WithField("game", fresh.GameUUID).
		Infof("结算完成：奖池=%d，抽成=%d，派奖%d笔", fresh.PrizePool, rake, len(payouts))
	return nil
}

// EnqueueRefunds 场次取消时为每个非免费席位登记退款义务
func (s *SettlementService) EnqueueRefunds(ctx context.Context, game *model.Game, reason string) error {
	players, err := s.playerRepo.ListByGame(ctx, game.ID)
	if err != nil {
		return fmt.Errorf("读取名单失败: %w", err)
	}
	count := 0
	for _, p := range players {
		if p.IsFreeBet {
			continue
		}
		if err := s.payoutRepo.Enqueue(ctx, &model.FailedPayout{
			PayoutUUID: uuid.NewString(),
			GameType:   "lds",
			GameID:     game.ID,
			Wallet:     p.WalletAddress,
			Amount:     game.EntryFee,
			PayoutType: model.PayoutTypeRefund,
			Reason:     reason,
			Status:     model.PayoutStatusPending,
			Metadata:   datatypes.JSON(fmt.Sprintf(`{"game_uuid":%q}`, game.GameUUID)),
		}); err != nil {
			return fmt.Errorf("退款义务入队失败: %w", err)
		}
		count++
	}
	s.logger.WithField("game", game.GameUUID).Infof("已登记%d笔退款义务", count)
	return nil
}
