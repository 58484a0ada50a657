package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"LdsEngine/internal/config"
	"LdsEngine/internal/interfaces"
	"LdsEngine/internal/model"
	"LdsEngine/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LifecycleService 游戏生命周期控制器
// 状态机 registering → starting → in_progress → completed/cancelled
// 全局同一时刻至多一场非终态游戏；时间驱动迁移全部由Tick承载（单驱动）
type LifecycleService struct {
	gameRepo   repository.GameRepository
	playerRepo repository.PlayerRepository
	round      *RoundService
	settlement *SettlementService
	notifier   interfaces.Notifier
	cfg        *config.GameConfig
	logger     *logrus.Logger
}

// NewLifecycleService 创建生命周期控制器
func NewLifecycleService(
	gameRepo repository.GameRepository,
	playerRepo repository.PlayerRepository,
	round *RoundService,
	settlement *SettlementService,
	notifier interfaces.Notifier,
	cfg *config.GameConfig,
	logger *logrus.Logger,
) *LifecycleService {
	return &LifecycleService{
		gameRepo:   gameRepo,
		playerRepo: playerRepo,
		round:      round,
		settlement: settlement,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger,
	}
}

// CreateGame 创建新场次。计划开赛时间必须严格晚于当前；全局单活跃场次
func (s *LifecycleService) CreateGame(ctx context.Context, entryFee int64, scheduledStart time.Time) (*model.Game, error) {
	if !scheduledStart.After(time.Now()) {
		return nil, ErrInvalidSchedule
	}
	if entryFee < s.cfg.MinEntryFee {
		return nil, ErrEntryFeeTooLow
	}
	if _, err := s.gameRepo.GetActiveGame(ctx); err == nil {
		return nil, ErrActiveGameExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询活跃场次失败: %w", err)
	}

	game := &model.Game{
		GameUUID:           uuid.NewString(),
		Status:             model.GameStatusRegistering,
		Asset:              s.cfg.Asset,
		EntryFee:           entryFee,
		ScheduledStartTime: scheduledStart,
	}
	if err := s.gameRepo.CreateGame(ctx, game); err != nil {
		// 检查与入库之间输掉并发建场竞争：唯一索引兜底，按已存在冲突返回
		if errors.Is(err, repository.ErrDuplicateActiveGame) {
			return nil, ErrActiveGameExists
		}
		return nil, fmt.Errorf("场次入库失败: %w", err)
	}
	s.logger.Infof("新场次创建：%s，入场费=%d，计划开赛=%s",
		game.GameUUID, entryFee, scheduledStart.Format(time.RFC3339))
	return game, nil
}

// ForceCancel 管理端强制取消仍在报名的场次，并登记全员退款
func (s *LifecycleService) ForceCancel(ctx context.Context, gameUUID string) error {
	game, err := s.gameRepo.GetByUUID(ctx, gameUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGameNotFound
		}
		return fmt.Errorf("查询游戏失败: %w", err)
	}
	if game.Status != model.GameStatusRegistering {
		return ErrGameNotCancelable
	}
	return s.cancel(ctx, game, "force_cancelled")
}

// Tick 调度器每tick调用一次，承载全部时间驱动迁移
func (s *LifecycleService) Tick(ctx context.Context) error {
	// 先补结算：completed但settled_at为空的场次（上次结算中途失败），
	// 派奖义务绝不静默丢失
	s.retrySettlements(ctx)

	game, err := s.gameRepo.GetActiveGame(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// 无活跃场次：立即排期下一场
		return s.scheduleNext(ctx)
	}
	if err != nil {
		return fmt.Errorf("查询活跃场次失败: %w", err)
	}

	switch game.Status {
	case model.GameStatusRegistering:
		if time.Now().Before(game.ScheduledStartTime) {
			return nil
		}
		if game.PlayerCount < s.cfg.MinPlayers {
			// 人数不足：取消并登记退款（取消是终态广播，不是错误）
			return s.cancel(ctx, game, "insufficient_players")
		}
		if err := s.gameRepo.TransitionStatus(ctx, game.ID, model.GameStatusRegistering, model.GameStatusStarting,
			map[string]interface{}{"current_round": 1}); err != nil {
			if errors.Is(err, repository.ErrStaleTransition) {
				return nil
			}
			return err
		}
		game.Status = model.GameStatusStarting
		game.CurrentRound = 1
		fallthrough

	case model.GameStatusStarting:
		// 先落地第1回合再置in_progress：开盘价获取失败时停留在starting，下一tick重试
		if game.CurrentRound == 0 {
			game.CurrentRound = 1
		}
		if _, err := s.round.OpenRound(ctx, game, 1); err != nil {
			return fmt.Errorf("开赛推迟: %w", err)
		}
		now := time.Now()
		if err := s.gameRepo.TransitionStatus(ctx, game.ID, model.GameStatusStarting, model.GameStatusInProgress,
			map[string]interface{}{"actual_start_time": now}); err != nil {
			if errors.Is(err, repository.ErrStaleTransition) {
				return nil
			}
			return err
		}
		s.logger.WithField("game", game.GameUUID).
			Infof("开赛：%d人，奖池=%d", game.PlayerCount, game.PrizePool)
		return nil

	case model.GameStatusInProgress:
		outcome, err := s.round.TickRound(ctx, game)
		if err != nil {
			return err
		}
		if outcome == nil || !outcome.GameFinished {
			return nil
		}
		return s.complete(ctx, game, outcome)
	}
	return nil
}

// retrySettlements 补结算：扫描completed但settled_at为空的场次重新Settle。
// Enqueue按 (game_id, wallet, payout_type) 幂等，重跑不会产生重复义务
func (s *LifecycleService) retrySettlements(ctx context.Context) {
	games, err := s.gameRepo.ListUnsettled(ctx)
	if err != nil {
		s.logger.WithError(err).Error("待补结算场次查询失败")
		return
	}
	for _, g := range games {
		if err := s.settlement.Settle(ctx, g); err != nil && !errors.Is(err, ErrAlreadySettled) {
			s.logger.WithError(err).WithField("game", g.GameUUID).Error("补结算失败，待重试")
		}
	}
}

// complete 终局：置completed、结算派奖、广播
func (s *LifecycleService) complete(ctx context.Context, game *model.Game, outcome *RoundOutcome) error {
	now := time.Now()
	if err := s.gameRepo.TransitionStatus(ctx, game.ID, model.GameStatusInProgress, model.GameStatusCompleted,
		map[string]interface{}{"end_time": now}); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return nil
		}
		return err
	}
	game.Status = model.GameStatusCompleted

	if err := s.settlement.Settle(ctx, game); err != nil && !errors.Is(err, ErrAlreadySettled) {
		// 结算失败不回滚终局：settled_at仍为空，下一tick由retrySettlements补结算
		s.logger.WithError(err).WithField("game", game.GameUUID).Error("结算失败，待重试")
	}

	s.notifier.Notify(ctx, interfaces.GameEvent{
		Type:     "game_completed",
		GameUUID: game.GameUUID,
		Result:   outcome.Result,
		Wallets:  []string{outcome.WinnerWallet},
		Detail:   fmt.Sprintf("winner=%s rounds=%d", outcome.WinnerWallet, outcome.RoundNumber),
	})
	s.logger.WithField("game", game.GameUUID).
		Infof("终局：冠军=%s，共%d回合", outcome.WinnerWallet, outcome.RoundNumber)
	return nil
}

// cancel 取消场次（仅registering可达），退款经由派奖队列
func (s *LifecycleService) cancel(ctx context.Context, game *model.Game, reason string) error {
	now := time.Now()
	if err := s.gameRepo.TransitionStatus(ctx, game.ID, model.GameStatusRegistering, model.GameStatusCancelled,
		map[string]interface{}{"end_time": now}); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return nil
		}
		return err
	}
	if err := s.settlement.EnqueueRefunds(ctx, game, reason); err != nil {
		s.logger.WithError(err).WithField("game", game.GameUUID).Error("退款登记失败，待重试")
	}

	players, err := s.playerRepo.ListByGame(ctx, game.ID)
	if err == nil {
		wallets := make([]string, 0, len(players))
		for _, p := range players {
			wallets = append(wallets, p.WalletAddress)
		}
		s.notifier.Notify(ctx, interfaces.GameEvent{
			Type:     "game_cancelled",
			GameUUID: game.GameUUID,
			Wallets:  wallets,
			Detail:   reason,
		})
	}
	s.logger.WithField("game", game.GameUUID).Infof("场次取消：%s", reason)
	return nil
}

// scheduleNext 无活跃场次时按配置自动排期下一场
func (s *LifecycleService) scheduleNext(ctx context.Context) error {
	_, err := s.CreateGame(ctx, s.cfg.EntryFee, time.Now().Add(s.cfg.ScheduleGap))
	if errors.Is(err, ErrActiveGameExists) {
		return nil
	}
	return err
}
