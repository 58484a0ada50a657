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

// RoundOutcome 回合结算结果，生命周期控制器据此驱动终局
type RoundOutcome struct {
	RoundNumber  int
	Result       string
	Eliminated   []string
	AliveAfter   int
	Wipeout      bool
	GameFinished bool
	WinnerWallet string
}

// RoundService 回合引擎：开启回合、收集预测、到点结算与淘汰
// 时间驱动入口仅被调度器单线程调用；RecordPrediction 可与tick并发
type RoundService struct {
	gameRepo       repository.GameRepository
	roundRepo      repository.RoundRepository
	predictionRepo repository.PredictionRepository
	roster         *RosterService
	oracle         interfaces.PriceOracle
	notifier       interfaces.Notifier
	cfg            *config.GameConfig
	logger         *logrus.Logger
}

// NewRoundService 创建回合引擎
func NewRoundService(
	gameRepo repository.GameRepository,
	roundRepo repository.RoundRepository,
	predictionRepo repository.PredictionRepository,
	roster *RosterService,
	oracle interfaces.PriceOracle,
	notifier interfaces.Notifier,
	cfg *config.GameConfig,
	logger *logrus.Logger,
) *RoundService {
	return &RoundService{
		gameRepo:       gameRepo,
		roundRepo:      roundRepo,
		predictionRepo: predictionRepo,
		roster:         roster,
		oracle:         oracle,
		notifier:       notifier,
		cfg:            cfg,
		logger:         logger,
	}
}

// OpenRound 开启第roundNumber回合。重复调用幂等：已存在则直接返回
func (s *RoundService) OpenRound(ctx context.Context, game *model.Game, roundNumber int) (*model.Round, error) {
	if roundNumber != game.CurrentRound {
		return nil, ErrOutOfOrderRound
	}
	if roundNumber > 1 {
		prev, err := s.roundRepo.GetRound(ctx, game.ID, roundNumber-1)
		if err != nil {
			return nil, fmt.Errorf("查询上一回合失败: %w", err)
		}
		if prev.ResolvedAt == nil {
			return nil, ErrOutOfOrderRound
		}
	}
	if existing, err := s.roundRepo.GetRound(ctx, game.ID, roundNumber); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询回合失败: %w", err)
	}

	alive, err := s.roster.AliveRoster(ctx, game.ID)
	if err != nil {
		return nil, fmt.Errorf("读取存活集合失败: %w", err)
	}

	now := time.Now()
	startPrice, err := s.oracle.GetPrice(ctx, game.Asset, now)
	if err != nil {
		return nil, fmt.Errorf("开盘价获取失败: %w", err)
	}

	round := &model.Round{
		RoundUUID:          uuid.NewString(),
		GameID:             game.ID,
		RoundNumber:        roundNumber,
		Status:             model.RoundStatusOpen,
		StartPrice:         startPrice,
		PlayersAliveBefore: len(alive),
		PredictionDeadline: now.Add(s.cfg.PredictionWindow),
		StartedAt:          now,
	}
	if err := s.roundRepo.CreateRound(ctx, round); err != nil {
		return nil, fmt.Errorf("回合入库失败: %w", err)
	}

	s.logger.WithField("game", game.GameUUID).
		Infof("第%d回合开启：开盘价=%f，存活%d人，截止%s",
			roundNumber, startPrice, len(alive), round.PredictionDeadline.Format(time.RFC3339))
	return round, nil
}

// RecordPrediction 记录方向预测。截止前幂等覆盖；结算一旦开始，迟到预测被拒绝
func (s *RoundService) RecordPrediction(ctx context.Context, game *model.Game, roundNumber int, wallet, direction string) (*model.Prediction, error) {
	if direction != model.DirectionUp && direction != model.DirectionDown {
		return nil, ErrInvalidDirection
	}
	round, err := s.roundRepo.GetRound(ctx, game.ID, roundNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("查询回合失败: %w", err)
	}
	now := time.Now()
	if round.Status != model.RoundStatusOpen || !now.Before(round.PredictionDeadline) {
		return nil, ErrPredictionWindowClosed
	}

	player, err := s.roster.playerRepo.GetPlayer(ctx, game.ID, wallet)
	if err != nil {
		if errors.Is(err, repository.ErrPlayerNotFound) {
			return nil, ErrNotAlive
		}
		return nil, fmt.Errorf("查询席位失败: %w", err)
	}
	if player.Status != model.PlayerStatusAlive {
		return nil, ErrNotAlive
	}

	pred := &model.Prediction{
		PredictionUUID: uuid.NewString(),
		GameID:         game.ID,
		RoundNumber:    roundNumber,
		WalletAddress:  wallet,
		Prediction:     &direction,
		PredictedAt:    &now,
	}
	if err := s.predictionRepo.Upsert(ctx, pred); err != nil {
		// 检查与入库之间回合已进入resolving：按窗口关闭拒绝，不静默吞下
		if errors.Is(err, repository.ErrRoundNotOpen) {
			return nil, ErrPredictionWindowClosed
		}
		return nil, fmt.Errorf("预测入库失败: %w", err)
	}
	return pred, nil
}

// TickRound 调度器对in_progress游戏的每tick入口：
// 当前回合缺失则补开（预言机故障自愈），到点或全员已预测则结算
func (s *RoundService) TickRound(ctx context.Context, game *model.Game) (*RoundOutcome, error) {
	round, err := s.roundRepo.GetRound(ctx, game.ID, game.CurrentRound)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// 上一回合已结算但新回合未落地（进程重启或开盘价获取失败），此处补开
		if _, err := s.OpenRound(ctx, game, game.CurrentRound); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询当前回合失败: %w", err)
	}

	switch round.Status {
	case model.RoundStatusResolved:
		return nil, nil
	case model.RoundStatusResolving:
		// 单驱动模型下只会是上次tick预言机故障后的残留，继续结算
		return s.resolve(ctx, game, round)
	}

	due := !time.Now().Before(round.PredictionDeadline)
	if !due {
		// 提前结算优化：全员已提交预测则无需等到截止
		alive, err := s.roster.AliveRoster(ctx, game.ID)
		if err != nil {
			return nil, err
		}
		count, err := s.predictionRepo.CountByRound(ctx, game.ID, round.RoundNumber)
		if err != nil {
			return nil, err
		}
		if len(alive) == 0 || count < int64(len(alive)) {
			return nil, nil
		}
	}

	// open→resolving 守卫迁移：至多一个调用方胜出，迟到预测从此被拒绝
	if err := s.roundRepo.BeginResolving(ctx, game.ID, round.RoundNumber); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return nil, nil
		}
		return nil, err
	}
	round.Status = model.RoundStatusResolving
	return s.resolve(ctx, game, round)
}

// resolve 结算已进入resolving的回合
func (s *RoundService) resolve(ctx context.Context, game *model.Game, round *model.Round) (*RoundOutcome, error) {
	endPrice, err := s.oracle.GetPrice(ctx, game.Asset, time.Now())
	if err != nil {
		// 结算延迟而非跳过：回退到open，下一tick重试
		if reopenErr := s.roundRepo.ReopenRound(ctx, game.ID, round.RoundNumber); reopenErr != nil {
			s.logger.WithError(reopenErr).Error("回合回退open失败")
		}
		return nil, fmt.Errorf("收盘价获取失败，结算推迟: %w", err)
	}

	// 平盘按约定判down
	result := model.DirectionDown
	if endPrice > round.StartPrice {
		result = model.DirectionUp
	}

	alive, err := s.roster.AliveRoster(ctx, game.ID)
	if err != nil {
		return nil, fmt.Errorf("读取存活集合失败: %w", err)
	}
	preds, err := s.predictionRepo.ListByRound(ctx, game.ID, round.RoundNumber)
	if err != nil {
		return nil, fmt.Errorf("读取预测失败: %w", err)
	}
	predByWallet := make(map[string]*model.Prediction, len(preds))
	for _, p := range preds {
		predByWallet[p.WalletAddress] = p
	}

	// 淘汰规则：未预测或预测错误即淘汰；命中者存活
	var survivors, eliminated []string
	for _, p := range alive {
		pred, ok := predByWallet[p.WalletAddress]
		if ok && pred.Prediction != nil && *pred.Prediction == result {
			survivors = append(survivors, p.WalletAddress)
		} else {
			eliminated = append(eliminated, p.WalletAddress)
		}
	}

	// 同回合被淘汰者共享同一名次档
	placement := len(survivors) + 1
	if err := s.roster.playerRepo.MarkEliminated(ctx, game.ID, eliminated, round.RoundNumber, placement); err != nil {
		return nil, fmt.Errorf("淘汰落库失败: %w", err)
	}

	wipeout := len(survivors) == 0 && len(alive) > 0
	if wipeout {
		// 团灭：回合作废，恢复全部存活，立即重开新回合
		if err := s.roster.playerRepo.RestoreAlive(ctx, game.ID, eliminated); err != nil {
			return nil, fmt.Errorf("团灭恢复失败: %w", err)
		}
	}

	aliveAfter := len(survivors)
	if wipeout {
		aliveAfter = len(alive)
	}
	if err := s.markOutcomes(ctx, game.ID, round.RoundNumber, alive, predByWallet, result, wipeout); err != nil {
		return nil, err
	}
	if err := s.roundRepo.FinishResolve(ctx, game.ID, round.RoundNumber, endPrice, result, aliveAfter); err != nil {
		return nil, fmt.Errorf("回合结算落库失败: %w", err)
	}

	outcome := &RoundOutcome{
		RoundNumber: round.RoundNumber,
		Result:      result,
		Eliminated:  eliminated,
		AliveAfter:  aliveAfter,
		Wipeout:     wipeout,
	}
	if wipeout {
		outcome.Eliminated = nil
	}

	s.notifier.Notify(ctx, interfaces.GameEvent{
		Type:        "round_resolved",
		GameUUID:    game.GameUUID,
		RoundNumber: round.RoundNumber,
		Result:      result,
		Wallets:     outcome.Eliminated,
		Detail:      fmt.Sprintf("wipeout=%v alive_after=%d", wipeout, aliveAfter),
	})

	if !wipeout && len(survivors) == 1 {
		// 唯一幸存者即冠军，向生命周期控制器发终局信号
		if err := s.roster.playerRepo.MarkWinner(ctx, game.ID, survivors[0]); err != nil {
			return nil, fmt.Errorf("冠军落库失败: %w", err)
		}
		outcome.GameFinished = true
		outcome.WinnerWallet = survivors[0]
		s.logger.WithField("game", game.GameUUID).
			Infof("第%d回合结算=%s，冠军=%s", round.RoundNumber, result, survivors[0])
		return outcome, nil
	}

	// 多人存活（或团灭重赛）：推进回合号并立即开下一回合
	next := round.RoundNumber + 1
	if err := s.gameRepo.UpdateFields(ctx, game.ID, map[string]interface{}{"current_round": next}); err != nil {
		return nil, fmt.Errorf("推进回合号失败: %w", err)
	}
	game.CurrentRound = next
	if _, err := s.OpenRound(ctx, game, next); err != nil {
		// 开盘价获取失败不致命：TickRound下一tick补开
		s.logger.WithError(err).WithField("game", game.GameUUID).Warn("新回合开启推迟")
	}

	s.logger.WithField("game", game.GameUUID).
		Infof("第%d回合结算=%s，淘汰%d人，存活%d人（wipeout=%v）",
			round.RoundNumber, result, len(outcome.Eliminated), aliveAfter, wipeout)
	return outcome, nil
}

// markOutcomes 回写每名回合前存活玩家的预测标记；弃权者补一行空预测
func (s *RoundService) markOutcomes(
	ctx context.Context,
	gameID uint64,
	roundNumber int,
	alive []*model.Player,
	predByWallet map[string]*model.Prediction,
	result string,
	wipeout bool,
) error {
	for _, p := range alive {
		pred, ok := predByWallet[p.WalletAddress]
		correct := ok && pred.Prediction != nil && *pred.Prediction == result
		eliminated := !correct && !wipeout
		if ok {
			if err := s.predictionRepo.MarkOutcome(ctx, gameID, roundNumber, p.WalletAddress, correct, eliminated); err != nil {
				return fmt.Errorf("预测标记回写失败: %w", err)
			}
			continue
		}
		c, e := correct, eliminated
		if err := s.predictionRepo.CreateOutcome(ctx, &model.Prediction{
			PredictionUUID: uuid.NewString(),
			GameID:         gameID,
			RoundNumber:    roundNumber,
			WalletAddress:  p.WalletAddress,
			Correct:        &c,
			Eliminated:     &e,
		}); err != nil {
			return fmt.Errorf("弃权预测补行失败: %w", err)
		}
	}
	return nil
}
