package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"LdsEngine/internal/model"
	"LdsEngine/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RosterService 在册席位管理：报名窗口内的加入/退出与奖池记账
// 跨场互斥检查与入库之间存在检查-写入窗口，用每钱包互斥锁串行化；唯一索引为兜底
type RosterService struct {
	gameRepo   repository.GameRepository
	playerRepo repository.PlayerRepository
	logger     *logrus.Logger

	mu          sync.Mutex
	walletLocks map[string]*sync.Mutex
}

// NewRosterService 创建席位管理服务
func NewRosterService(gameRepo repository.GameRepository, playerRepo repository.PlayerRepository, logger *logrus.Logger) *RosterService {
	return &RosterService{
		gameRepo:    gameRepo,
		playerRepo:  playerRepo,
		logger:      logger,
		walletLocks: make(map[string]*sync.Mutex),
	}
}

// lockWallet 获取每钱包互斥锁（锁对象常驻，规模与钱包数同阶）
func (s *RosterService) lockWallet(wallet string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.walletLocks[wallet]
	if !ok {
		l = &sync.Mutex{}
		s.walletLocks[wallet] = l
	}
	return l
}

// Join 报名入场。免费席位占座但不计入奖池
func (s *RosterService) Join(ctx context.Context, gameUUID, wallet string, isFreeBet bool) (*model.Player, error) {
	game, err := s.gameRepo.GetByUUID(ctx, gameUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("查询游戏失败: %w", err)
	}
	if game.Status != model.GameStatusRegistering {
		return nil, ErrGameNotJoinable
	}

	// 串行化同一钱包的并发join：跨场互斥检查与入库不可交错
	l := s.lockWallet(wallet)
	l.Lock()
	defer l.Unlock()

	elsewhere, err := s.playerRepo.WalletAliveElsewhere(ctx, wallet, game.ID)
	if err != nil {
		return nil, fmt.Errorf("跨场互斥检查失败: %w", err)
	}
	if elsewhere {
		return nil, ErrCrossGameConflict
	}

	player := &model.Player{
		PlayerUUID:    uuid.NewString(),
		GameID:        game.ID,
		WalletAddress: wallet,
		Status:        model.PlayerStatusAlive,
		IsFreeBet:     isFreeBet,
		JoinedAt:      time.Now(),
	}
	poolDelta := game.EntryFee
	if isFreeBet {
		poolDelta = 0
	}

	if err := s.playerRepo.JoinGame(ctx, game.ID, player, poolDelta); err != nil {
		switch {
		case errors.Is(err, repository.ErrGameNotRegistering):
			return nil, ErrGameNotJoinable
		case errors.Is(err, repository.ErrDuplicateWallet):
			return nil, ErrDuplicateWallet
		default:
			return nil, fmt.Errorf("入场失败: %w", err)
		}
	}

	s.logger.WithField("game", gameUUID).WithField("wallet", wallet).
		Infof("玩家入场（free_bet=%v）", isFreeBet)
	return player, nil
}

// Leave 开赛前退出，席位删除并回退奖池；开赛后不可退出
func (s *RosterService) Leave(ctx context.Context, gameUUID, wallet string) error {
	game, err := s.gameRepo.GetByUUID(ctx, gameUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGameNotFound
		}
		return fmt.Errorf("查询游戏失败: %w", err)
	}
	if game.Status != model.GameStatusRegistering {
		return ErrGameNotJoinable
	}

	player, err := s.playerRepo.GetPlayer(ctx, game.ID, wallet)
	if err != nil {
		if errors.Is(err, repository.ErrPlayerNotFound) {
			return ErrPlayerNotFound
		}
		return fmt.Errorf("查询席位失败: %w", err)
	}
	poolDelta := game.EntryFee
	if player.IsFreeBet {
		poolDelta = 0
	}

	if err := s.playerRepo.LeaveGame(ctx, game.ID, wallet, poolDelta); err != nil {
		switch {
		case errors.Is(err, repository.ErrGameNotRegistering):
			return ErrGameNotJoinable
		case errors.Is(err, repository.ErrPlayerNotFound):
			return ErrPlayerNotFound
		default:
			return fmt.Errorf("退出失败: %w", err)
		}
	}

	s.logger.WithField("game", gameUUID).WithField("wallet", wallet).Info("玩家退出")
	return nil
}

// AliveRoster 当前存活集合：回合引擎据此决定谁可预测、谁可被淘汰
func (s *RosterService) AliveRoster(ctx context.Context, gameID uint64) ([]*model.Player, error) {
	return s.playerRepo.ListAlive(ctx, gameID)
}
