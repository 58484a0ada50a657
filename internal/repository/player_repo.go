package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"LdsEngine/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlayerRepository 在册席位持久化
// JoinGame/LeaveGame 为事务方法：席位增删与奖池、人数计数在同一事务内完成
type PlayerRepository interface {
	// JoinGame 锁定游戏行后插入席位并累加计数；poolDelta为入场费（免费席位传0）
	JoinGame(ctx context.Context, gameID uint64, player *model.Player, poolDelta int64) error
	// LeaveGame 锁定游戏行后删除席位并回减计数
	LeaveGame(ctx context.Context, gameID uint64, wallet string, poolDelta int64) error
	GetPlayer(ctx context.Context, gameID uint64, wallet string) (*model.Player, error)
	ListByGame(ctx context.Context, gameID uint64) ([]*model.Player, error)
	ListAlive(ctx context.Context, gameID uint64) ([]*model.Player, error)
	// WalletAliveElsewhere 该钱包是否在其他非终态游戏中存活（跨场互斥检查）
	WalletAliveElsewhere(ctx context.Context, wallet string, excludeGameID uint64) (bool, error)
	MarkEliminated(ctx context.Context, gameID uint64, wallets []string, roundNumber int, placement int) error
	MarkWinner(ctx context.Context, gameID uint64, wallet string) error
	// RestoreAlive 团灭回滚：将本回合误淘汰的席位恢复为alive
	RestoreAlive(ctx context.Context, gameID uint64, wallets []string) error
	SetPayout(ctx context.Context, gameID uint64, wallet string, amount int64) error
}

type playerRepository struct {
	db *gorm.DB
}

// NewPlayerRepository 创建席位仓储
func NewPlayerRepository(db *gorm.DB) PlayerRepository {
	return &playerRepository{db: db}
}

func (r *playerRepository) JoinGame(ctx context.Context, gameID uint64, player *model.Player, poolDelta int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 行锁游戏，防止与开赛tick及其他join并发丢更新
		var game model.Game
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", gameID).First(&game).Error; err != nil {
			return err
		}
		if game.Status != model.GameStatusRegistering {
			return ErrGameNotRegistering
		}

		// 2. 插入席位，(game_id, wallet_address) 唯一索引为重复加入的兜底
		if err := tx.Create(player).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateWallet
			}
			return err
		}

		// 3. 同事务内累加人数与奖池
		return tx.Model(&model.Game{}).Where("id = ?", gameID).
			Updates(map[string]interface{}{
				"player_count": gorm.Expr("player_count + 1"),
				"prize_pool":   gorm.Expr("prize_pool + ?", poolDelta),
				"updated_at":   time.Now(),
			}).Error
	})
}

func (r *playerRepository) LeaveGame(ctx context.Context, gameID uint64, wallet string, poolDelta int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var game model.Game
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", gameID).First(&game).Error; err != nil {
			return err
		}
		if game.Status != model.GameStatusRegistering {
			return ErrGameNotRegistering
		}

		res := tx.Where("game_id = ? AND wallet_address = ?", gameID, wallet).
			Delete(&model.Player{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPlayerNotFound
		}

		return tx.Model(&model.Game{}).Where("id = ?", gameID).
			Updates(map[string]interface{}{
				"player_count": gorm.Expr("player_count - 1"),
				"prize_pool":   gorm.Expr("prize_pool - ?", poolDelta),
				"updated_at":   time.Now(),
			}).Error
	})
}

func (r *playerRepository) GetPlayer(ctx context.Context, gameID uint64, wallet string) (*model.Player, error) {
	var player model.Player
	err := r.db.WithContext(ctx).
		Where("game_id = ? AND wallet_address = ?", gameID, wallet).
		First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &player, nil
}

func (r *playerRepository) ListByGame(ctx context.Context, gameID uint64) ([]*model.Player, error) {
	var players []*model.Player
	err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("joined_at ASC").
		Find(&players).Error
	return players, err
}

func (r *playerRepository) ListAlive(ctx context.Context, gameID uint64) ([]*model.Player, error) {
	var players []*model.Player
	err := r.db.WithContext(ctx).
		Where("game_id = ? AND status = ?", gameID, model.PlayerStatusAlive).
		Order("joined_at ASC").
		Find(&players).Error
	return players, err
}

func (r *playerRepository) WalletAliveElsewhere(ctx context.Context, wallet string, excludeGameID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Player{}).
		Joins("JOIN games ON games.id = players.game_id").
		Where("players.wallet_address = ? AND players.status = ?", wallet, model.PlayerStatusAlive).
		Where("players.game_id <> ?", excludeGameID).
		Where("games.status IN ?", model.NonTerminalStatuses).
		Count(&count).Error
	return count > 0, err
}

func (r *playerRepository) MarkEliminated(ctx context.Context, gameID uint64, wallets []string, roundNumber int, placement int) error {
	if len(wallets) == 0 {
		return nil
	}
	// 状态迁移单向：仅alive可被淘汰
	return r.db.WithContext(ctx).Model(&model.Player{}).
		Where("game_id = ? AND wallet_address IN ? AND status = ?", gameID, wallets, model.PlayerStatusAlive).
		Updates(map[string]interface{}{
			"status":              model.PlayerStatusEliminated,
			"eliminated_at_round": roundNumber,
			"placement":           placement,
			"updated_at":          time.Now(),
		}).Error
}

func (r *playerRepository) MarkWinner(ctx context.Context, gameID uint64, wallet string) error {
	res := r.db.WithContext(ctx).Model(&model.Player{}).
		Where("game_id = ? AND wallet_address = ? AND status = ?", gameID, wallet, model.PlayerStatusAlive).
		Updates(map[string]interface{}{
			"status":     model.PlayerStatusWinner,
			"placement":  1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (r *playerRepository) RestoreAlive(ctx context.Context, gameID uint64, wallets []string) error {
	if len(wallets) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.Player{}).
		Where("game_id = ? AND wallet_address IN ?", gameID, wallets).
		Updates(map[string]interface{}{
			"status":              model.PlayerStatusAlive,
			"eliminated_at_round": nil,
			"placement":           nil,
			"updated_at":          time.Now(),
		}).Error
}

func (r *playerRepository) SetPayout(ctx context.Context, gameID uint64, wallet string, amount int64) error {
	return r.db.WithContext(ctx).Model(&model.Player{}).
		Where("game_id = ? AND wallet_address = ?", gameID, wallet).
		Updates(map[string]interface{}{
			"payout_amount": amount,
			"updated_at":    time.Now(),
		}).Error
}

// isUniqueViolation 判断是否唯一约束冲突（postgres 23505）
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "uk_game_wallet")
}
