package repository

import (
	"context"
	"time"

	"LdsEngine/internal/model"

	"gorm.io/gorm"
)

// GameRepository 游戏聚合持久化
// 单活跃场次的不变量由 GetActiveGame + 创建前检查保证，数据库status索引为兜底
type GameRepository interface {
	CreateGame(ctx context.Context, game *model.Game) error
	GetByUUID(ctx context.Context, gameUUID string) (*model.Game, error)
	GetByID(ctx context.Context, gameID uint64) (*model.Game, error)
	// GetActiveGame 返回唯一的非终态游戏；不存在时返回 gorm.ErrRecordNotFound
	GetActiveGame(ctx context.Context) (*model.Game, error)
	// ListUnsettled 已completed但settled_at为空的场次（上次结算中途失败，待补结算）
	ListUnsettled(ctx context.Context) ([]*model.Game, error)
	// TransitionStatus 守卫式状态迁移：仅当当前状态为from时生效，失败返回 ErrStaleTransition
	TransitionStatus(ctx context.Context, gameID uint64, from, to string, extra map[string]interface{}) error
	UpdateFields(ctx context.Context, gameID uint64, fields map[string]interface{}) error
	// MarkSettled 结算幂等守卫：仅首个调用方能把 settled_at 从空置为当前时间
	MarkSettled(ctx context.Context, gameID uint64, rake int64) error
}

type gameRepository struct {
	db *gorm.DB
}

// NewGameRepository 创建游戏仓储
func NewGameRepository(db *gorm.DB) GameRepository {
	return &gameRepository{db: db}
}

func (r *gameRepository) CreateGame(ctx context.Context, game *model.Game) error {
	if err := r.db.WithContext(ctx).Create(game).Error; err != nil {
		// uk_games_active兜底：并发建场输掉竞争时返回可识别哨兵而非裸DB错误
		if isUniqueViolation(err) {
			return ErrDuplicateActiveGame
		}
		return err
	}
	return nil
}

func (r *gameRepository) GetByUUID(ctx context.Context, gameUUID string) (*model.Game, error) {
	var game model.Game
	if err := r.db.WithContext(ctx).Where("game_uuid = ?", gameUUID).First(&game).Error; err != nil {
		return nil, err
	}
	return &game, nil
}

func (r *gameRepository) GetByID(ctx context.Context, gameID uint64) (*model.Game, error) {
	var game model.Game
	if err := r.db.WithContext(ctx).Where("id = ?", gameID).First(&game).Error; err != nil {
		return nil, err
	}
	return &game, nil
}

func (r *gameRepository) GetActiveGame(ctx context.Context) (*model.Game, error) {
	var game model.Game
	if err := r.db.WithContext(ctx).
		Where("status IN ?", model.NonTerminalStatuses).
		Order("id ASC").
		First(&game).Error; err != nil {
		return nil, err
	}
	return &game, nil
}

func (r *gameRepository) ListUnsettled(ctx context.Context) ([]*model.Game, error) {
	var games []*model.Game
	err := r.db.WithContext(ctx).
		Where("status = ? AND settled_at IS NULL", model.GameStatusCompleted).
		Order("id ASC").
		Find(&games).Error
	return games, err
}

func (r *gameRepository) TransitionStatus(ctx context.Context, gameID uint64, from, to string, extra map[string]interface{}) error {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).Model(&model.Game{}).
		Where("id = ? AND status = ?", gameID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (r *gameRepository) MarkSettled(ctx context.Context, gameID uint64, rake int64) error {
	res := r.db.WithContext(ctx).Model(&model.Game{}).
		Where("id = ? AND settled_at IS NULL", gameID).
		Updates(map[string]interface{}{
			"rake":       rake,
			"settled_at": time.Now(),
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

func (r *gameRepository) UpdateFields(ctx context.Context, gameID uint64, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	return r.db.WithContext(ctx).Model(&model.Game{}).
		Where("id = ?", gameID).
		Updates(fields).Error
}
