package repository

import (
	"context"
	"errors"
	"time"

	"LdsEngine/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoundRepository 回合持久化
type RoundRepository interface {
	CreateRound(ctx context.Context, round *model.Round) error
	GetRound(ctx context.Context, gameID uint64, roundNumber int) (*model.Round, error)
	ListByGame(ctx context.Context, gameID uint64) ([]*model.Round, error)
	// BeginResolving open→resolving 守卫迁移，至多一个调用方胜出（回合至多结算一次）
	BeginResolving(ctx context.Context, gameID uint64, roundNumber int) error
	// FinishResolve resolving→resolved，写入收盘价、结果与回合后存活人数
	FinishResolve(ctx context.Context, gameID uint64, roundNumber int, endPrice float64, result string, aliveAfter int) error
	// ReopenRound resolving→open，预言机不可用时回退，下一tick重试（结算延迟而非跳过）
	ReopenRound(ctx context.Context, gameID uint64, roundNumber int) error
}

// PredictionRepository 预测持久化
type PredictionRepository interface {
	// Upsert 截止前幂等覆盖：同一 (game_id, round_number, wallet_address) 仅一行
	// 与回合行锁同事务：回合一旦离开open即返回 ErrRoundNotOpen，迟到预测不落库
	Upsert(ctx context.Context, p *model.Prediction) error
	ListByRound(ctx context.Context, gameID uint64, roundNumber int) ([]*model.Prediction, error)
	CountByRound(ctx context.Context, gameID uint64, roundNumber int) (int64, error)
	// MarkOutcome 结算时回写命中与淘汰标记；弃权玩家没有预测行，由 CreateOutcome 补齐
	MarkOutcome(ctx context.Context, gameID uint64, roundNumber int, wallet string, correct, eliminated bool) error
	CreateOutcome(ctx context.Context, p *model.Prediction) error
}

type roundRepository struct {
	db *gorm.DB
}

// NewRoundRepository 创建回合仓储
func NewRoundRepository(db *gorm.DB) RoundRepository {
	return &roundRepository{db: db}
}

// NewPredictionRepository 创建预测仓储
func NewPredictionRepository(db *gorm.DB) PredictionRepository {
	return &roundRepository{db: db}
}

func (r *roundRepository) CreateRound(ctx context.Context, round *model.Round) error {
	return r.db.WithContext(ctx).Create(round).Error
}

func (r *roundRepository) GetRound(ctx context.Context, gameID uint64, roundNumber int) (*model.Round, error) {
	var round model.Round
	err := r.db.WithContext(ctx).
		Where("game_id = ? AND round_number = ?", gameID, roundNumber).
		First(&round).Error
	if err != nil {
		return nil, err
	}
	return &round, nil
}

func (r *roundRepository) ListByGame(ctx context.Context, gameID uint64) ([]*model.Round, error) {
	var rounds []*model.Round
	err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("round_number ASC").
		Find(&rounds).Error
	return rounds, err
}

func (r *roundRepository) BeginResolving(ctx context.Context, gameID uint64, roundNumber int) error {
	res := r.db.WithContext(ctx).Model(&model.Round{}).
		Where("game_id = ? AND round_number = ? AND status = ?", gameID, roundNumber, model.RoundStatusOpen).
		Update("status", model.RoundStatusResolving)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (r *roundRepository) FinishResolve(ctx context.Context, gameID uint64, roundNumber int, endPrice float64, result string, aliveAfter int) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&model.Round{}).
		Where("game_id = ? AND round_number = ? AND status = ?", gameID, roundNumber, model.RoundStatusResolving).
		Updates(map[string]interface{}{
			"status":              model.RoundStatusResolved,
			"end_price":           endPrice,
			"result":              result,
			"players_alive_after": aliveAfter,
			"resolved_at":         now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (r *roundRepository) ReopenRound(ctx context.Context, gameID uint64, roundNumber int) error {
	res := r.db.WithContext(ctx).Model(&model.Round{}).
		Where("game_id = ? AND round_number = ? AND status = ?", gameID, roundNumber, model.RoundStatusResolving).
		Update("status", model.RoundStatusOpen)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (r *roundRepository) Upsert(ctx context.Context, p *model.Prediction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 行锁回合：与BeginResolving的守卫UPDATE串行化，
		// 状态检查与入库不可交错，resolving后预测不可能落库
		var round model.Round
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("game_id = ? AND round_number = ?", p.GameID, p.RoundNumber).
			First(&round).Error; err != nil {
			return err
		}
		if round.Status != model.RoundStatusOpen {
			return ErrRoundNotOpen
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "game_id"}, {Name: "round_number"}, {Name: "wallet_address"}},
			DoUpdates: clause.AssignmentColumns([]string{"prediction", "predicted_at"}),
		}).Create(p).Error
	})
}

func (r *roundRepository) ListByRound(ctx context.Context, gameID uint64, roundNumber int) ([]*model.Prediction, error) {
	var preds []*model.Prediction
	err := r.db.WithContext(ctx).
		Where("game_id = ? AND round_number = ?", gameID, roundNumber).
		Find(&preds).Error
	return preds, err
}

func (r *roundRepository) CountByRound(ctx context.Context, gameID uint64, roundNumber int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Prediction{}).
		Where("game_id = ? AND round_number = ? AND prediction IS NOT NULL", gameID, roundNumber).
		Count(&count).Error
	return count, err
}

func (r *roundRepository) MarkOutcome(ctx context.Context, gameID uint64, roundNumber int, wallet string, correct, eliminated bool) error {
	res := r.db.WithContext(ctx).Model(&model.Prediction{}).
		Where("game_id = ? AND round_number = ? AND wallet_address = ?", gameID, roundNumber, wallet).
		Updates(map[string]interface{}{
			"correct":    correct,
			"eliminated": eliminated,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("预测行不存在，无法回写结算标记")
	}
	return nil
}

func (r *roundRepository) CreateOutcome(ctx context.Context, p *model.Prediction) error {
	return r.db.WithContext(ctx).Create(p).Error
}
