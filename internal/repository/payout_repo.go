package repository

import (
	"context"
	"time"

	"LdsEngine/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FailedPayoutRepository 派奖补偿队列持久化
// 记录生命周期 pending → retrying → recovered/failed_permanent，由外部派奖worker消费
type FailedPayoutRepository interface {
	// Enqueue 幂等登记：同一 (game_id, wallet, payout_type) 重复入队为no-op
	Enqueue(ctx context.Context, record *model.FailedPayout) error
	ListPending(ctx context.Context, limit int) ([]*model.FailedPayout, error)
	ListByWallet(ctx context.Context, wallet string) ([]*model.FailedPayout, error)
	ListByGame(ctx context.Context, gameID uint64) ([]*model.FailedPayout, error)
	MarkRetrying(ctx context.Context, payoutUUID string) error
	MarkRecovered(ctx context.Context, payoutUUID string) error
	MarkFailedPermanent(ctx context.Context, payoutUUID string) error
}

type failedPayoutRepository struct {
	db *gorm.DB
}

// NewFailedPayoutRepository 创建派奖补偿队列仓储
func NewFailedPayoutRepository(db *gorm.DB) FailedPayoutRepository {
	return &failedPayoutRepository{db: db}
}

func (r *failedPayoutRepository) Enqueue(ctx context.Context, record *model.FailedPayout) error {
	// uk_payout_obligation冲突即已登记过：结算重试不得产生重复派奖义务
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_id"}, {Name: "wallet"}, {Name: "payout_type"}},
		DoNothing: true,
	}).Create(record).Error
}

func (r *failedPayoutRepository) ListPending(ctx context.Context, limit int) ([]*model.FailedPayout, error) {
	var records []*model.FailedPayout
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{model.PayoutStatusPending, model.PayoutStatusRetrying}).
		Order("created_at ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *failedPayoutRepository) ListByWallet(ctx context.Context, wallet string) ([]*model.FailedPayout, error) {
	var records []*model.FailedPayout
	err := r.db.WithContext(ctx).
		Where("wallet = ?", wallet).
		Order("created_at DESC").
		Find(&records).Error
	return records, err
}

func (r *failedPayoutRepository) ListByGame(ctx context.Context, gameID uint64) ([]*model.FailedPayout, error) {
	var records []*model.FailedPayout
	err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}

func (r *failedPayoutRepository) MarkRetrying(ctx context.Context, payoutUUID string) error {
	return r.db.WithContext(ctx).Model(&model.FailedPayout{}).
		Where("payout_uuid = ? AND status IN ?", payoutUUID,
			[]string{model.PayoutStatusPending, model.PayoutStatusRetrying}).
		Updates(map[string]interface{}{
			"status":      model.PayoutStatusRetrying,
			"retry_count": gorm.Expr("retry_count + 1"),
			"updated_at":  time.Now(),
		}).Error
}

func (r *failedPayoutRepository) MarkRecovered(ctx context.Context, payoutUUID string) error {
	return r.db.WithContext(ctx).Model(&model.FailedPayout{}).
		Where("payout_uuid = ?", payoutUUID).
		Updates(map[string]interface{}{
			"status":     model.PayoutStatusRecovered,
			"updated_at": time.Now(),
		}).Error
}

func (r *failedPayoutRepository) MarkFailedPermanent(ctx context.Context, payoutUUID string) error {
	return r.db.WithContext(ctx).Model(&model.FailedPayout{}).
		Where("payout_uuid = ?", payoutUUID).
		Updates(map[string]interface{}{
			"status":     model.PayoutStatusFailedPermanent,
			"updated_at": time.Now(),
		}).Error
}
