package model

import (
	"time"

	"gorm.io/datatypes"
)

// 派奖补偿记录状态枚举：pending → retrying → recovered/failed_permanent
const (
	PayoutStatusPending         = "pending"
	PayoutStatusRetrying        = "retrying"
	PayoutStatusRecovered       = "recovered"
	PayoutStatusFailedPermanent = "failed_permanent"
)

// 派奖类型枚举
const (
	PayoutTypePrize  = "prize"  // 奖金
	PayoutTypeRefund = "refund" // 取消场次退款
)

// FailedPayout 对应 failed_payouts 表，链外转账补偿队列
// 结算引擎只登记义务，实际转账由外部派奖worker消费；记录永不丢弃
// 不变量：(game_id, wallet, payout_type) 唯一，结算重试不会产生重复义务
type FailedPayout struct {
	ID         uint64         `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	PayoutUUID string         `gorm:"column:payout_uuid;type:varchar(64);uniqueIndex;not null;comment:全局唯一ID"`
	GameType   string         `gorm:"column:game_type;type:varchar(16);not null;comment:游戏类型：lds/duel"`
	GameID     uint64         `gorm:"column:game_id;type:bigint;not null;uniqueIndex:uk_payout_obligation;index;comment:所属游戏ID"`
	Wallet     string         `gorm:"column:wallet;type:varchar(64);not null;uniqueIndex:uk_payout_obligation;index;comment:收款钱包地址"`
	Amount     int64          `gorm:"column:amount;type:bigint;not null;comment:金额（最小货币单位）"`
	PayoutType string         `gorm:"column:payout_type;type:varchar(16);not null;uniqueIndex:uk_payout_obligation;comment:类型：prize/refund"`
	Reason     string         `gorm:"column:reason;type:varchar(128);comment:入队原因"`
	Status     string         `gorm:"column:status;type:varchar(24);default:pending;index;comment:状态：pending/retrying/recovered/failed_permanent"`
	RetryCount int            `gorm:"column:retry_count;type:int;default:0;comment:已重试次数"`
	Metadata   datatypes.JSON `gorm:"column:metadata;type:jsonb;comment:附加信息（名次、回合等）"`
	CreatedAt  time.Time      `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

func (FailedPayout) TableName() string { return "failed_payouts" }
