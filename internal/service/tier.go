package service

import "LdsEngine/internal/interfaces"

// 段位阈值（1v1对战子系统的展示分段）
const (
	tierProtectedBattles = 10
	tierBronzeCeiling    = 1100
	tierSilverCeiling    = 1300
	tierGoldCeiling      = 1500
	tierPlatinumCeiling  = 1700
)

// EloTierService 按ELO分与场次数映射段位，仅用于展示与匹配分组
type EloTierService struct{}

// NewEloTierService 创建段位映射服务
func NewEloTierService() interfaces.TierProvider { return &EloTierService{} }

// Tier 场次不足处于保护期，其余按分段
func (s *EloTierService) Tier(rating int, battleCount int) string {
	if battleCount < tierProtectedBattles {
		return "protected"
	}
	switch {
	case rating < tierBronzeCeiling:
		return "bronze"
	case rating < tierSilverCeiling:
		return "silver"
	case rating < tierGoldCeiling:
		return "gold"
	case rating < tierPlatinumCeiling:
		return "platinum"
	default:
		return "diamond"
	}
}
