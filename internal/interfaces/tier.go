package interfaces

// TierProvider 1v1对战子系统的段位映射，仅用于排行榜展示与匹配分组
// 对LDS正确性无影响
type TierProvider interface {
	Tier(rating int, battleCount int) string
}
