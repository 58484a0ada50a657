package service

import "errors"

// 校验类与并发类错误哨兵：handler据此返回可区分的4xx，调用方据此决定重试或放弃
var (
	ErrInvalidSchedule        = errors.New("计划开赛时间必须严格晚于当前时间")
	ErrEntryFeeTooLow         = errors.New("入场费低于平台下限")
	ErrActiveGameExists       = errors.New("已存在未终局的游戏")
	ErrGameNotFound           = errors.New("游戏不存在")
	ErrGameNotJoinable        = errors.New("游戏不在报名窗口，禁止加入或退出")
	ErrGameNotCancelable      = errors.New("游戏已开赛，禁止取消")
	ErrDuplicateWallet        = errors.New("该钱包已在本场游戏中")
	ErrCrossGameConflict      = errors.New("该钱包在另一场未终局游戏中存活")
	ErrPlayerNotFound         = errors.New("该钱包不在本场游戏中")
	ErrOutOfOrderRound        = errors.New("回合乱序：上一回合未结算或回合号不匹配")
	ErrRoundNotFound          = errors.New("回合不存在")
	ErrPredictionWindowClosed = errors.New("预测窗口已关闭")
	ErrInvalidDirection       = errors.New("预测方向非法，仅支持up/down")
	ErrNotAlive               = errors.New("该钱包在本场游戏中已非存活状态")
	ErrAlreadySettled         = errors.New("该游戏已结算")
	ErrInvalidLeaderboard     = errors.New("排行榜维度非法，仅支持payout/wins")
)
