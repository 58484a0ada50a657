package repository

import "errors"

// 仓储层哨兵错误：service层负责翻译为对外错误分类
var (
	ErrGameNotRegistering  = errors.New("游戏不在registering状态")
	ErrDuplicateWallet     = errors.New("钱包与游戏的唯一约束冲突")
	ErrPlayerNotFound      = errors.New("席位不存在")
	ErrStaleTransition     = errors.New("状态迁移未命中：已被并发调用抢占")
	ErrDuplicateActiveGame = errors.New("单活跃场次唯一索引冲突：已存在非终态游戏")
	ErrRoundNotOpen        = errors.New("回合已不在open状态")
)
