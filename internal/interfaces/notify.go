package interfaces

import "context"

// GameEvent 对外广播的游戏事件载荷
type GameEvent struct {
	Type        string   `json:"type"` // round_resolved/elimination/game_completed/game_cancelled
	GameUUID    string   `json:"game_uuid"`
	RoundNumber int      `json:"round_number,omitempty"`
	Result      string   `json:"result,omitempty"`
	Wallets     []string `json:"wallets,omitempty"`
	Detail      string   `json:"detail,omitempty"`
}

// Notifier 通知下游（fire-and-forget）：失败只记日志，绝不回滚游戏状态
type Notifier interface {
	Notify(ctx context.Context, event GameEvent)
}
