package interfaces

import (
	"context"
	"time"
)

// PriceOracle 外部价格预言机：开盘与结算时同步取参考价
// 不可用视为可重试故障，回合结算被延迟而非跳过
type PriceOracle interface {
	GetPrice(ctx context.Context, asset string, at time.Time) (float64, error)
}
