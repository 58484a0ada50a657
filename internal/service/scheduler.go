package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler 单驱动调度器：固定间隔调用生命周期Tick
// 所有时间驱动迁移（开赛/取消/回合结算）只经此goroutine，避免多定时器重复结算
type Scheduler struct {
	lifecycle *LifecycleService
	interval  time.Duration
	logger    *logrus.Logger
}

// NewScheduler 创建调度器
func NewScheduler(lifecycle *LifecycleService, interval time.Duration, logger *logrus.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{
		lifecycle: lifecycle,
		interval:  interval,
		logger:    logger,
	}
}

// Run 阻塞运行直到ctx取消。tick内错误只记日志，下一tick自然重试
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Infof("调度器启动，tick间隔=%s", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("调度器退出")
			return
		case <-ticker.C:
			if err := s.lifecycle.Tick(ctx); err != nil {
				s.logger.WithError(err).Warn("tick处理失败")
			}
		}
	}
}
