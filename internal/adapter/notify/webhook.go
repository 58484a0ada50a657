package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"LdsEngine/internal/config"
	"LdsEngine/internal/interfaces"
	"LdsEngine/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

// WebhookNotifier 向下游回调地址推送游戏事件
// fire-and-forget：任何失败只记日志，绝不影响游戏状态迁移
type WebhookNotifier struct {
	client     *http.Client
	webhookURL string
	logger     *logrus.Logger
}

// NewWebhookNotifier 创建Webhook通知器
func NewWebhookNotifier(cfg *config.NotifyConfig, logger *logrus.Logger) interfaces.Notifier {
	client := httpclient.New(httpclient.Options{
		Timeout: time.Duration(cfg.Timeout) * time.Second,
		Proxy:   cfg.Proxy,
	}, logger)
	return &WebhookNotifier{
		client:     client,
		webhookURL: cfg.WebhookURL,
		logger:     logger,
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, event interfaces.GameEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.WithError(err).Warn("通知载荷序列化失败")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		n.logger.WithError(err).Warn("通知请求构建失败")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.WithError(err).WithField("type", event.Type).Warn("通知推送失败")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.logger.WithField("type", event.Type).WithField("status", resp.StatusCode).Warn("通知端返回异常状态码")
	}
}

// NoopNotifier 空实现（未配置webhook_url时使用）
type NoopNotifier struct{}

// NewNoopNotifier 创建空通知器
func NewNoopNotifier() interfaces.Notifier { return &NoopNotifier{} }

func (n *NoopNotifier) Notify(ctx context.Context, event interfaces.GameEvent) {}
