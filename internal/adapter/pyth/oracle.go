package pyth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"LdsEngine/internal/config"
	"LdsEngine/internal/interfaces"
	"LdsEngine/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// priceResponse 价格接口返回体
type priceResponse struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// Oracle REST价格预言机适配器（Pyth风格的价格服务）
// 带限流与单tick内重试；持续失败由调用方（回合引擎）延迟结算，下一tick再试
type Oracle struct {
	client     *http.Client
	baseURL    string
	retryCount int
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

// NewOracle 创建价格预言机适配器
func NewOracle(cfg *config.OracleConfig, logger *logrus.Logger) interfaces.PriceOracle {
	client := httpclient.New(httpclient.Options{
		Timeout: time.Duration(cfg.Timeout) * time.Second,
		Proxy:   cfg.Proxy,
	}, logger)
	return &Oracle{
		client:     client,
		baseURL:    cfg.BaseURL,
		retryCount: cfg.RetryCount,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		logger:     logger,
	}
}

// GetPrice 取指定资产在指定时刻的参考价，带退避重试
func (o *Oracle) GetPrice(ctx context.Context, asset string, at time.Time) (float64, error) {
	var lastErr error
	for attempt := 0; attempt <= o.retryCount; attempt++ {
		if attempt > 0 {
			// 退避：500ms、1s、2s…
			wait := 500 * time.Millisecond << (attempt - 1)
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := o.limiter.Wait(ctx); err != nil {
			return 0, err
		}

		price, err := o.fetch(ctx, asset, at)
		if err == nil {
			return price, nil
		}
		lastErr = err
		o.logger.WithError(err).WithField("asset", asset).Warn("拉取参考价失败")
	}
	return 0, fmt.Errorf("预言机不可用（重试%d次）: %w", o.retryCount, lastErr)
}

func (o *Oracle) fetch(ctx context.Context, asset string, at time.Time) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/v1/price?symbol=%s&at=%s",
		o.baseURL, url.QueryEscape(asset), strconv.FormatInt(at.Unix(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("价格接口返回异常状态码: %d", resp.StatusCode)
	}

	var body priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("解析价格返回体失败: %w", err)
	}
	if body.Price <= 0 {
		return 0, fmt.Errorf("价格非法: %f", body.Price)
	}
	return body.Price, nil
}
