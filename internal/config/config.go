package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`   // 服务器配置
	Postgres PostgresConfig `mapstructure:"postgres"` // PostgreSQL配置
	Game     GameConfig     `mapstructure:"game"`     // LDS淘汰赛配置
	Oracle   OracleConfig   `mapstructure:"oracle"`   // 价格预言机配置
	Notify   NotifyConfig   `mapstructure:"notify"`   // 通知Webhook配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// PostgresConfig PostgreSQL数据库配置
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN（URL形式）
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
}

// GameConfig LDS淘汰赛核心参数
type GameConfig struct {
	Asset            string        `mapstructure:"asset"`             // 预测标的资产（如 SOL/USD）
	EntryFee         int64         `mapstructure:"entry_fee"`         // 默认入场费（最小货币单位）
	MinEntryFee      int64         `mapstructure:"min_entry_fee"`     // 入场费下限
	MinPlayers       int           `mapstructure:"min_players"`       // 开赛最少人数（不足则取消）
	PredictionWindow time.Duration `mapstructure:"prediction_window"` // 每轮预测窗口时长
	TickInterval     time.Duration `mapstructure:"tick_interval"`     // 调度器轮询间隔
	ScheduleGap      time.Duration `mapstructure:"schedule_gap"`      // 终局后下一场的间隔
	RakeBps          int64         `mapstructure:"rake_bps"`          // 平台抽成（基点，500=5%）
	PayoutTable      map[int]int64 `mapstructure:"payout_table"`      // 名次→可分配额基点份额
}

// OracleConfig 价格预言机配置
type OracleConfig struct {
	BaseURL    string  `mapstructure:"base_url"`    // 价格接口基础地址
	Timeout    int     `mapstructure:"timeout"`     // 请求超时（秒）
	RetryCount int     `mapstructure:"retry_count"` // 单次tick内重试次数
	RateLimit  float64 `mapstructure:"rate_limit"`  // 每秒请求上限
	Proxy      string  `mapstructure:"proxy"`       // 代理地址
}

// NotifyConfig 通知Webhook配置（留空则使用空实现）
type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url"` // 回调地址
	Timeout    int    `mapstructure:"timeout"`     // 请求超时（秒）
	Proxy      string `mapstructure:"proxy"`       // 代理地址
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	viper.SetTypeByDefaultValue(true)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)
	ApplyDefaults(&cfg)
	if err := ValidateGame(&cfg.Game); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("ORACLE_BASE_URL"); v != "" {
		cfg.Oracle.BaseURL = v
	}
	if v := os.Getenv("ORACLE_PROXY"); v != "" {
		cfg.Oracle.Proxy = v
	}
	if v := os.Getenv("NOTIFY_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}
}

// ApplyDefaults 未配置项兜底（抽成与最低入场费沿用链上程序默认值：500bps / 0.01 SOL）
func ApplyDefaults(cfg *Config) {
	if cfg.Game.MinPlayers == 0 {
		cfg.Game.MinPlayers = 2
	}
	if cfg.Game.PredictionWindow == 0 {
		cfg.Game.PredictionWindow = 30 * time.Second
	}
	if cfg.Game.TickInterval == 0 {
		cfg.Game.TickInterval = time.Second
	}
	if cfg.Game.ScheduleGap == 0 {
		cfg.Game.ScheduleGap = 5 * time.Minute
	}
	if cfg.Game.RakeBps == 0 {
		cfg.Game.RakeBps = 500
	}
	if cfg.Game.MinEntryFee == 0 {
		cfg.Game.MinEntryFee = 10_000_000
	}
	if cfg.Game.EntryFee == 0 {
		cfg.Game.EntryFee = 100_000_000
	}
	if len(cfg.Game.PayoutTable) == 0 {
		// 默认赢家通吃
		cfg.Game.PayoutTable = map[int]int64{1: 10000}
	}
	if cfg.Oracle.RetryCount == 0 {
		cfg.Oracle.RetryCount = 3
	}
	if cfg.Oracle.RateLimit == 0 {
		cfg.Oracle.RateLimit = 5
	}
}

// ValidateGame 校验淘汰赛参数：份额表需名次连续、随名次单调不增、总和不超过10000基点
func ValidateGame(g *GameConfig) error {
	if g.RakeBps < 0 || g.RakeBps >= 10000 {
		return fmt.Errorf("rake_bps非法: %d", g.RakeBps)
	}
	var total int64
	prev := int64(-1)
	for placement := 1; placement <= len(g.PayoutTable); placement++ {
		share, ok := g.PayoutTable[placement]
		if !ok {
			return fmt.Errorf("payout_table名次不连续: 缺少第%d名", placement)
		}
		if share < 0 {
			return fmt.Errorf("payout_table份额非法: 第%d名=%d", placement, share)
		}
		if prev >= 0 && share > prev {
			return fmt.Errorf("payout_table份额须随名次单调不增: 第%d名=%d", placement, share)
		}
		prev = share
		total += share
	}
	if total > 10000 {
		return fmt.Errorf("payout_table份额总和超过10000基点: %d", total)
	}
	return nil
}
