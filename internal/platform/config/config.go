package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Cfg 是一个全局变量，用于存储所有应用程序的配置
var Cfg *Config

// Config 结构体定义了应用程序的所有配置项
// 它与 config.yaml 文件的结构完全对应
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Lottery  LotteryConfig  `mapstructure:"lottery"`
}

// ServerConfig 定义了服务器相关的配置
type ServerConfig struct {
	Mode    string     `mapstructure:"mode"`
	Address string     `mapstructure:"address"`
	Cors    CorsConfig `mapstructure:"cors"`
}

// CorsConfig 定义了CORS相关的配置
type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// DatabaseConfig 定义了数据库和缓存相关的配置
type DatabaseConfig struct {
	// Driver 可以是 "postgres" 或 "sqlite"（本地开发与测试）
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Sqlite   SqliteConfig   `mapstructure:"sqlite"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig 定义了PostgreSQL的连接配置
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// SqliteConfig 定义了SQLite的文件配置
type SqliteConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig 定义了Redis的配置
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PaymentConfig 定义了支付网关相关的配置
type PaymentConfig struct {
	// Provider 为 "dev" 时使用内置的自动成功网关，方便本地联调
	Provider string `mapstructure:"provider"`
	Currency string `mapstructure:"currency"`
	// WebhookSecret 用于校验支付网关回调的HMAC签名，留空时启动随机生成
	WebhookSecret string `mapstructure:"webhookSecret"`
}

// LotteryConfig 定义了抽奖与售卖相关的业务配置
type LotteryConfig struct {
	// MinLayerPrice 是每层定价的下限（单位：分）
	MinLayerPrice int64 `mapstructure:"minLayerPrice"`
	// DrawLockTTL 是开奖互斥锁的过期时间，防止持有者崩溃后永久锁死
	DrawLockTTL time.Duration `mapstructure:"drawLockTTL"`
	// SweepInterval 是自动开奖后台任务扫描到期活动的周期
	SweepInterval time.Duration `mapstructure:"sweepInterval"`
}

// LoadConfig 函数负责查找、加载和解析配置文件
// 它会在指定的路径中查找名为 config.yaml 的文件
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// 允许通过环境变量覆盖配置，例如 DATABASE_REDIS_ADDRESS=...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite.path", "lottery.db")
	v.SetDefault("payment.provider", "dev")
	v.SetDefault("payment.currency", "CNY")
	v.SetDefault("lottery.minLayerPrice", 100)
	v.SetDefault("lottery.drawLockTTL", 2*time.Minute)
	v.SetDefault("lottery.sweepInterval", 30*time.Second)

	if err := v.ReadInConfig(); err != nil {
		// 配置文件缺失时继续使用默认值和环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	Cfg = &cfg

	return Cfg, nil
}
