// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Qimen    QimenConfig    `mapstructure:"qimen"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// QimenConfig 存储奇门遁甲排盘 API 的配置。
// APIKey 由服务端持有，绝不下发给客户端。
type QimenConfig struct {
	APIKey string `mapstructure:"api_key"`
	APIURL string `mapstructure:"api_url"`
}

// OpenAIConfig 存储 OpenAI 兼容聊天 API 的配置。
type OpenAIConfig struct {
	APIKey     string                 `mapstructure:"api_key"`
	BaseURL    string                 `mapstructure:"base_url"`
	Model      string                 `mapstructure:"model"`
	Generation OpenAIGenerationConfig `mapstructure:"generation"`
}

// OpenAIGenerationConfig 配置聊天补全的固定采样参数。
type OpenAIGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
// 上游凭证可通过环境变量覆盖（QIMEN_API_KEY / QIMEN_API_URL /
// OPENAI_API_KEY / OPENAI_BASE_URL），仅在进程启动时读取一次。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	_ = viper.BindEnv("qimen.api_key", "QIMEN_API_KEY")
	_ = viper.BindEnv("qimen.api_url", "QIMEN_API_URL")
	_ = viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("openai.base_url", "OPENAI_BASE_URL")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}

	ApplyDefaults(&Conf)
}

// ApplyDefaults 填充缺省值，保证下游代码拿到的永远是可用配置。
func ApplyDefaults(c *Config) {
	if c.Qimen.APIURL == "" {
		c.Qimen.APIURL = "https://api.yuanfenju.com/index.php/v1/Liupan/qimendunjia"
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "deepseek-chat"
	}
	if c.OpenAI.Generation.Temperature == 0 {
		c.OpenAI.Generation.Temperature = 0.7
	}
	if c.OpenAI.Generation.TopP == 0 {
		c.OpenAI.Generation.TopP = 0.9
	}
	if c.OpenAI.Generation.MaxTokens == 0 {
		c.OpenAI.Generation.MaxTokens = 8000
	}
}
