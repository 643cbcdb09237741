package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// Config 项目配置结构体
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Search      SearchConfig      `yaml:"search"`
	Pipeline    model.StageConfig `yaml:"pipeline"`
	Cache       CacheConfig       `yaml:"cache"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	DB          DBConfig          `yaml:"db"`
}

// LLMConfig LLM 相关配置。未配置 APIKey 时使用本地降级能力
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	Temperature float32       `yaml:"temperature"`
}

// Enabled 是否配置了模型
func (c LLMConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

// DBConfig 数据库相关配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN 生成 lib/pq 连接串
func (c DBConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, sslMode)
}

// SearchConfig 图片搜索相关配置
type SearchConfig struct {
	Provider         string        `yaml:"provider"` // tavily | searxng | pexels | none
	Tavily           TavilyConfig  `yaml:"tavily"`
	SearXNG          SearXNGConfig `yaml:"searxng"`
	Pexels           PexelsConfig  `yaml:"pexels"`
	MaxResults       int           `yaml:"max_results"`
	FallbackKeywords []string      `yaml:"fallback_keywords"`
}

// TavilyConfig Tavily 配置
type TavilyConfig struct {
	APIKey string `yaml:"api_key"`
}

// SearXNGConfig SearXNG 配置
type SearXNGConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// PexelsConfig Pexels 配置
type PexelsConfig struct {
	APIKey string `yaml:"api_key"`
}

// CacheConfig 指纹缓存配置
type CacheConfig struct {
	Backend    string        `yaml:"backend"` // memory | redis | postgres
	MaxEntries int           `yaml:"max_entries"`
	MaxBytes   int64         `yaml:"max_bytes"`
	TTL        time.Duration `yaml:"ttl"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig 并发控制配置
type ConcurrencyConfig struct {
	QPS          int `yaml:"qps"`
	RPM          int `yaml:"rpm"`
	ImageWorkers int `yaml:"image_workers"`
}

// LoadConfig 从指定路径加载配置
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// 预置阶段默认值，未写出的字段（包括合法的零值阈值）保持默认
	cfg := Config{Pipeline: model.DefaultStageConfig()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()
	if err := cfg.Pipeline.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	return &cfg, nil
}

// Default 无配置文件时的默认配置
func Default() *Config {
	cfg := &Config{Pipeline: model.DefaultStageConfig()}
	cfg.applyEnv()
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults 补齐零值字段
func (c *Config) ApplyDefaults() {
	c.Pipeline = c.Pipeline.Normalize()
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 60 * time.Second
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = 3
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = 5
	}
	if c.Search.FallbackKeywords == nil {
		c.Search.FallbackKeywords = []string{"presentation", "business", "technology", "abstract"}
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 1024
	}
	if c.Cache.MaxBytes == 0 {
		c.Cache.MaxBytes = 64 << 20
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "deck_forge:stage:"
	}
	if c.Concurrency.QPS == 0 {
		c.Concurrency.QPS = 2
	}
	if c.Concurrency.RPM == 0 {
		c.Concurrency.RPM = 60
	}
	if c.Concurrency.ImageWorkers == 0 {
		c.Concurrency.ImageWorkers = 4
	}
	if c.DB.Port == 0 {
		c.DB.Port = 5432
	}
}

// applyEnv 环境变量覆盖，便于不把密钥写进配置文件
func (c *Config) applyEnv() {
	overrides := []struct {
		key string
		dst *string
	}{
		{"DECK_FORGE_LLM_API_KEY", &c.LLM.APIKey},
		{"DECK_FORGE_LLM_BASE_URL", &c.LLM.BaseURL},
		{"DECK_FORGE_LLM_MODEL", &c.LLM.Model},
		{"DECK_FORGE_SEARCH_PROVIDER", &c.Search.Provider},
		{"DECK_FORGE_TAVILY_API_KEY", &c.Search.Tavily.APIKey},
		{"DECK_FORGE_PEXELS_API_KEY", &c.Search.Pexels.APIKey},
		{"DECK_FORGE_REDIS_ADDR", &c.Cache.Redis.Addr},
		{"DECK_FORGE_DB_PASSWORD", &c.DB.Password},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok && v != "" {
			*o.dst = v
		}
	}
}
