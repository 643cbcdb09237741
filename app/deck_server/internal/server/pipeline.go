package server

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/config"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/engine"
	dfLogger "github.com/iWorld-y/deck_forge/app/deck_forge/pkg/logger"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
	"github.com/iWorld-y/deck_forge/app/deck_server/internal/conf"
)

// PipelineConfig 将 internal/conf.Pipeline 转换为 pkg/config.Config，并补齐默认值
func PipelineConfig(c *conf.Pipeline) *config.Config {
	cfg := &config.Config{Pipeline: model.DefaultStageConfig()}
	if c == nil {
		c = &conf.Pipeline{}
	}
	if c.Llm != nil {
		cfg.LLM = config.LLMConfig{
			BaseURL:    c.Llm.BaseUrl,
			APIKey:     c.Llm.ApiKey,
			Model:      c.Llm.Model,
			Timeout:    parseDuration(c.Llm.Timeout),
			MaxRetries: int(c.Llm.MaxRetries),
		}
	}
	if c.Search != nil {
		cfg.Search = config.SearchConfig{
			Provider:         c.Search.Provider,
			MaxResults:       int(c.Search.MaxResults),
			FallbackKeywords: c.Search.FallbackKeywords,
		}
		if c.Search.Tavily != nil {
			cfg.Search.Tavily.APIKey = c.Search.Tavily.ApiKey
		}
		if c.Search.Searxng != nil {
			cfg.Search.SearXNG = config.SearXNGConfig{
				BaseURL: c.Search.Searxng.BaseUrl,
				Timeout: int(c.Search.Searxng.Timeout),
			}
		}
		if c.Search.Pexels != nil {
			cfg.Search.Pexels.APIKey = c.Search.Pexels.ApiKey
		}
	}
	if c.Stages != nil {
		p := &cfg.Pipeline
		if c.Stages.TargetSlideCount != 0 {
			p.TargetSlideCount = int(c.Stages.TargetSlideCount)
		}
		if c.Stages.Language != "" {
			p.Language = model.Language(c.Stages.Language)
		}
		if c.Stages.RefinementConfidenceThreshold != nil {
			p.RefinementConfidenceThreshold = *c.Stages.RefinementConfidenceThreshold
		}
		if d := parseDuration(c.Stages.PerStageTimeout); d > 0 {
			p.PerStageTimeout = d
		}
		for _, id := range c.Stages.EnabledStages {
			cfg.Pipeline.EnabledStages = append(cfg.Pipeline.EnabledStages, model.StageID(id))
		}
	}
	if c.Cache != nil {
		cfg.Cache = config.CacheConfig{
			Backend:    c.Cache.Backend,
			MaxEntries: int(c.Cache.MaxEntries),
			MaxBytes:   c.Cache.MaxBytes,
			TTL:        parseDuration(c.Cache.Ttl),
		}
		if c.Cache.Redis != nil {
			cfg.Cache.Redis = config.RedisConfig{
				Addr:     c.Cache.Redis.Addr,
				Password: c.Cache.Redis.Password,
				DB:       int(c.Cache.Redis.Db),
				Prefix:   c.Cache.Redis.Prefix,
			}
		}
	}
	if c.Log != nil {
		cfg.Log = config.LogConfig{Level: c.Log.Level, File: c.Log.File}
	}
	if c.Concurrency != nil {
		cfg.Concurrency = config.ConcurrencyConfig{
			QPS:          int(c.Concurrency.Qps),
			RPM:          int(c.Concurrency.Rpm),
			ImageWorkers: int(c.Concurrency.ImageWorkers),
		}
	}
	cfg.ApplyDefaults()
	return cfg
}

// NewPipeline 初始化 deck_forge 引擎。db 为 data 层的连接池，postgres 缓存复用它
func NewPipeline(cfg *config.Config, db *sql.DB, logger log.Logger) (*engine.Engine, func(), error) {
	helper := log.NewHelper(logger)

	// 初始化日志
	if err := dfLogger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		helper.Errorf("Failed to init deck_forge logger: %v", err)
		_ = dfLogger.InitLogger("info", "") // 降级处理
	}

	ctx := context.Background()
	c, cleanupCache, err := engine.NewCacheWithDB(ctx, cfg, db)
	if err != nil {
		helper.Errorf("Failed to init cache: %v", err)
		return nil, nil, err
	}

	eng, err := engine.NewEngine(ctx, cfg, c)
	if err != nil {
		cleanupCache()
		helper.Errorf("Failed to init engine: %v", err)
		return nil, nil, err
	}

	cleanup := func() {
		helper.Info("Cleaning up deck_forge engine")
		cleanupCache()
	}
	return eng, cleanup, nil
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
