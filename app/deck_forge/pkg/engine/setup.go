package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/cache"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/config"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/credential"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/fallback"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/llm"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/logger"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/search/factory"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/storage"
)

// NewEngine 按配置创建引擎
func NewEngine(ctx context.Context, cfg *config.Config, c cache.Cache) (*Engine, error) {
	caps, err := NewCapabilities(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(caps, c), nil
}

// NewCapabilities 配置了模型时使用 LLM 能力，否则使用本地降级实现；凭据在此绑定到客户端
func NewCapabilities(ctx context.Context, cfg *config.Config) (Capabilities, error) {
	caps := Capabilities{
		FallbackKeywords: cfg.Search.FallbackKeywords,
		ImageWorkers:     cfg.Concurrency.ImageWorkers,
	}

	if cfg.LLM.Enabled() {
		cred, err := credential.New(credential.ProviderLLM, cfg.LLM.APIKey)
		if err != nil {
			return caps, fmt.Errorf("LLM 凭据无效: %w", err)
		}
		llmCfg := cfg.LLM
		llmCfg.APIKey = cred.Reveal()
		chatModel, err := llm.NewChatModel(ctx, llmCfg)
		if err != nil {
			return caps, fmt.Errorf("LLM 初始化失败: %w", err)
		}
		limiter := llm.NewLimiter(cfg.Concurrency)
		logger.Log.Infof("限流器已配置: Limit=%.2f req/s, Burst=%d", float64(limiter.Limit()), limiter.Burst())
		client := llm.NewClient(chatModel, limiter, cfg.LLM.Model, cfg.LLM.MaxRetries)
		caps.Outline = llm.NewOutlineGenerator(client)
		caps.Refiner = llm.NewRefiner(client)
		logger.Log.Infof("使用模型 %s (凭据 %s)", cfg.LLM.Model, cred)
	} else {
		caps.Outline = fallback.NewOutline()
		caps.Refiner = fallback.NewRefiner()
		logger.Log.Warn("未配置 LLM，使用启发式大纲与规则精炼")
	}

	images, err := factory.NewImageSearcher(cfg)
	if err != nil {
		return caps, fmt.Errorf("搜索客户端初始化失败: %w", err)
	}
	caps.Images = images
	return caps, nil
}

// NewCache 按配置创建指纹缓存。返回的 cleanup 释放外部连接
func NewCache(ctx context.Context, cfg *config.Config) (cache.Cache, func(), error) {
	return NewCacheWithDB(ctx, cfg, nil)
}

// NewCacheWithDB 与 NewCache 相同，但 postgres 后端复用调用方已打开的连接池，
// 连接的关闭由调用方负责。db 为 nil 时按 cfg.DB 自行连接
func NewCacheWithDB(ctx context.Context, cfg *config.Config, db *sql.DB) (cache.Cache, func(), error) {
	mem := cache.NewMemory(cfg.Cache.MaxEntries, cfg.Cache.MaxBytes)
	switch cfg.Cache.Backend {
	case "", "memory":
		return mem, func() {}, nil

	case "redis":
		rdb, err := cache.NewRedisClient(ctx, cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		store := cache.NewRedisStore(rdb, cfg.Cache.Redis.Prefix, cfg.Cache.TTL)
		return cache.NewTiered(mem, store), func() { _ = store.Close() }, nil

	case "postgres":
		if db != nil {
			store, err := cache.NewPostgresStore(ctx, db)
			if err != nil {
				return nil, nil, err
			}
			return cache.NewTiered(mem, store), func() {}, nil
		}
		own, err := storage.Open(ctx, cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		store, err := cache.NewPostgresStore(ctx, own)
		if err != nil {
			own.Close()
			return nil, nil, err
		}
		return cache.NewTiered(mem, store), func() { _ = own.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown cache backend: %s", cfg.Cache.Backend)
	}
}
