package factory

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/config"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/credential"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/pexels"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/search"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/searxng"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/tavily"
)

// NewSearcher 根据配置创建搜索实例，返回实例与提供方名称
func NewSearcher(cfg config.SearchConfig) (search.Searcher, string, error) {
	provider := cfg.Provider
	if provider == "" {
		// 默认回退逻辑：按已配置的密钥或地址选择
		switch {
		case cfg.Tavily.APIKey != "":
			provider = "tavily"
		case cfg.Pexels.APIKey != "":
			provider = "pexels"
		case cfg.SearXNG.BaseURL != "":
			provider = "searxng"
		default:
			provider = "none"
		}
	}

	switch provider {
	case "tavily":
		cred, err := credential.New(credential.ProviderTavily, cfg.Tavily.APIKey)
		if err != nil {
			return nil, "", err
		}
		return tavily.NewClient(cred.Reveal()), provider, nil

	case "pexels":
		cred, err := credential.New(credential.ProviderPexels, cfg.Pexels.APIKey)
		if err != nil {
			return nil, "", err
		}
		return pexels.NewClient(cred.Reveal()), provider, nil

	case "searxng":
		baseURL := cfg.SearXNG.BaseURL
		if baseURL == "" {
			return nil, "", fmt.Errorf("searxng base url is missing")
		}
		return searxng.NewClient(baseURL, cfg.SearXNG.Timeout), provider, nil

	case "none":
		return search.Disabled{}, provider, nil

	default:
		return nil, "", fmt.Errorf("unknown search provider: %s", provider)
	}
}

// NewImageSearcher 创建配图阶段使用的图片搜索能力，与 LLM 共用限流参数
func NewImageSearcher(cfg *config.Config) (*search.ImageResolver, error) {
	s, name, err := NewSearcher(cfg.Search)
	if err != nil {
		return nil, err
	}
	limiter := rate.NewLimiter(rate.Limit(float64(cfg.Concurrency.RPM)/60.0), cfg.Concurrency.QPS)
	return search.NewImageResolver(s, name, limiter, cfg.Search.MaxResults), nil
}
