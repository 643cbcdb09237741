package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// ErrDisabled 未配置图片搜索
var ErrDisabled = errors.New("image search disabled")

// Disabled 不做任何搜索，所有页落到占位图
type Disabled struct{}

func (Disabled) Search(context.Context, *Request) (*Response, error) {
	return nil, ErrDisabled
}

// ImageResolver 把 Searcher 适配为配图阶段的图片搜索能力
type ImageResolver struct {
	searcher   Searcher
	name       string
	limiter    *rate.Limiter
	maxResults int
}

// NewImageResolver limiter 为 nil 时不限流
func NewImageResolver(s Searcher, name string, limiter *rate.Limiter, maxResults int) *ImageResolver {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &ImageResolver{searcher: s, name: name, limiter: limiter, maxResults: maxResults}
}

func (r *ImageResolver) Name() string { return r.name }

// SearchImage 无结果返回 model.ErrNotFound，其余失败包装为 model.ErrServiceUnavailable
func (r *ImageResolver) SearchImage(ctx context.Context, keywords []string) (string, error) {
	query := strings.TrimSpace(strings.Join(keywords, " "))
	if query == "" {
		return "", model.ErrNotFound
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	resp, err := r.searcher.Search(ctx, &Request{Query: query, MaxResults: r.maxResults, Images: true})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %s: %w", model.ErrServiceUnavailable, r.name, err)
	}
	if resp != nil {
		for _, img := range resp.Images {
			if usableURL(img.URL) {
				return img.URL, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no image for %q", model.ErrNotFound, query)
}

func usableURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
