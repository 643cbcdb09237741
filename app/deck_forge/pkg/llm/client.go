package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/config"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/logger"
	dm "github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

const systemPrompt = "You are a JSON generator. Output only a JSON document, no explanations."

// Client LLM 调用封装：限流、429 退避重试、JSON 清洗与解析
type Client struct {
	cm         model.BaseChatModel
	limiter    *rate.Limiter
	name       string
	maxRetries int
	baseDelay  time.Duration
}

// NewClient limiter 为 nil 时不限流
func NewClient(cm model.BaseChatModel, limiter *rate.Limiter, name string, maxRetries int) *Client {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{cm: cm, limiter: limiter, name: name, maxRetries: maxRetries, baseDelay: 2 * time.Second}
}

// NewChatModel 按配置创建 OpenAI 兼容的聊天模型
func NewChatModel(ctx context.Context, cfg config.LLMConfig) (model.BaseChatModel, error) {
	mc := &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}
	if cfg.Temperature > 0 {
		t := cfg.Temperature
		mc.Temperature = &t
	}
	cm, err := openai.NewChatModel(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("init chat model: %w", err)
	}
	return cm, nil
}

// NewLimiter RPM 决定平均速率，QPS 决定突发
func NewLimiter(c config.ConcurrencyConfig) *rate.Limiter {
	limit := rate.Limit(float64(c.RPM) / 60.0)
	return rate.NewLimiter(limit, c.QPS)
}

// Name 模型名，参与缓存指纹
func (c *Client) Name() string {
	return c.name
}

// GenerateJSON 调用模型并把回复解析进 out。
// 429 会指数退避重试，重试耗尽返回 ErrServiceUnavailable；JSON 解析失败也会重试
func (c *Client) GenerateJSON(ctx context.Context, user string, out any) error {
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
		}

		messages := []*schema.Message{
			{Role: schema.System, Content: systemPrompt},
			{Role: schema.User, Content: user},
		}

		resp, err := c.cm.Generate(ctx, messages)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if isRateLimited(err) {
				lastErr = fmt.Errorf("%w: %w", dm.ErrServiceUnavailable, err)
				if i < c.maxRetries {
					logger.Log.Warnf("LLM 触发限流，第 %d 次重试", i+1)
					if err := c.sleep(ctx, c.baseDelay*time.Duration(1<<i)); err != nil {
						return err
					}
					continue
				}
				return lastErr
			}
			return err
		}

		if err := json.Unmarshal([]byte(cleanJSON(resp.Content)), out); err != nil {
			lastErr = fmt.Errorf("json unmarshal: %w", err)
			if i < c.maxRetries {
				logger.Log.Debugf("LLM 输出不是合法 JSON，重试: %v", err)
				continue
			}
			return lastErr
		}
		return nil
	}
	return lastErr
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRateLimited(err error) bool {
	if errors.Is(err, dm.ErrServiceUnavailable) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "too many requests")
}

// cleanJSON 去掉 markdown 代码块，以及 JSON 前后的多余文字
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}
