package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// Cache 指纹缓存。未命中只表示需要执行阶段，从不返回错误
type Cache interface {
	Get(ctx context.Context, key Key) (model.StageResult, bool)
	// Put 只接受成功结果；键已存在时不做任何事
	Put(ctx context.Context, key Key, result model.StageResult)
}

// Store 可持久化的缓存层
type Store interface {
	Load(ctx context.Context, key Key) ([]byte, bool, error)
	// Save 键已存在时不覆盖
	Save(ctx context.Context, key Key, payload []byte) error
}

// Nop 不缓存任何内容
type Nop struct{}

func (Nop) Get(context.Context, Key) (model.StageResult, bool) { return model.StageResult{}, false }
func (Nop) Put(context.Context, Key, model.StageResult)         {}

func encode(result model.StageResult) ([]byte, error) {
	result.CacheHit = false
	result.Err = nil
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode stage result: %w", err)
	}
	return b, nil
}

func decode(payload []byte) (model.StageResult, error) {
	var result model.StageResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return model.StageResult{}, fmt.Errorf("decode stage result: %w", err)
	}
	return result, nil
}
