package cache

import (
	"context"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/logger"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// Tiered 内存层 + 持久层。持久层出错只记日志，按未命中处理
type Tiered struct {
	mem   *Memory
	store Store
}

func NewTiered(mem *Memory, store Store) *Tiered {
	return &Tiered{mem: mem, store: store}
}

var _ Cache = (*Tiered)(nil)

func (t *Tiered) Get(ctx context.Context, key Key) (model.StageResult, bool) {
	if r, ok := t.mem.Get(ctx, key); ok {
		return r, true
	}
	payload, ok, err := t.store.Load(ctx, key)
	if err != nil {
		logger.Log.WithField("key", key).Warnf("持久缓存读取失败: %v", err)
		return model.StageResult{}, false
	}
	if !ok {
		return model.StageResult{}, false
	}
	result, err := decode(payload)
	if err != nil {
		logger.Log.WithField("key", key).Warnf("持久缓存条目损坏: %v", err)
		return model.StageResult{}, false
	}
	t.mem.putEncoded(key, payload)
	return result, true
}

func (t *Tiered) Put(ctx context.Context, key Key, result model.StageResult) {
	if result.Err != nil {
		return
	}
	payload, err := encode(result)
	if err != nil {
		logger.Log.WithField("key", key).Warnf("缓存写入失败: %v", err)
		return
	}
	t.mem.putEncoded(key, payload)
	if err := t.store.Save(ctx, key, payload); err != nil {
		logger.Log.WithField("key", key).Warnf("持久缓存写入失败: %v", err)
	}
}
