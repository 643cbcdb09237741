package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/logger"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// Memory 进程内 LRU 缓存，按条目数与总字节数限制。
// 条目以编码后的字节保存，每次 Get 都解码出独立副本
type Memory struct {
	maxEntries int
	maxBytes   int64

	mu      sync.RWMutex
	entries map[Key]*entry
	size    int64

	tick   atomic.Uint64
	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	payload  []byte
	lastUsed atomic.Uint64
}

// Stats 命中统计
type Stats struct {
	Entries int
	Bytes   int64
	Hits    int64
	Misses  int64
}

// NewMemory maxEntries 或 maxBytes 小于等于 0 表示不限制该维度
func NewMemory(maxEntries int, maxBytes int64) *Memory {
	return &Memory{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		entries:    make(map[Key]*entry),
	}
}

var _ Cache = (*Memory)(nil)

func (m *Memory) Get(_ context.Context, key Key) (model.StageResult, bool) {
	payload, ok := m.lookup(key)
	if !ok {
		m.misses.Add(1)
		return model.StageResult{}, false
	}
	result, err := decode(payload)
	if err != nil {
		logger.Log.WithField("key", key).Warnf("缓存条目解码失败: %v", err)
		m.misses.Add(1)
		return model.StageResult{}, false
	}
	m.hits.Add(1)
	return result, true
}

// lookup 读锁下查找，最近使用时间用原子计数更新，读之间互不阻塞
func (m *Memory) lookup(key Key) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.lastUsed.Store(m.tick.Add(1))
	return e.payload, true
}

func (m *Memory) Put(_ context.Context, key Key, result model.StageResult) {
	if result.Err != nil {
		return
	}
	payload, err := encode(result)
	if err != nil {
		logger.Log.WithField("key", key).Warnf("缓存写入失败: %v", err)
		return
	}
	m.putEncoded(key, payload)
}

func (m *Memory) putEncoded(key Key, payload []byte) {
	size := int64(len(key) + len(payload))
	if m.maxBytes > 0 && size > m.maxBytes {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; ok {
		return
	}
	e := &entry{payload: payload}
	e.lastUsed.Store(m.tick.Add(1))
	m.entries[key] = e
	m.size += size

	for m.overLimit() {
		m.evictOldest()
	}
}

func (m *Memory) overLimit() bool {
	if m.maxEntries > 0 && len(m.entries) > m.maxEntries {
		return true
	}
	return m.maxBytes > 0 && m.size > m.maxBytes
}

// evictOldest 调用方持有写锁
func (m *Memory) evictOldest() {
	var (
		oldest  Key
		minUsed uint64
		found   bool
	)
	for k, e := range m.entries {
		if used := e.lastUsed.Load(); !found || used < minUsed {
			oldest, minUsed, found = k, used, true
		}
	}
	if !found {
		return
	}
	m.size -= int64(len(oldest) + len(m.entries[oldest].payload))
	delete(m.entries, oldest)
	logger.Log.WithFields(logrus.Fields{"key": oldest, "entries": len(m.entries)}).Debug("缓存淘汰")
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{Entries: len(m.entries), Bytes: m.size, Hits: m.hits.Load(), Misses: m.misses.Load()}
}
