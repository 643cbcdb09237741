package model

import "time"

// StageID 阶段标识
type StageID string

const (
	StageOutline StageID = "outline"
	StageRefine  StageID = "refine"
	StageDetect  StageID = "detect"
	StageResolve StageID = "resolve"
)

// MergeOrder 依赖阶段增量的固定合并顺序，与完成先后无关
var MergeOrder = []StageID{StageRefine, StageDetect, StageResolve}

// AllStages 全部阶段
var AllStages = []StageID{StageOutline, StageRefine, StageDetect, StageResolve}

func (s StageID) Valid() bool {
	switch s {
	case StageOutline, StageRefine, StageDetect, StageResolve:
		return true
	}
	return false
}

// Refinement 对单个要点的改写建议
type Refinement struct {
	Block      BlockID `json:"block"`
	Refined    string  `json:"refined"`
	Confidence float64 `json:"confidence"`
}

// VisualPatch 为某页设置结构化图表
type VisualPatch struct {
	Ordinal int               `json:"ordinal"`
	Visual  *StructuredVisual `json:"visual"`
}

// AssetPatch 为某页设置配图
type AssetPatch struct {
	Ordinal int          `json:"ordinal"`
	Asset   *VisualAsset `json:"asset"`
}

// Delta 阶段产出的增量，只由编排器应用
type Delta struct {
	Skeleton    *Deck         `json:"skeleton,omitempty"`
	Refinements []Refinement  `json:"refinements,omitempty"`
	Visuals     []VisualPatch `json:"visuals,omitempty"`
	Assets      []AssetPatch  `json:"assets,omitempty"`
	// Transient 部分内容因临时故障降级（如搜索服务不可用），结果不可缓存
	Transient   bool          `json:"-"`
}

// Size 增量中提议的修改数
func (d *Delta) Size() int {
	if d == nil {
		return 0
	}
	n := len(d.Refinements) + len(d.Visuals) + len(d.Assets)
	if d.Skeleton != nil {
		n += len(d.Skeleton.Slides)
	}
	return n
}

func (d *Delta) Empty() bool {
	return d.Size() == 0
}

// StageResult 阶段与编排器之间交换的单元
type StageResult struct {
	Stage    StageID       `json:"stage"`
	Delta    *Delta        `json:"delta,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
	CacheHit bool          `json:"cache_hit"`
}

func (r StageResult) OK() bool {
	return r.Err == nil
}
