package model

import "time"

// StageStatus 阶段在本次运行中的结局
type StageStatus string

const (
	StatusOK       StageStatus = "ok"
	StatusDegraded StageStatus = "degraded"
	StatusSkipped  StageStatus = "skipped"
	StatusFailed   StageStatus = "failed"
)

// StageStat 单阶段统计
type StageStat struct {
	Stage     StageID       `json:"stage"`
	Status    StageStatus   `json:"status"`
	Attempted int           `json:"attempted"`
	Applied   int           `json:"applied"`
	Ratio     float64       `json:"ratio"`
	CacheHit  bool          `json:"cache_hit"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// RejectedRefinement 因置信度不足被拒绝的改写，原文保留
type RejectedRefinement struct {
	Block      BlockID `json:"block"`
	Original   string  `json:"original"`
	Proposed   string  `json:"proposed"`
	Confidence float64 `json:"confidence"`
}

// SlideFlag 需要关注的页
type SlideFlag struct {
	Ordinal            int     `json:"ordinal"`
	RejectedRefinement bool    `json:"rejected_refinement"`
	PlaceholderVisual  bool    `json:"placeholder_visual"`
	TextScore          float64 `json:"text_score"`
}

// Degradation 被跳过或降级的增强
type Degradation struct {
	Stage   StageID     `json:"stage"`
	Kind    FailureKind `json:"kind,omitempty"`
	Message string      `json:"message"`
}

// QualityReport 质量报告
type QualityReport struct {
	Stages            []StageStat          `json:"stages"`
	AverageConfidence float64              `json:"average_confidence"`
	TextScore         float64              `json:"text_score"`
	Rejected          []RejectedRefinement `json:"rejected,omitempty"`
	Flags             []SlideFlag          `json:"flags,omitempty"`
	Degraded          []Degradation        `json:"degraded,omitempty"`
}

// Stage 查询某阶段统计
func (r *QualityReport) Stage(id StageID) (StageStat, bool) {
	for _, s := range r.Stages {
		if s.Stage == id {
			return s, true
		}
	}
	return StageStat{}, false
}

// RejectedSlides 有被拒绝改写的页序号（去重、升序）
func (r *QualityReport) RejectedSlides() []int {
	var out []int
	for _, f := range r.Flags {
		if f.RejectedRefinement {
			out = append(out, f.Ordinal)
		}
	}
	return out
}

// IsDegraded 是否存在降级
func (r *QualityReport) IsDegraded() bool {
	return len(r.Degraded) > 0
}

func (r QualityReport) Clone() QualityReport {
	out := r
	out.Stages = append([]StageStat(nil), r.Stages...)
	out.Rejected = append([]RejectedRefinement(nil), r.Rejected...)
	out.Flags = append([]SlideFlag(nil), r.Flags...)
	out.Degraded = append([]Degradation(nil), r.Degraded...)
	return out
}

// MergeLog 合并过程的记录，供质量评分使用
type MergeLog struct {
	Attempted map[StageID]int
	Applied   map[StageID]int
	Rejected  []RejectedRefinement
}

func NewMergeLog() *MergeLog {
	return &MergeLog{Attempted: map[StageID]int{}, Applied: map[StageID]int{}}
}
