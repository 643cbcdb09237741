package model

import (
	"fmt"
	"time"
)

const (
	MinSlideCount = 3
	MaxSlideCount = 10
)

// StageConfig 单次运行的阶段配置
type StageConfig struct {
	TargetSlideCount              int             `yaml:"target_slide_count" json:"target_slide_count"`
	Language                      Language        `yaml:"language" json:"language"`
	EnabledStages                 []StageID       `yaml:"enabled_stages" json:"enabled_stages"` // nil 表示全部启用
	RefinementConfidenceThreshold float64         `yaml:"refinement_confidence_threshold" json:"refinement_confidence_threshold"`
	PerStageTimeout               time.Duration   `yaml:"per_stage_timeout" json:"per_stage_timeout"`
	Detection                     DetectionConfig `yaml:"detection" json:"detection"`
}

// DetectionConfig 数值/流程识别的阈值与关键词表
type DetectionConfig struct {
	PercentTolerance float64    `yaml:"percent_tolerance" json:"percent_tolerance"` // 百分点
	MinSeries        int        `yaml:"min_series" json:"min_series"`
	MinSteps         int        `yaml:"min_steps" json:"min_steps"`
	MinMilestones    int        `yaml:"min_milestones" json:"min_milestones"`
	MinOrgLevels     int        `yaml:"min_org_levels" json:"min_org_levels"`
	StepKeywords     []string   `yaml:"step_keywords" json:"step_keywords"`
	OrgLevels        [][]string `yaml:"org_levels" json:"org_levels"` // 由高到低的职级关键词
}

// DefaultStageConfig 默认阶段配置
func DefaultStageConfig() StageConfig {
	return StageConfig{
		TargetSlideCount:              5,
		Language:                      LanguageAuto,
		RefinementConfidenceThreshold: 0.6,
		PerStageTimeout:               60 * time.Second,
		Detection:                     DefaultDetectionConfig(),
	}
}

// DefaultDetectionConfig 默认识别参数
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		PercentTolerance: 1.0,
		MinSeries:        3,
		MinSteps:         3,
		MinMilestones:    2,
		MinOrgLevels:     2,
		StepKeywords:     []string{"step", "bước", "giai đoạn", "phase", "stage"},
		OrgLevels: [][]string{
			{"ceo", "tổng giám đốc", "giám đốc", "director", "president"},
			{"phó", "deputy", "vice"},
			{"trưởng phòng", "manager", "head", "lead"},
			{"nhân viên", "staff", "employee", "engineer"},
		},
	}
}

// Normalize 用默认值补齐零值字段。
// 置信度阈值与百分比容差的零值有意义，默认值只来自 DefaultStageConfig
func (c StageConfig) Normalize() StageConfig {
	def := DefaultStageConfig()
	if c.TargetSlideCount == 0 {
		c.TargetSlideCount = def.TargetSlideCount
	}
	if c.Language == "" {
		c.Language = def.Language
	}
	if c.PerStageTimeout == 0 {
		c.PerStageTimeout = def.PerStageTimeout
	}
	d := &c.Detection
	dd := def.Detection
	if d.MinSeries == 0 {
		d.MinSeries = dd.MinSeries
	}
	if d.MinSteps == 0 {
		d.MinSteps = dd.MinSteps
	}
	if d.MinMilestones == 0 {
		d.MinMilestones = dd.MinMilestones
	}
	if d.MinOrgLevels == 0 {
		d.MinOrgLevels = dd.MinOrgLevels
	}
	if len(d.StepKeywords) == 0 {
		d.StepKeywords = dd.StepKeywords
	}
	if len(d.OrgLevels) == 0 {
		d.OrgLevels = dd.OrgLevels
	}
	return c
}

// Validate 校验配置取值范围
func (c StageConfig) Validate() error {
	if c.TargetSlideCount < MinSlideCount || c.TargetSlideCount > MaxSlideCount {
		return fmt.Errorf("target slide count %d out of range [%d, %d]", c.TargetSlideCount, MinSlideCount, MaxSlideCount)
	}
	if !c.Language.Valid() {
		return fmt.Errorf("unsupported language %q", c.Language)
	}
	if c.RefinementConfidenceThreshold < 0 || c.RefinementConfidenceThreshold > 1 {
		return fmt.Errorf("refinement confidence threshold %.2f out of range [0, 1]", c.RefinementConfidenceThreshold)
	}
	if c.PerStageTimeout < 0 {
		return fmt.Errorf("negative per-stage timeout %s", c.PerStageTimeout)
	}
	for _, s := range c.EnabledStages {
		if !s.Valid() {
			return fmt.Errorf("unknown stage %q", s)
		}
	}
	if c.Detection.PercentTolerance < 0 {
		return fmt.Errorf("negative percent tolerance %.2f", c.Detection.PercentTolerance)
	}
	return nil
}

// Enabled 判断阶段是否启用。大纲阶段始终启用
func (c StageConfig) Enabled(id StageID) bool {
	if id == StageOutline || c.EnabledStages == nil {
		return true
	}
	for _, s := range c.EnabledStages {
		if s == id {
			return true
		}
	}
	return false
}
