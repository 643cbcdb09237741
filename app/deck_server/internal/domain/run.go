package domain

import (
	"time"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// Run 一次生成的完整记录
type Run struct {
	ID        string
	Topic     string
	Language  string
	Degraded  bool
	Deck      *model.Deck
	Report    *model.QualityReport
	CreatedAt time.Time
}

// RunSummary 运行摘要信息
type RunSummary struct {
	ID         string
	Topic      string
	Language   string
	SlideCount int
	Degraded   bool
	Date       string
}

// GenerateInput 生成请求，Text 与 URL 二选一
type GenerateInput struct {
	Text   string
	URL    string
	Config model.StageConfig
}
