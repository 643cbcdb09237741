// Package stage 定义增强阶段的契约、失败类型，以及带缓存与超时的阶段执行器
package stage

import (
	"context"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/cache"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// Input 阶段输入。Deck 是编排器快照的独立副本，阶段不得依赖对它的修改
type Input struct {
	Text   string
	Deck   *model.Deck
	Config model.StageConfig
}

// Stage 增强阶段。相同输入必须产生相同结果
type Stage interface {
	ID() model.StageID
	// Key 本次调用的缓存指纹，只包含影响结果的输入与配置
	Key(in Input) cache.Key
	// Apply 返回增量；无法完成时返回错误且不返回部分增量。
	// 大纲阶段例外：失败时可附带部分骨架
	Apply(ctx context.Context, in Input) (*model.Delta, error)
}

func language(in Input) model.Language {
	if in.Deck != nil && in.Deck.Meta.Language != "" && in.Deck.Meta.Language != model.LanguageAuto {
		return in.Deck.Meta.Language
	}
	return model.ResolveLanguage(in.Text, in.Config.Language)
}
