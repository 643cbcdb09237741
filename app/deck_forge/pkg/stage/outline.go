package stage

import (
	"context"
	"errors"
	"strings"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/cache"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// OutlineGenerator 大纲生成能力。失败时可同时返回已得到的部分骨架
type OutlineGenerator interface {
	Name() string
	GenerateOutline(ctx context.Context, text string, slideCount int, lang model.Language) (*model.Deck, error)
}

// Outline 大纲生成阶段，唯一失败即致命的阶段
type Outline struct {
	gen OutlineGenerator
}

func NewOutline(gen OutlineGenerator) *Outline {
	return &Outline{gen: gen}
}

var _ Stage = (*Outline)(nil)

func (s *Outline) ID() model.StageID { return model.StageOutline }

func (s *Outline) Key(in Input) cache.Key {
	return cache.NewKey(model.StageOutline, in.Text, struct {
		Generator string
		Slides    int
		Language  model.Language
	}{s.gen.Name(), in.Config.TargetSlideCount, in.Config.Language})
}

func (s *Outline) Apply(ctx context.Context, in Input) (*model.Delta, error) {
	lang := model.ResolveLanguage(in.Text, in.Config.Language)
	deck, err := s.gen.GenerateOutline(ctx, in.Text, in.Config.TargetSlideCount, lang)
	skeleton := sanitizeSkeleton(deck, in.Config.TargetSlideCount, lang)

	if err != nil {
		se := Fail(model.StageOutline, err)
		if skeleton == nil {
			return nil, se
		}
		partial := *se
		partial.Partial = true
		return &model.Delta{Skeleton: skeleton}, &partial
	}
	if skeleton == nil {
		return nil, &Error{Stage: model.StageOutline, Kind: model.FailureGeneration, Err: errors.New("outline contains no usable slides")}
	}
	return &model.Delta{Skeleton: skeleton}, nil
}

// sanitizeSkeleton 丢弃既无标题也无内容的页，截断到目标页数并重新编号
func sanitizeSkeleton(deck *model.Deck, target int, lang model.Language) *model.Deck {
	if deck == nil {
		return nil
	}
	out := &model.Deck{Meta: deck.Meta}
	for _, s := range deck.Slides {
		s = s.Clone()
		s.Title = strings.TrimSpace(s.Title)
		blocks := s.Blocks[:0]
		for _, b := range s.Blocks {
			b.Text = strings.TrimSpace(b.Text)
			if b.Text != "" {
				blocks = append(blocks, b)
			}
		}
		s.Blocks = blocks
		if s.Title == "" && len(s.Blocks) == 0 {
			continue
		}
		// 配图与图表只能由后续阶段设置
		s.Asset, s.Visual = nil, nil
		if s.Kind == "" {
			s.Kind = model.SlideContent
		}
		out.Slides = append(out.Slides, s)
		if target > 0 && len(out.Slides) == target {
			break
		}
	}
	if len(out.Slides) == 0 {
		return nil
	}
	for i := range out.Slides {
		out.Slides[i].Ordinal = i
	}
	out.Meta.Language = lang
	out.Meta.TargetSlideCount = target
	return out
}
