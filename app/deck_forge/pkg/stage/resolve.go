package stage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/cache"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/logger"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// ImageSearcher 图片搜索能力。无结果返回 model.ErrNotFound，其余错误视为服务错误
type ImageSearcher interface {
	Name() string
	SearchImage(ctx context.Context, keywords []string) (string, error)
}

const maxKeywords = 5

// Resolve 配图解析阶段。单页失败落到占位图，从不向上报告
type Resolve struct {
	searcher ImageSearcher
	fallback []string
	workers  int
}

// NewResolve fallback 为本页关键词无结果时的通用关键词
func NewResolve(searcher ImageSearcher, fallback []string, workers int) *Resolve {
	if workers <= 0 {
		workers = 1
	}
	return &Resolve{searcher: searcher, fallback: fallback, workers: workers}
}

var _ Stage = (*Resolve)(nil)

func (s *Resolve) ID() model.StageID { return model.StageResolve }

func (s *Resolve) Key(in Input) cache.Key {
	var sb strings.Builder
	if in.Deck != nil {
		for _, slide := range in.Deck.Slides {
			fmt.Fprintf(&sb, "%d\t%s\n", slide.Ordinal, strings.Join(SlideKeywords(slide), ","))
		}
	}
	return cache.NewKey(model.StageResolve, sb.String(), struct {
		Searcher string
		Fallback []string
	}{s.searcher.Name(), s.fallback})
}

func (s *Resolve) Apply(ctx context.Context, in Input) (*model.Delta, error) {
	if in.Deck == nil {
		return &model.Delta{}, nil
	}
	assets := make([]model.AssetPatch, len(in.Deck.Slides))
	transient := make([]bool, len(in.Deck.Slides))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, slide := range in.Deck.Slides {
		g.Go(func() error {
			asset, temp := s.resolve(ctx, slide)
			assets[i] = model.AssetPatch{Ordinal: slide.Ordinal, Asset: asset}
			transient[i] = temp
			return nil
		})
	}
	_ = g.Wait()

	// 期限已过则整体放弃，由编排器补占位图
	if err := ctx.Err(); err != nil {
		return nil, Fail(model.StageResolve, err)
	}
	return &model.Delta{Assets: assets, Transient: slices.Contains(transient, true)}, nil
}

// resolve 第二个返回值表示占位图源于服务故障而非无结果
func (s *Resolve) resolve(ctx context.Context, slide model.Slide) (*model.VisualAsset, bool) {
	keywords := SlideKeywords(slide)
	log := logger.Log.WithField("slide", slide.Ordinal)

	ref, err := s.search(ctx, keywords)
	if errors.Is(err, model.ErrNotFound) && len(s.fallback) > 0 {
		log.Debugf("关键词 %v 无结果，使用通用关键词", keywords)
		ref, err = s.search(ctx, s.fallback)
	}
	if err != nil {
		log.Warnf("配图解析失败，使用占位图: %v", err)
		return model.PlaceholderAsset(keywords, Fail(model.StageResolve, err).Error()), !errors.Is(err, model.ErrNotFound)
	}
	return model.ResolvedAsset(keywords, ref, s.searcher.Name()), false
}

func (s *Resolve) search(ctx context.Context, keywords []string) (string, error) {
	if len(keywords) == 0 {
		return "", model.ErrNotFound
	}
	ref, err := s.searcher.SearchImage(ctx, keywords)
	if err == nil && ref == "" {
		err = model.ErrNotFound
	}
	return ref, err
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "of": true, "to": true, "in": true, "on": true,
	"a": true, "an": true, "is": true, "are": true, "our": true, "your": true,
	"và": true, "của": true, "các": true, "những": true, "cho": true, "với": true, "là": true, "trong": true,
}

// SlideKeywords 配图关键词：优先使用大纲给出的关键词，否则取标题与首个内容块
func SlideKeywords(slide model.Slide) []string {
	if len(slide.Keywords) > 0 {
		n := min(len(slide.Keywords), maxKeywords)
		return append([]string(nil), slide.Keywords[:n]...)
	}
	source := slide.Title
	if len(slide.Blocks) > 0 {
		source += " " + slide.Blocks[0].Display()
	}
	seen := map[string]bool{}
	var out []string
	for _, w := range strings.FieldsFunc(source, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		w = strings.ToLower(w)
		if len([]rune(w)) < 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}
