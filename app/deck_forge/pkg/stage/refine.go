package stage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/cache"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// Refiner 语义精炼能力：返回 (blockId, refinedText, confidence)
type Refiner interface {
	Name() string
	Refine(ctx context.Context, blocks []model.BlockRef, lang model.Language) ([]model.Refinement, error)
}

// Refine 语义精炼阶段，只产出 RefinedBullet 增量，不改变块数与序号
type Refine struct {
	refiner Refiner
}

func NewRefine(r Refiner) *Refine {
	return &Refine{refiner: r}
}

var _ Stage = (*Refine)(nil)

func (s *Refine) ID() model.StageID { return model.StageRefine }

// Key 置信度门限不参与指纹：门限只影响合并，不影响阶段输出
func (s *Refine) Key(in Input) cache.Key {
	var sb strings.Builder
	if in.Deck != nil {
		for _, b := range in.Deck.Bullets() {
			fmt.Fprintf(&sb, "%s\t%s\n", b.ID, b.Text)
		}
	}
	return cache.NewKey(model.StageRefine, sb.String(), struct {
		Refiner  string
		Language model.Language
	}{s.refiner.Name(), language(in)})
}

func (s *Refine) Apply(ctx context.Context, in Input) (*model.Delta, error) {
	if in.Deck == nil {
		return &model.Delta{}, nil
	}
	blocks := in.Deck.Bullets()
	if len(blocks) == 0 {
		return &model.Delta{}, nil
	}

	proposals, err := s.refiner.Refine(ctx, blocks, language(in))
	if err != nil {
		return nil, Fail(model.StageRefine, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, Fail(model.StageRefine, err)
	}

	original := make(map[model.BlockID]string, len(blocks))
	for _, b := range blocks {
		original[b.ID] = b.Text
	}

	seen := make(map[model.BlockID]bool, len(proposals))
	var out []model.Refinement
	for _, p := range proposals {
		orig, ok := original[p.Block]
		p.Refined = strings.TrimSpace(p.Refined)
		if !ok || seen[p.Block] || p.Refined == "" || p.Refined == orig {
			continue
		}
		seen[p.Block] = true
		p.Confidence = clamp01(p.Confidence)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Block, out[j].Block
		if a.Slide != b.Slide {
			return a.Slide < b.Slide
		}
		return a.Block < b.Block
	})
	return &model.Delta{Refinements: out}, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
