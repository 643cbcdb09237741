package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/cache"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/detect"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// Detect 数值/流程识别阶段，纯本地计算
type Detect struct{}

func NewDetect() *Detect {
	return &Detect{}
}

var _ Stage = (*Detect)(nil)

func (s *Detect) ID() model.StageID { return model.StageDetect }

func (s *Detect) Key(in Input) cache.Key {
	return cache.NewKey(model.StageDetect, slideTexts(in.Deck), in.Config.Detection)
}

func (s *Detect) Apply(ctx context.Context, in Input) (*model.Delta, error) {
	delta := &model.Delta{}
	if in.Deck == nil {
		return delta, nil
	}
	c := detect.New(in.Config.Detection)
	for _, slide := range in.Deck.Slides {
		if err := ctx.Err(); err != nil {
			return nil, Fail(model.StageDetect, err)
		}
		v, ok := c.Classify(slide.Text())
		if !ok {
			continue
		}
		if v.Title == "" {
			v.Title = slide.Title
		}
		delta.Visuals = append(delta.Visuals, model.VisualPatch{Ordinal: slide.Ordinal, Visual: v})
	}
	return delta, nil
}

func slideTexts(d *model.Deck) string {
	if d == nil {
		return ""
	}
	var sb strings.Builder
	for _, s := range d.Slides {
		fmt.Fprintf(&sb, "#%d %s\n%s\n", s.Ordinal, s.Title, s.Text())
	}
	return sb.String()
}
