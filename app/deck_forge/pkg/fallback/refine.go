package fallback

import (
	"context"
	"strings"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/quality"
)

const (
	summaryWords      = 25
	cosmeticConfident = 0.95
)

// Refiner 规则精炼：整理空白与首字母，过长要点截到首句
type Refiner struct{}

func NewRefiner() *Refiner {
	return &Refiner{}
}

func (Refiner) Name() string { return "rules" }

func (Refiner) Refine(ctx context.Context, blocks []model.BlockRef, lang model.Language) ([]model.Refinement, error) {
	var out []model.Refinement
	for _, b := range blocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		refined, conf := refineText(b.Text)
		if refined == b.Text {
			continue
		}
		out = append(out, model.Refinement{Block: b.ID, Refined: refined, Confidence: conf})
	}
	return out, nil
}

// refineText 置信度：仅整理格式时很高；截断时随保留词比例下降
func refineText(text string) (string, float64) {
	cleaned := capitalize(strings.Join(strings.Fields(text), " "))
	a := quality.Analyze(cleaned)
	if a.Action != quality.ActionSummarize {
		return cleaned, cosmeticConfident
	}

	short := firstSentence(cleaned)
	words := strings.Fields(short)
	if len(words) > summaryWords {
		short = strings.Join(words[:summaryWords], " ") + "…"
		words = words[:summaryWords]
	}
	kept := float64(len(words)) / float64(a.Words)
	conf := quality.Analyze(short).Score * (0.5 + 0.5*kept)
	return short, conf
}
