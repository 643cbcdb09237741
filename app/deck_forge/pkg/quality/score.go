package quality

import (
	"fmt"
	"math"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/stage"
)

// Score 从合并后的 Deck 与各阶段结果计算质量报告，纯函数
func Score(deck *model.Deck, results []model.StageResult, log *model.MergeLog, cfg model.StageConfig) model.QualityReport {
	if log == nil {
		log = model.NewMergeLog()
	}
	byStage := make(map[model.StageID]model.StageResult, len(results))
	for _, r := range results {
		byStage[r.Stage] = r
	}

	var report model.QualityReport
	placeholders := placeholderSlides(deck)

	for _, id := range model.AllStages {
		stat := model.StageStat{
			Stage:     id,
			Attempted: log.Attempted[id],
			Applied:   log.Applied[id],
		}
		if stat.Attempted > 0 {
			stat.Ratio = round(float64(stat.Applied) / float64(stat.Attempted))
		}

		res, ran := byStage[id]
		switch {
		case !cfg.Enabled(id):
			stat.Status = model.StatusSkipped
			report.Degraded = append(report.Degraded, model.Degradation{Stage: id, Message: "stage disabled"})
		case !ran:
			stat.Status = model.StatusSkipped
			report.Degraded = append(report.Degraded, model.Degradation{Stage: id, Message: "stage did not run"})
		case res.Err != nil:
			stat.Status = model.StatusFailed
			if res.Delta != nil && !res.Delta.Empty() {
				stat.Status = model.StatusDegraded
			}
			stat.Error = res.Err.Error()
			report.Degraded = append(report.Degraded, model.Degradation{Stage: id, Kind: kindOf(id, res.Err), Message: res.Err.Error()})
		default:
			stat.Status = model.StatusOK
		}
		if ran {
			stat.CacheHit = res.CacheHit
			stat.Duration = res.Duration
		}

		if id == model.StageResolve && stat.Status == model.StatusOK && len(placeholders) > 0 {
			stat.Status = model.StatusDegraded
			report.Degraded = append(report.Degraded, model.Degradation{
				Stage:   id,
				Kind:    model.FailureResolution,
				Message: fmt.Sprintf("%d of %d slides use a placeholder image", len(placeholders), len(deck.Slides)),
			})
		}
		report.Stages = append(report.Stages, stat)
	}

	report.Rejected = append(report.Rejected, log.Rejected...)
	report.AverageConfidence = averageConfidence(deck)
	report.TextScore, report.Flags = slideFlags(deck, log.Rejected, placeholders)
	return report
}

func kindOf(id model.StageID, err error) model.FailureKind {
	if k := stage.KindOf(err); k != "" {
		return k
	}
	return model.FailureFor(id)
}

func averageConfidence(deck *model.Deck) float64 {
	if deck == nil {
		return 0
	}
	var sum float64
	var n int
	for _, s := range deck.Slides {
		for _, b := range s.Blocks {
			if b.Kind == model.BlockRefinedBullet {
				sum += b.Confidence
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return round(sum / float64(n))
}

func placeholderSlides(deck *model.Deck) map[int]bool {
	out := map[int]bool{}
	if deck == nil {
		return out
	}
	for _, s := range deck.Slides {
		if s.Asset != nil && s.Asset.IsPlaceholder() {
			out[s.Ordinal] = true
		}
	}
	return out
}

func slideFlags(deck *model.Deck, rejected []model.RejectedRefinement, placeholders map[int]bool) (float64, []model.SlideFlag) {
	if deck == nil || len(deck.Slides) == 0 {
		return 0, nil
	}
	rejectedSlides := map[int]bool{}
	for _, r := range rejected {
		rejectedSlides[r.Block.Slide] = true
	}

	var total float64
	var flags []model.SlideFlag
	for _, s := range deck.Slides {
		texts := make([]string, 0, len(s.Blocks))
		for _, b := range s.Blocks {
			texts = append(texts, b.Display())
		}
		score := SlideScore(texts)
		total += score
		if rejectedSlides[s.Ordinal] || placeholders[s.Ordinal] {
			flags = append(flags, model.SlideFlag{
				Ordinal:            s.Ordinal,
				RejectedRefinement: rejectedSlides[s.Ordinal],
				PlaceholderVisual:  placeholders[s.Ordinal],
				TextScore:          round(score),
			})
		}
	}
	return round(total / float64(len(deck.Slides))), flags
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
