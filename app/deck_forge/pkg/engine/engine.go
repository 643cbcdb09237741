package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/cache"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/fallback"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/logger"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/quality"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/stage"
)

var (
	ErrInvalidConfig = errors.New("invalid stage config")
	ErrEmptyInput    = errors.New("input text is empty")
)

// PipelineFailure 大纲阶段失败且没有部分骨架，整个运行失败
type PipelineFailure struct {
	RunID string
	Err   error
}

func (e *PipelineFailure) Error() string {
	return fmt.Sprintf("pipeline %s failed: %v", e.RunID, e.Err)
}

func (e *PipelineFailure) Unwrap() error {
	return e.Err
}

// Capabilities 外部能力，在配置阶段一次性选定
type Capabilities struct {
	Outline          stage.OutlineGenerator
	Refiner          stage.Refiner
	Images           stage.ImageSearcher
	FallbackKeywords []string
	ImageWorkers     int
}

// Engine 流水线编排器：大纲先行，其余阶段并发，增量按固定顺序合并
type Engine struct {
	outline   stage.Stage
	dependent []stage.Stage
	runner    *stage.Runner
	tracer    trace.Tracer
	now       func() time.Time
}

// New 未提供大纲能力时使用启发式大纲；其余未提供的能力对应的阶段不会运行，在报告中记为跳过
func New(caps Capabilities, c cache.Cache) *Engine {
	if caps.Outline == nil {
		caps.Outline = fallback.NewOutline()
	}
	e := &Engine{
		outline: stage.NewOutline(caps.Outline),
		runner:  stage.NewRunner(c),
		tracer:  otel.Tracer("deck_forge/engine"),
		now:     time.Now,
	}
	if caps.Refiner != nil {
		e.dependent = append(e.dependent, stage.NewRefine(caps.Refiner))
	}
	e.dependent = append(e.dependent, stage.NewDetect())
	if caps.Images != nil {
		e.dependent = append(e.dependent, stage.NewResolve(caps.Images, caps.FallbackKeywords, caps.ImageWorkers))
	}
	return e
}

// RunOptions 运行选项
type RunOptions struct {
	RunID            string
	ProgressCallback func(status string, progress int)
}

// progress 阶段协程并发上报，回调串行执行
type progress struct {
	mu sync.Mutex
	fn func(string, int)
}

func (p *progress) report(status string, pct int) {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fn(status, pct)
}

// Run 执行一次流水线。只有大纲阶段失败且没有部分骨架时返回 *PipelineFailure；
// 其余阶段的失败都降级处理，体现在质量报告中。
// 调用方取消时仍返回由已完成阶段合并出的 Deck
func (e *Engine) Run(ctx context.Context, text string, cfg model.StageConfig, opts RunOptions) (*model.Deck, *model.QualityReport, error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil, ErrEmptyInput
	}
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg.Language = model.ResolveLanguage(text, cfg.Language)

	ctx, span := e.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("run.target_slides", cfg.TargetSlideCount),
		attribute.String("run.language", string(cfg.Language)),
	))
	defer span.End()

	log := logger.Log.WithField("run", runID)
	prog := &progress{fn: opts.ProgressCallback}
	prog.report("generating outline", 5)
	log.Infof("开始生成演示文稿: %d 页, 语言 %s", cfg.TargetSlideCount, cfg.Language)

	outlineRes := e.runner.Run(ctx, e.outline, stage.Input{Text: text, Config: cfg}, cfg.PerStageTimeout)
	if outlineRes.Delta == nil || outlineRes.Delta.Skeleton == nil {
		err := outlineRes.Err
		if err == nil {
			err = &stage.Error{Stage: model.StageOutline, Kind: model.FailureGeneration, Err: errors.New("no skeleton")}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(stage.KindOf(err)))
		log.Errorf("大纲生成失败，运行终止: %v", err)
		return nil, nil, &PipelineFailure{RunID: runID, Err: err}
	}
	if outlineRes.Err != nil {
		log.Warnf("大纲生成部分失败，使用部分骨架: %v", outlineRes.Err)
	}

	deck := outlineRes.Delta.Skeleton.Clone()
	mlog := model.NewMergeLog()
	mlog.Attempted[model.StageOutline] = len(deck.Slides)
	mlog.Applied[model.StageOutline] = len(deck.Slides)
	prog.report("enriching slides", 30)

	results := append([]model.StageResult{outlineRes}, e.runDependents(ctx, text, deck, cfg, prog)...)
	prog.report("merging", 90)

	byStage := make(map[model.StageID]model.StageResult, len(results))
	for _, r := range results {
		byStage[r.Stage] = r
	}
	for _, id := range model.MergeOrder {
		res, ok := byStage[id]
		if !ok || res.Err != nil || res.Delta == nil {
			continue
		}
		switch id {
		case model.StageRefine:
			applyRefinements(deck, res.Delta.Refinements, cfg.RefinementConfidenceThreshold, mlog)
		case model.StageDetect:
			applyVisuals(deck, res.Delta.Visuals, mlog)
		case model.StageResolve:
			applyAssets(deck, res.Delta.Assets, mlog)
		}
	}

	repair(deck, placeholderReason(byStage, cfg))
	deck.Meta.Language = cfg.Language
	deck.Meta.TargetSlideCount = cfg.TargetSlideCount
	deck.Meta.GeneratedAt = e.now().UTC()

	report := quality.Score(deck, results, mlog, cfg)
	deck.Report = &report
	if err := deck.Validate(); err != nil {
		span.RecordError(err)
		return nil, nil, fmt.Errorf("run %s: %w", runID, err)
	}

	if err := ctx.Err(); err != nil {
		log.Warnf("运行被取消，返回已合并的结果: %v", err)
	}
	span.SetAttributes(attribute.Int("run.slides", len(deck.Slides)), attribute.Bool("run.degraded", report.IsDegraded()))
	log.WithFields(logrus.Fields{
		"slides":     len(deck.Slides),
		"confidence": report.AverageConfidence,
		"degraded":   len(report.Degraded),
	}).Info("演示文稿生成完成")
	prog.report("completed", 100)
	return deck, &report, nil
}

// runDependents 依赖大纲的阶段并发执行，各自拿到骨架的独立副本
func (e *Engine) runDependents(ctx context.Context, text string, deck *model.Deck, cfg model.StageConfig, prog *progress) []model.StageResult {
	var stages []stage.Stage
	for _, st := range e.dependent {
		if cfg.Enabled(st.ID()) {
			stages = append(stages, st)
		}
	}
	out := make([]model.StageResult, len(stages))
	var (
		mu   sync.Mutex
		done int
	)

	var g errgroup.Group
	for i, st := range stages {
		in := stage.Input{Text: text, Deck: deck.Clone(), Config: cfg}
		g.Go(func() error {
			out[i] = e.runner.Run(ctx, st, in, cfg.PerStageTimeout)
			mu.Lock()
			done++
			prog.report(fmt.Sprintf("stage %s finished", st.ID()), 30+done*60/len(stages))
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func applyRefinements(deck *model.Deck, refs []model.Refinement, threshold float64, mlog *model.MergeLog) {
	for _, r := range refs {
		mlog.Attempted[model.StageRefine]++
		b := blockAt(deck, r.Block)
		if b == nil || b.Kind != model.BlockBullet {
			continue
		}
		if !model.AcceptRefinement(r.Confidence, threshold) {
			mlog.Rejected = append(mlog.Rejected, model.RejectedRefinement{
				Block:      r.Block,
				Original:   b.Text,
				Proposed:   r.Refined,
				Confidence: r.Confidence,
			})
			continue
		}
		*b = model.RefinedBullet(b.Text, r.Refined, r.Confidence)
		mlog.Applied[model.StageRefine]++
	}
}

func blockAt(deck *model.Deck, id model.BlockID) *model.ContentBlock {
	if id.Slide < 0 || id.Slide >= len(deck.Slides) {
		return nil
	}
	blocks := deck.Slides[id.Slide].Blocks
	if id.Block < 0 || id.Block >= len(blocks) {
		return nil
	}
	return &blocks[id.Block]
}

func applyVisuals(deck *model.Deck, patches []model.VisualPatch, mlog *model.MergeLog) {
	for _, p := range patches {
		mlog.Attempted[model.StageDetect]++
		if p.Ordinal < 0 || p.Ordinal >= len(deck.Slides) || p.Visual == nil {
			continue
		}
		deck.Slides[p.Ordinal].Visual = p.Visual.Clone()
		mlog.Applied[model.StageDetect]++
	}
}

func applyAssets(deck *model.Deck, patches []model.AssetPatch, mlog *model.MergeLog) {
	for _, p := range patches {
		mlog.Attempted[model.StageResolve]++
		if p.Ordinal < 0 || p.Ordinal >= len(deck.Slides) || !p.Asset.Settled() {
			continue
		}
		deck.Slides[p.Ordinal].Asset = p.Asset.Clone()
		mlog.Applied[model.StageResolve]++
	}
}

func placeholderReason(byStage map[model.StageID]model.StageResult, cfg model.StageConfig) string {
	if !cfg.Enabled(model.StageResolve) {
		return "image resolution disabled"
	}
	res, ok := byStage[model.StageResolve]
	switch {
	case !ok:
		return "image resolution unavailable"
	case res.Err != nil:
		return res.Err.Error()
	}
	return "no image resolved"
}

// repair 保证交给渲染端的 Deck 满足不变量：序号连续、标题非空、配图已落定
func repair(deck *model.Deck, reason string) {
	for i := range deck.Slides {
		s := &deck.Slides[i]
		s.Ordinal = i
		if strings.TrimSpace(s.Title) == "" {
			s.Title = synthesizeTitle(s, i)
		}
		if !s.Asset.Settled() {
			s.Asset = model.PlaceholderAsset(stage.SlideKeywords(*s), reason)
		}
	}
	if deck.Meta.Topic == "" && len(deck.Slides) > 0 {
		deck.Meta.Topic = deck.Slides[0].Title
	}
}

func synthesizeTitle(s *model.Slide, i int) string {
	for _, b := range s.Blocks {
		words := strings.Fields(b.Display())
		if len(words) == 0 {
			continue
		}
		if len(words) > 6 {
			words = words[:6]
		}
		return strings.Join(words, " ")
	}
	return fmt.Sprintf("Slide %d", i+1)
}
