package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/engine"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/render"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/source"
	"github.com/iWorld-y/deck_forge/app/deck_server/internal/domain"
	"github.com/iWorld-y/deck_forge/app/deck_server/internal/repo"
)

// Generator 流水线引擎
type Generator interface {
	Run(ctx context.Context, text string, cfg model.StageConfig, opts engine.RunOptions) (*model.Deck, *model.QualityReport, error)
}

// Loader 输入加载
type Loader interface {
	Load(ctx context.Context, ref string) (*source.Document, error)
}

// DeckUseCase 生成与查询演示文稿
type DeckUseCase struct {
	gen      Generator
	loader   Loader
	repo     repo.RunRepo
	renderer render.Renderer
	log      *log.Helper
}

// NewDeckUseCase 创建业务逻辑实例
func NewDeckUseCase(gen Generator, loader Loader, repo repo.RunRepo, logger log.Logger) *DeckUseCase {
	return &DeckUseCase{
		gen:      gen,
		loader:   loader,
		repo:     repo,
		renderer: render.NewHTML(),
		log:      log.NewHelper(logger),
	}
}

// Generate 读取输入、运行流水线并保存结果。保存失败不影响返回的 Deck
func (uc *DeckUseCase) Generate(ctx context.Context, in *domain.GenerateInput) (*domain.Run, error) {
	var (
		doc *source.Document
		err error
	)
	if u := strings.TrimSpace(in.URL); u != "" {
		doc, err = uc.loader.Load(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", u, err)
		}
	} else if doc, err = source.FromText(in.Text); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	deck, report, err := uc.gen.Run(ctx, doc.Text, in.Config, engine.RunOptions{
		RunID: runID,
		ProgressCallback: func(status string, percent int) {
			uc.log.WithContext(ctx).Debugf("run %s: [%d%%] %s", runID, percent, status)
		},
	})
	if err != nil {
		return nil, err
	}

	run := &domain.Run{
		ID:        runID,
		Topic:     deck.Meta.Topic,
		Language:  string(deck.Meta.Language),
		Degraded:  report.IsDegraded(),
		Deck:      deck,
		Report:    report,
		CreatedAt: deck.Meta.GeneratedAt,
	}
	if err := uc.repo.SaveRun(ctx, run); err != nil {
		uc.log.WithContext(ctx).Errorf("failed to save run %s: %v", runID, err)
	}
	return run, nil
}

// List 分页列出运行摘要
func (uc *DeckUseCase) List(ctx context.Context, page, pageSize int) ([]*domain.RunSummary, int, error) {
	return uc.repo.ListRuns(ctx, page, pageSize)
}

// Get 根据ID获取运行详情
func (uc *DeckUseCase) Get(ctx context.Context, id string) (*domain.Run, error) {
	return uc.repo.GetRun(ctx, id)
}

// Preview 把保存的 Deck 渲染为 HTML
func (uc *DeckUseCase) Preview(ctx context.Context, id string, w io.Writer) error {
	run, err := uc.repo.GetRun(ctx, id)
	if err != nil {
		return err
	}
	return uc.renderer.Render(ctx, run.Deck, w)
}
