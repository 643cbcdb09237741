package service

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/engine"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/source"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/stage"
	"github.com/iWorld-y/deck_forge/app/deck_server/internal/domain"
	"github.com/iWorld-y/deck_forge/app/deck_server/internal/usecase"
)

// CreateDeckRequest 生成请求。未给出的阶段配置字段使用服务端默认值
type CreateDeckRequest struct {
	Text                          string   `json:"text"`
	URL                           string   `json:"url"`
	TargetSlideCount              int      `json:"target_slide_count"`
	Language                      string   `json:"language"`
	EnabledStages                 []string `json:"enabled_stages"`
	RefinementConfidenceThreshold *float64 `json:"refinement_confidence_threshold"`
	PerStageTimeoutMs             int      `json:"per_stage_timeout_ms"`
}

// RunReply 运行详情
type RunReply struct {
	ID        string               `json:"id"`
	Topic     string               `json:"topic"`
	Language  string               `json:"language"`
	Degraded  bool                 `json:"degraded"`
	CreatedAt string               `json:"created_at"`
	Deck      *model.Deck          `json:"deck"`
	Report    *model.QualityReport `json:"report"`
}

// RunSummary 运行摘要
type RunSummary struct {
	ID         string `json:"id"`
	Topic      string `json:"topic"`
	Language   string `json:"language"`
	SlideCount int    `json:"slide_count"`
	Degraded   bool   `json:"degraded"`
	CreatedAt  string `json:"created_at"`
}

// ListRunsReply 运行列表
type ListRunsReply struct {
	Runs  []*RunSummary `json:"runs"`
	Total int           `json:"total"`
}

type DeckService struct {
	uc       *usecase.DeckUseCase
	defaults model.StageConfig
	log      *log.Helper
}

func NewDeckService(uc *usecase.DeckUseCase, defaults model.StageConfig, logger log.Logger) *DeckService {
	return &DeckService{
		uc:       uc,
		defaults: defaults,
		log:      log.NewHelper(logger),
	}
}

// CreateDeck POST /v1/decks
func (s *DeckService) CreateDeck(ctx http.Context) error {
	var in CreateDeckRequest
	if err := ctx.Bind(&in); err != nil {
		return kerrors.BadRequest("INVALID_BODY", err.Error())
	}
	h := ctx.Middleware(func(c context.Context, req any) (any, error) {
		r := req.(*CreateDeckRequest)
		if r.Text == "" && r.URL == "" {
			return nil, kerrors.BadRequest("EMPTY_INPUT", "text or url is required")
		}
		run, err := s.uc.Generate(c, &domain.GenerateInput{Text: r.Text, URL: r.URL, Config: s.stageConfig(r)})
		if err != nil {
			return nil, s.toAPIError(err)
		}
		return toRunReply(run), nil
	})
	out, err := h(ctx, &in)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

// ListRuns GET /v1/runs
func (s *DeckService) ListRuns(ctx http.Context) error {
	page, _ := strconv.Atoi(ctx.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(ctx.Query().Get("page_size"))
	if pageSize < 1 {
		pageSize = 10
	}

	runs, total, err := s.uc.List(ctx, page, pageSize)
	if err != nil {
		return s.toAPIError(err)
	}
	list := make([]*RunSummary, 0, len(runs))
	for _, r := range runs {
		list = append(list, &RunSummary{
			ID:         r.ID,
			Topic:      r.Topic,
			Language:   r.Language,
			SlideCount: r.SlideCount,
			Degraded:   r.Degraded,
			CreatedAt:  r.Date,
		})
	}
	return ctx.Result(200, &ListRunsReply{Runs: list, Total: total})
}

// GetRun GET /v1/runs/{id}
func (s *DeckService) GetRun(ctx http.Context) error {
	run, err := s.uc.Get(ctx, ctx.Vars().Get("id"))
	if err != nil {
		return s.toAPIError(err)
	}
	return ctx.Result(200, toRunReply(run))
}

// PreviewRun GET /v1/runs/{id}/preview
func (s *DeckService) PreviewRun(ctx http.Context) error {
	var buf bytes.Buffer
	if err := s.uc.Preview(ctx, ctx.Vars().Get("id"), &buf); err != nil {
		return s.toAPIError(err)
	}
	return ctx.Blob(200, "text/html; charset=utf-8", buf.Bytes())
}

// stageConfig 请求字段覆盖服务端默认配置
func (s *DeckService) stageConfig(r *CreateDeckRequest) model.StageConfig {
	cfg := s.defaults
	if r.TargetSlideCount != 0 {
		cfg.TargetSlideCount = r.TargetSlideCount
	}
	if r.Language != "" {
		cfg.Language = model.Language(r.Language)
	}
	if r.EnabledStages != nil {
		cfg.EnabledStages = make([]model.StageID, 0, len(r.EnabledStages))
		for _, id := range r.EnabledStages {
			cfg.EnabledStages = append(cfg.EnabledStages, model.StageID(id))
		}
	}
	if r.RefinementConfidenceThreshold != nil {
		cfg.RefinementConfidenceThreshold = *r.RefinementConfidenceThreshold
	}
	if r.PerStageTimeoutMs > 0 {
		cfg.PerStageTimeout = time.Duration(r.PerStageTimeoutMs) * time.Millisecond
	}
	return cfg
}

// toAPIError 把流水线错误映射为 kratos 错误
func (s *DeckService) toAPIError(err error) error {
	var (
		se *kerrors.Error
		pf *engine.PipelineFailure
	)
	if errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, engine.ErrInvalidConfig):
		return kerrors.BadRequest("INVALID_CONFIG", err.Error())
	case errors.Is(err, engine.ErrEmptyInput), errors.Is(err, source.ErrEmpty):
		return kerrors.BadRequest("EMPTY_INPUT", err.Error())
	case errors.Is(err, model.ErrNotFound):
		return kerrors.NotFound("RUN_NOT_FOUND", err.Error())
	case errors.As(err, &pf):
		switch stage.KindOf(pf) {
		case model.FailureTimeout:
			return kerrors.GatewayTimeout("OUTLINE_TIMEOUT", err.Error())
		case model.FailureUnavailable:
			return kerrors.ServiceUnavailable("MODEL_UNAVAILABLE", err.Error())
		}
		return kerrors.InternalServer("OUTLINE_FAILED", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return kerrors.GatewayTimeout("TIMEOUT", err.Error())
	}
	s.log.Errorf("unexpected error: %v", err)
	return kerrors.InternalServer("INTERNAL", err.Error())
}

func toRunReply(run *domain.Run) *RunReply {
	return &RunReply{
		ID:        run.ID,
		Topic:     run.Topic,
		Language:  run.Language,
		Degraded:  run.Degraded,
		CreatedAt: run.CreatedAt.Format("2006-01-02 15:04:05"),
		Deck:      run.Deck,
		Report:    run.Report,
	}
}
