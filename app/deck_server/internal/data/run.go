package data

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/storage"
	"github.com/iWorld-y/deck_forge/app/deck_server/internal/domain"
	"github.com/iWorld-y/deck_forge/app/deck_server/internal/repo"
)

type runRepo struct {
	data *Data
	log  *log.Helper
}

func NewRunRepo(data *Data, logger log.Logger) repo.RunRepo {
	return &runRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *runRepo) SaveRun(ctx context.Context, run *domain.Run) error {
	rec := storage.NewRun(run.Deck)
	if run.ID != "" {
		rec.ID = run.ID
	}
	if err := r.data.store.SaveRun(ctx, rec); err != nil {
		return err
	}
	run.ID = rec.ID
	r.log.WithContext(ctx).Infof("saved run %s (%d slides)", rec.ID, rec.SlideCount)
	return nil
}

func (r *runRepo) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	rec, err := r.data.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.Run{
		ID:        rec.ID,
		Topic:     rec.Topic,
		Language:  string(rec.Language),
		Degraded:  rec.Degraded,
		Deck:      rec.Deck,
		Report:    reportOf(rec),
		CreatedAt: rec.CreatedAt,
	}, nil
}

func (r *runRepo) ListRuns(ctx context.Context, page, pageSize int) ([]*domain.RunSummary, int, error) {
	recs, total, err := r.data.store.ListRuns(ctx, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	summaries := make([]*domain.RunSummary, 0, len(recs))
	for _, rec := range recs {
		summaries = append(summaries, &domain.RunSummary{
			ID:         rec.ID,
			Topic:      rec.Topic,
			Language:   string(rec.Language),
			SlideCount: rec.SlideCount,
			Degraded:   rec.Degraded,
			Date:       rec.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return summaries, total, nil
}

func reportOf(rec *storage.Run) *model.QualityReport {
	if rec.Report != nil {
		return rec.Report
	}
	if rec.Deck != nil {
		return rec.Deck.Report
	}
	return nil
}
