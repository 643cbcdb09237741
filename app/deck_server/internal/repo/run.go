package repo

import (
	"context"

	"github.com/iWorld-y/deck_forge/app/deck_server/internal/domain"
)

// RunRepo 运行记录仓库接口
type RunRepo interface {
	// SaveRun 保存一次运行
	SaveRun(ctx context.Context, run *domain.Run) error
	// GetRun 根据ID获取运行详情，不存在时返回 model.ErrNotFound
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	// ListRuns 分页获取运行摘要列表
	ListRuns(ctx context.Context, page, pageSize int) ([]*domain.RunSummary, int, error)
}
