package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/cache"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/logger"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// Runner 执行阶段：先查缓存，未命中则在期限内执行并写回成功结果
type Runner struct {
	cache  cache.Cache
	tracer trace.Tracer
}

func NewRunner(c cache.Cache) *Runner {
	if c == nil {
		c = cache.Nop{}
	}
	return &Runner{cache: c, tracer: otel.Tracer("deck_forge/stage")}
}

type outcome struct {
	delta *model.Delta
	err   error
}

// partialGrace 大纲阶段超时后等待其带回部分骨架的时长
const partialGrace = 100 * time.Millisecond

// Run 在期限内返回，大纲阶段最多再等 partialGrace。
// 超时后迟到的完整结果被丢弃，只保留大纲的部分骨架
func (r *Runner) Run(ctx context.Context, st Stage, in Input, timeout time.Duration) model.StageResult {
	id := st.ID()
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "stage."+string(id), trace.WithAttributes(attribute.String("stage.id", string(id))))
	defer span.End()

	log := logger.Log.WithField("stage", id)
	key := st.Key(in)

	if res, ok := r.cache.Get(ctx, key); ok {
		res.Stage = id
		res.CacheHit = true
		res.Duration = time.Since(start)
		span.SetAttributes(attribute.Bool("stage.cache_hit", true))
		log.WithField("key", key).Debug("阶段命中缓存")
		return res
	}

	stageCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("stage panic: %v", p)}
			}
		}()
		d, err := st.Apply(stageCtx, in)
		done <- outcome{delta: d, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-stageCtx.Done():
		out = outcome{err: fmt.Errorf("%w: %w", model.ErrTimeout, stageCtx.Err())}
		if id == model.StageOutline {
			out = awaitPartial(done, out)
		}
	}

	res := model.StageResult{Stage: id, Duration: time.Since(start)}
	span.SetAttributes(attribute.Bool("stage.cache_hit", false))
	if out.err != nil {
		se := Fail(id, out.err)
		res.Err = se
		if se.Partial && !out.delta.Empty() {
			res.Delta = out.delta
		}
		span.RecordError(se)
		span.SetStatus(codes.Error, string(se.Kind))
		log.WithFields(logrus.Fields{"kind": se.Kind, "duration": res.Duration}).Warnf("阶段失败: %v", out.err)
		return res
	}

	res.Delta = out.delta
	if res.Delta == nil {
		res.Delta = &model.Delta{}
	}
	if res.Delta.Transient {
		log.WithField("key", key).Debug("结果含临时降级，不写缓存")
	} else {
		r.cache.Put(ctx, key, res)
	}
	log.WithFields(logrus.Fields{"mutations": res.Delta.Size(), "duration": res.Duration}).Info("阶段完成")
	return res
}

// awaitPartial 超时后短暂等待阶段返回；带部分骨架的失败替换超时结果
func awaitPartial(done <-chan outcome, timedOut outcome) outcome {
	timer := time.NewTimer(partialGrace)
	defer timer.Stop()
	select {
	case late := <-done:
		if IsPartial(late.err) && !late.delta.Empty() {
			return late
		}
	case <-timer.C:
	}
	return timedOut
}
