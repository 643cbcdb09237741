package stage

import (
	"context"
	"errors"
	"fmt"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// Error 阶段的类型化失败
type Error struct {
	Stage   model.StageID
	Kind    model.FailureKind
	Partial bool // 大纲阶段：失败但产出了可用的部分骨架
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("stage %s: %s", e.Stage, e.Kind)
	if e.Partial {
		msg += " (partial)"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fail 把任意错误归类为阶段失败
func Fail(stage model.StageID, err error) *Error {
	var se *Error
	if errors.As(err, &se) && se.Stage == stage {
		return se
	}
	return &Error{Stage: stage, Kind: classify(stage, err), Err: err}
}

func classify(stage model.StageID, err error) model.FailureKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), errors.Is(err, model.ErrTimeout):
		return model.FailureTimeout
	case errors.Is(err, model.ErrServiceUnavailable):
		return model.FailureUnavailable
	}
	return model.FailureFor(stage)
}

// KindOf 取错误的失败类型，非阶段错误返回空
func KindOf(err error) model.FailureKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsPartial 大纲阶段是否带回了部分骨架
func IsPartial(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Partial
}
