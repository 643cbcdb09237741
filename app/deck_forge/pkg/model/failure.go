package model

import "errors"

// FailureKind 阶段失败分类
type FailureKind string

const (
	FailureGeneration  FailureKind = "GenerationError"
	FailureRefinement  FailureKind = "RefinementError"
	FailureDetection   FailureKind = "DetectionError"
	FailureResolution  FailureKind = "ResolutionError"
	FailureTimeout     FailureKind = "Timeout"
	FailureUnavailable FailureKind = "ServiceUnavailable"
)

// FailureFor 阶段对应的逻辑失败类型
func FailureFor(stage StageID) FailureKind {
	switch stage {
	case StageOutline:
		return FailureGeneration
	case StageRefine:
		return FailureRefinement
	case StageDetect:
		return FailureDetection
	default:
		return FailureResolution
	}
}

// 能力实现返回的哨兵错误，阶段据此归类失败
var (
	ErrTimeout            = errors.New("deadline exceeded")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrNotFound           = errors.New("no results")
)
