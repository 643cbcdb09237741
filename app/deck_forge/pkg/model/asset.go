package model

// AssetState 配图状态
type AssetState string

const (
	AssetResolved    AssetState = "resolved"
	AssetPlaceholder AssetState = "placeholder"
)

// PlaceholderProvider 占位图的来源标识
const PlaceholderProvider = "placeholder"

// VisualAsset 幻灯片配图引用，至少可以落到占位状态
type VisualAsset struct {
	Keywords []string   `json:"keywords"`
	Ref      string     `json:"ref,omitempty"`
	State    AssetState `json:"state"`
	Provider string     `json:"provider"`
	Reason   string     `json:"reason,omitempty"` // 占位原因
}

func ResolvedAsset(keywords []string, ref, provider string) *VisualAsset {
	return &VisualAsset{Keywords: keywords, Ref: ref, State: AssetResolved, Provider: provider}
}

func PlaceholderAsset(keywords []string, reason string) *VisualAsset {
	return &VisualAsset{Keywords: keywords, State: AssetPlaceholder, Provider: PlaceholderProvider, Reason: reason}
}

func (a *VisualAsset) IsPlaceholder() bool {
	return a != nil && a.State == AssetPlaceholder
}

// Settled 已解析（有引用）或明确为占位
func (a *VisualAsset) Settled() bool {
	if a == nil {
		return false
	}
	switch a.State {
	case AssetResolved:
		return a.Ref != ""
	case AssetPlaceholder:
		return true
	}
	return false
}

func (a *VisualAsset) Clone() *VisualAsset {
	if a == nil {
		return nil
	}
	out := *a
	out.Keywords = append([]string(nil), a.Keywords...)
	return &out
}
