// Package detect 从要点文本中识别数值序列与流程/组织/时间线结构，纯本地计算
package detect

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// Priority 歧义时的选择顺序，越靠前越具体
var Priority = []model.VisualKind{
	model.VisualPie,
	model.VisualLine,
	model.VisualBar,
	model.VisualProcess,
	model.VisualTimeline,
	model.VisualOrg,
}

func rank(kind model.VisualKind) int {
	for i, k := range Priority {
		if k == kind {
			return i
		}
	}
	return len(Priority)
}

// Classifier 按配置编译好的识别器，可并发使用
type Classifier struct {
	cfg    model.DetectionConfig
	stepRe *regexp.Regexp
	orgRe  *regexp.Regexp
	levels map[string]int
}

// New 编译关键词表。空配置字段使用默认值
func New(cfg model.DetectionConfig) *Classifier {
	cfg = model.StageConfig{Detection: cfg}.Normalize().Detection
	c := &Classifier{cfg: cfg, levels: make(map[string]int)}

	c.stepRe = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(` + alternation(cfg.StepKeywords) + `)\s*(\d+)\s*[:.)\-–]\s*`)

	var roles []string
	for level, words := range cfg.OrgLevels {
		for _, w := range words {
			key := foldSpaces(strings.ToLower(w))
			if _, ok := c.levels[key]; !ok {
				c.levels[key] = level
			}
			roles = append(roles, w)
		}
	}
	c.orgRe = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(` + alternation(roles) + `)((?:\s+[\p{L}&]+){0,3})\s*[:\-–]\s*`)
	return c
}

// alternation 关键词按长度降序拼成正则分支，词内空白放宽为 \s*
func alternation(words []string) string {
	sorted := append([]string(nil), words...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	parts := make([]string, 0, len(sorted))
	for _, w := range sorted {
		fields := strings.Fields(w)
		for i, f := range fields {
			fields[i] = regexp.QuoteMeta(f)
		}
		if len(fields) > 0 {
			parts = append(parts, strings.Join(fields, `\s*`))
		}
	}
	return strings.Join(parts, "|")
}

func foldSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// Classify 返回最具体的候选；没有可识别结构时返回 false
func (c *Classifier) Classify(text string) (*model.StructuredVisual, bool) {
	cands := c.Candidates(text)
	if len(cands) == 0 {
		return nil, false
	}
	return cands[0], true
}

// Candidates 所有候选，按 Priority 排序，同级保持出现顺序
func (c *Classifier) Candidates(text string) []*model.StructuredVisual {
	var out []*model.StructuredVisual
	out = append(out, c.numeric(text)...)
	if v := c.process(text); v != nil {
		out = append(out, v)
	}
	if v := c.timeline(text); v != nil {
		out = append(out, v)
	}
	if v := c.org(text); v != nil {
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i].Kind) < rank(out[j].Kind) })
	return out
}

// segments 取每个标记之后、下一个标记或行尾之前的文本
func segments(text string, locs [][]int) []string {
	out := make([]string, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		seg := text[loc[1]:end]
		if nl := strings.IndexAny(seg, "\n\r"); nl >= 0 {
			seg = seg[:nl]
		}
		out[i] = strings.Trim(strings.TrimSpace(seg), ".,;")
	}
	return out
}

func nearly(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
