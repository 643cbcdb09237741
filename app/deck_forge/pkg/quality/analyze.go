package quality

import "strings"

// Action 文本质量建议的处理方式
type Action string

const (
	ActionNone      Action = "none"
	ActionSummarize Action = "summarize"
	ActionClarify   Action = "clarify"
)

const (
	maxWords          = 40
	longWordRunes     = 12
	longWordRatio     = 0.15
	summarizePenalty  = 0.3
	clarifyPenalty    = 0.2
	minSlideTextScore = 0.1
)

// Analysis 单段文本的规则评分
type Analysis struct {
	Score  float64 `json:"score"`
	Action Action  `json:"action"`
	Reason string  `json:"reason,omitempty"`
	Words  int     `json:"words"`
}

// Analyze 轻量启发式：过长建议摘要，长词过多建议改写。两条规则只命中第一条
func Analyze(text string) Analysis {
	words := strings.Fields(text)
	a := Analysis{Score: 1.0, Action: ActionNone, Words: len(words)}
	if len(words) > maxWords {
		a.Score -= summarizePenalty
		a.Action = ActionSummarize
		a.Reason = "text is too long for one slide"
		return a
	}
	if len(words) == 0 {
		return a
	}
	long := 0
	for _, w := range words {
		if len([]rune(w)) > longWordRunes {
			long++
		}
	}
	if float64(long)/float64(len(words)) > longWordRatio {
		a.Score -= clarifyPenalty
		a.Action = ActionClarify
		a.Reason = "too many complex words"
	}
	return a
}

// SlideScore 每个内容块的扣分累加到页上，下限 0.1
func SlideScore(texts []string) float64 {
	score := 1.0
	for _, t := range texts {
		score -= 1.0 - Analyze(t).Score
	}
	return max(score, minSlideTextScore)
}
