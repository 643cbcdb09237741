package fallback

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

const maxTitleWords = 8

// Outline 未配置模型时的启发式大纲：按段落切分，首页为标题页，末页为总结页
type Outline struct{}

func NewOutline() *Outline {
	return &Outline{}
}

func (Outline) Name() string { return "heuristic" }

// section 一个段落及其所属标题
type section struct {
	heading string
	lines   []string
}

var (
	listMarkerRe = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)
	sentenceRe   = regexp.MustCompile(`[.!?。]+\s+`)
)

func (Outline) GenerateOutline(ctx context.Context, text string, slideCount int, lang model.Language) (*model.Deck, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sections := splitSections(text)
	if len(sections) == 0 {
		return nil, errors.New("input text has no content")
	}
	if slideCount < model.MinSlideCount {
		slideCount = model.MinSlideCount
	}

	topic := sections[0].heading
	if topic == "" {
		topic = headline(sections[0].lines[0])
	}
	deck := &model.Deck{Meta: model.DeckMeta{Topic: topic, Language: lang, TargetSlideCount: slideCount}}
	deck.Slides = append(deck.Slides, model.Slide{
		Kind:   model.SlideTitle,
		Title:  topic,
		Blocks: []model.ContentBlock{model.Paragraph(firstSentence(sections[0].lines[0]))},
	})

	var summary []model.ContentBlock
	for _, group := range distribute(sections, slideCount-2) {
		slide := model.Slide{Kind: model.SlideContent}
		for _, sec := range group {
			if slide.Title == "" {
				slide.Title = sec.heading
			}
			for _, line := range sec.lines {
				for _, b := range bullets(line) {
					slide.Blocks = append(slide.Blocks, model.Bullet(b))
				}
			}
		}
		if len(slide.Blocks) == 0 {
			continue
		}
		if slide.Title == "" {
			slide.Title = headline(slide.Blocks[0].Text)
		}
		deck.Slides = append(deck.Slides, slide)
		summary = append(summary, model.Bullet(slide.Title))
	}

	deck.Slides = append(deck.Slides, model.Slide{
		Kind:   model.SlideConclusion,
		Title:  conclusionTitle(lang),
		Blocks: summary,
	})
	for i := range deck.Slides {
		deck.Slides[i].Ordinal = i
	}
	return deck, nil
}

// splitSections 以空行分段，以 markdown 标题开启新的小节
func splitSections(text string) []section {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []section
	heading := ""
	for _, para := range strings.Split(text, "\n\n") {
		var lines []string
		for _, line := range strings.Split(para, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "#") {
				heading = strings.TrimSpace(strings.TrimLeft(line, "#"))
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			continue
		}
		out = append(out, section{heading: heading, lines: lines})
		heading = ""
	}
	return out
}

// distribute 把段落按顺序尽量均匀地分到 n 页
func distribute(sections []section, n int) [][]section {
	if n <= 0 {
		return nil
	}
	if n > len(sections) {
		n = len(sections)
	}
	out := make([][]section, n)
	for i, s := range sections {
		idx := i * n / len(sections)
		out[idx] = append(out[idx], s)
	}
	return out
}

// bullets 列表行保持一行一条；普通段落按句切分
func bullets(line string) []string {
	if listMarkerRe.MatchString(line) {
		return []string{strings.TrimSpace(listMarkerRe.ReplaceAllString(line, ""))}
	}
	var out []string
	for _, s := range splitSentences(line) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func splitSentences(s string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceRe.FindAllStringIndex(s, -1) {
		out = append(out, strings.TrimSpace(s[last:loc[1]]))
		last = loc[1]
	}
	if rest := strings.TrimSpace(s[last:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

func firstSentence(s string) string {
	if parts := splitSentences(s); len(parts) > 0 {
		return parts[0]
	}
	return s
}

// headline 取首句前若干词作为标题
func headline(s string) string {
	s = listMarkerRe.ReplaceAllString(firstSentence(s), "")
	words := strings.Fields(s)
	if len(words) > maxTitleWords {
		words = words[:maxTitleWords]
	}
	title := strings.TrimRightFunc(strings.Join(words, " "), func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	return capitalize(title)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func conclusionTitle(lang model.Language) string {
	if lang == model.LanguageVI {
		return "Kết luận"
	}
	return "Conclusion"
}
