package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// OutlineGenerator 基于 LLM 的大纲生成
type OutlineGenerator struct {
	client *Client
}

func NewOutlineGenerator(c *Client) *OutlineGenerator {
	return &OutlineGenerator{client: c}
}

func (g *OutlineGenerator) Name() string {
	return "llm:" + g.client.Name()
}

type outlineResponse struct {
	PresentationTitle string            `json:"presentation_title"`
	Slides            []json.RawMessage `json:"slides"`
}

type outlineSlide struct {
	SlideType       string      `json:"slide_type"`
	SlideTitle      string      `json:"slide_title"`
	SlideContent    []string    `json:"slide_content"`
	DetailedContent string      `json:"detailed_content"`
	Notes           string      `json:"notes"`
	SpeakingPoints  []string    `json:"speaking_points"`
	ImageKeywords   flexStrings `json:"image_keywords"`
}

// flexStrings 模型有时把关键词写成字符串，有时写成数组
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var list []string
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*f = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*f = out
	return nil
}

const outlinePrompt = `You are a presentation designer with years of experience.

Task: analyse the text below and produce the structure of a slide deck with %d slides, written in %s.

Text:
"""
%s
"""

Rules:
- The first slide has slide_type "title" and introduces the topic.
- The last slide has slide_type "conclusion" and summarises the deck.
- All other slides have slide_type "content".
- Each slide_content item is a complete, meaningful sentence of 15-25 words.
- Keep every number, percentage, step, date and role from the source text verbatim so they can be charted.
- image_keywords are 2-5 English words describing a fitting photo.

Return JSON in exactly this shape:
{
  "presentation_title": "overall title",
  "slides": [
    {
      "slide_type": "title|content|conclusion",
      "slide_title": "slide title",
      "slide_content": ["sentence 1", "sentence 2", "sentence 3"],
      "detailed_content": "optional paragraph of 3-5 sentences",
      "notes": "speaker notes",
      "speaking_points": ["point 1", "point 2"],
      "image_keywords": ["keyword", "keyword"]
    }
  ]
}`

func languageName(lang model.Language) string {
	if lang == model.LanguageVI {
		return "Vietnamese"
	}
	return "English"
}

// GenerateOutline 单页解析失败时返回已解析的页与错误，由大纲阶段按部分骨架处理
func (g *OutlineGenerator) GenerateOutline(ctx context.Context, text string, slideCount int, lang model.Language) (*model.Deck, error) {
	var resp outlineResponse
	prompt := fmt.Sprintf(outlinePrompt, slideCount, languageName(lang), text)
	if err := g.client.GenerateJSON(ctx, prompt, &resp); err != nil {
		return nil, err
	}

	deck := &model.Deck{Meta: model.DeckMeta{
		Topic:            strings.TrimSpace(resp.PresentationTitle),
		Language:         lang,
		TargetSlideCount: slideCount,
	}}
	var errs []error
	for i, raw := range resp.Slides {
		var s outlineSlide
		if err := json.Unmarshal(raw, &s); err != nil {
			errs = append(errs, fmt.Errorf("slide %d: %w", i+1, err))
			continue
		}
		slide, err := s.toSlide()
		if err != nil {
			errs = append(errs, fmt.Errorf("slide %d: %w", i+1, err))
			continue
		}
		slide.Ordinal = len(deck.Slides)
		deck.Slides = append(deck.Slides, slide)
	}
	if len(resp.Slides) == 0 {
		errs = append(errs, errors.New("model returned no slides"))
	}
	if len(errs) > 0 {
		if len(deck.Slides) == 0 {
			return nil, errors.Join(errs...)
		}
		return deck, errors.Join(errs...)
	}
	return deck, nil
}

func (s outlineSlide) toSlide() (model.Slide, error) {
	slide := model.Slide{
		Kind:     slideKind(s.SlideType),
		Title:    strings.TrimSpace(s.SlideTitle),
		Keywords: []string(s.ImageKeywords),
	}
	for _, c := range s.SlideContent {
		if c = strings.TrimSpace(c); c != "" {
			slide.Blocks = append(slide.Blocks, model.Bullet(c))
		}
	}
	if d := strings.TrimSpace(s.DetailedContent); d != "" {
		slide.Blocks = append(slide.Blocks, model.Paragraph(d))
	}
	if s.Notes != "" || len(s.SpeakingPoints) > 0 {
		slide.Notes = &model.SpeakerNotes{Text: strings.TrimSpace(s.Notes), Points: s.SpeakingPoints}
	}
	if slide.Title == "" && len(slide.Blocks) == 0 {
		return slide, errors.New("slide has neither title nor content")
	}
	return slide, nil
}

func slideKind(t string) model.SlideKind {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "title":
		return model.SlideTitle
	case "conclusion":
		return model.SlideConclusion
	}
	return model.SlideContent
}
