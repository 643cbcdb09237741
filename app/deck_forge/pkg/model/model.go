package model

import (
	"strings"
	"time"
	"unicode"
)

// Language 演示文稿语言
type Language string

const (
	LanguageVI   Language = "vi"
	LanguageEN   Language = "en"
	LanguageAuto Language = "auto"
)

// Valid 判断语言取值是否合法
func (l Language) Valid() bool {
	switch l {
	case LanguageVI, LanguageEN, LanguageAuto:
		return true
	}
	return false
}

// SlideKind 幻灯片类型
type SlideKind string

const (
	SlideTitle      SlideKind = "title"
	SlideContent    SlideKind = "content"
	SlideConclusion SlideKind = "conclusion"
)

// Deck 演示文稿中间表示，一次流水线运行独占
type Deck struct {
	Meta   DeckMeta       `json:"meta"`
	Slides []Slide        `json:"slides"`
	Report *QualityReport `json:"report,omitempty"`
}

// DeckMeta 全局元数据
type DeckMeta struct {
	Topic            string    `json:"topic"`
	Language         Language  `json:"language"`
	TargetSlideCount int       `json:"target_slide_count"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// Slide 单页幻灯片
type Slide struct {
	Ordinal  int               `json:"ordinal"`
	Kind     SlideKind         `json:"kind,omitempty"`
	Title    string            `json:"title"`
	Blocks   []ContentBlock    `json:"blocks"`
	Notes    *SpeakerNotes     `json:"notes,omitempty"`
	Keywords []string          `json:"keywords,omitempty"` // 大纲阶段给出的配图关键词
	Asset    *VisualAsset      `json:"asset,omitempty"`
	Visual   *StructuredVisual `json:"visual,omitempty"`
}

// SpeakerNotes 演讲者备注
type SpeakerNotes struct {
	Text   string   `json:"text"`
	Points []string `json:"points,omitempty"`
}

// Text 拼接幻灯片所有内容块的展示文本
func (s *Slide) Text() string {
	parts := make([]string, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		if t := strings.TrimSpace(b.Display()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// Clone 深拷贝，阶段只拿到副本，避免并发修改编排器持有的 Deck
func (d *Deck) Clone() *Deck {
	if d == nil {
		return nil
	}
	out := &Deck{Meta: d.Meta}
	if d.Report != nil {
		r := d.Report.Clone()
		out.Report = &r
	}
	if d.Slides != nil {
		out.Slides = make([]Slide, len(d.Slides))
		for i := range d.Slides {
			out.Slides[i] = d.Slides[i].Clone()
		}
	}
	return out
}

// Clone 深拷贝单页
func (s Slide) Clone() Slide {
	out := s
	out.Blocks = append([]ContentBlock(nil), s.Blocks...)
	out.Keywords = append([]string(nil), s.Keywords...)
	if s.Notes != nil {
		n := *s.Notes
		n.Points = append([]string(nil), s.Notes.Points...)
		out.Notes = &n
	}
	if s.Asset != nil {
		out.Asset = s.Asset.Clone()
	}
	if s.Visual != nil {
		out.Visual = s.Visual.Clone()
	}
	return out
}

// DetectLanguage 粗略识别文本语言：出现越南语特有字母即视为 vi
func DetectLanguage(text string) Language {
	for _, r := range text {
		if r < unicode.MaxASCII {
			continue
		}
		if strings.ContainsRune("ăâđêôơưĂÂĐÊÔƠƯạảấầẩẫậắằẳẵặẹẻẽếềểễệỉịọỏốồổỗộớờởỡợụủứừửữựỳỵỷỹ", r) {
			return LanguageVI
		}
	}
	return LanguageEN
}

// ResolveLanguage 把 auto 落到具体语言
func ResolveLanguage(text string, lang Language) Language {
	if lang == LanguageVI || lang == LanguageEN {
		return lang
	}
	return DetectLanguage(text)
}
