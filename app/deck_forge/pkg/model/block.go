package model

import "fmt"

// BlockKind 内容块类型
type BlockKind string

const (
	BlockBullet        BlockKind = "bullet"
	BlockParagraph     BlockKind = "paragraph"
	BlockRefinedBullet BlockKind = "refined_bullet"
)

// ContentBlock 内容块。RefinedBullet 保留原文，Refined 与 Confidence 仅对其有效
type ContentBlock struct {
	Kind       BlockKind `json:"kind"`
	Text       string    `json:"text"`
	Refined    string    `json:"refined,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
}

func Bullet(text string) ContentBlock {
	return ContentBlock{Kind: BlockBullet, Text: text}
}

func Paragraph(text string) ContentBlock {
	return ContentBlock{Kind: BlockParagraph, Text: text}
}

func RefinedBullet(original, refined string, confidence float64) ContentBlock {
	return ContentBlock{Kind: BlockRefinedBullet, Text: original, Refined: refined, Confidence: confidence}
}

// Display 返回下游应使用的文本
func (b ContentBlock) Display() string {
	if b.Kind == BlockRefinedBullet && b.Refined != "" {
		return b.Refined
	}
	return b.Text
}

// BlockID 内容块在 Deck 中的位置
type BlockID struct {
	Slide int `json:"slide"`
	Block int `json:"block"`
}

func (id BlockID) String() string {
	return fmt.Sprintf("s%d/b%d", id.Slide, id.Block)
}

// BlockRef 交给精炼能力的只读内容块
type BlockRef struct {
	ID   BlockID `json:"id"`
	Text string  `json:"text"`
}

// Bullets 列出 Deck 中所有待精炼的要点
func (d *Deck) Bullets() []BlockRef {
	var out []BlockRef
	for _, s := range d.Slides {
		for j, b := range s.Blocks {
			if b.Kind != BlockBullet {
				continue
			}
			out = append(out, BlockRef{ID: BlockID{Slide: s.Ordinal, Block: j}, Text: b.Text})
		}
	}
	return out
}

// AcceptRefinement 置信度门限判定
func AcceptRefinement(confidence, threshold float64) bool {
	return confidence >= threshold
}
