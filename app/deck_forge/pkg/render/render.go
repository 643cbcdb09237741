package render

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// Renderer 渲染边界：接收完成的 Deck，输出文档
type Renderer interface {
	Render(ctx context.Context, deck *model.Deck, w io.Writer) error
}

// New 按格式名创建渲染器
func New(format string) (Renderer, error) {
	switch format {
	case "", "json":
		return JSON{Indent: true}, nil
	case "html":
		return NewHTML(), nil
	}
	return nil, fmt.Errorf("unknown output format: %s", format)
}

// checkDeck 不满足不变量的 Deck 不交给渲染端
func checkDeck(deck *model.Deck) error {
	if deck == nil {
		return fmt.Errorf("nil deck")
	}
	if err := deck.Validate(); err != nil {
		return fmt.Errorf("deck rejected by renderer: %w", err)
	}
	return nil
}

// JSON 输出中间表示本身
type JSON struct {
	Indent bool
}

func (r JSON) Render(ctx context.Context, deck *model.Deck, w io.Writer) error {
	if err := checkDeck(deck); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	if r.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(deck)
}
