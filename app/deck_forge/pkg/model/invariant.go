package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvariant Deck 不满足交付约束
var ErrInvariant = errors.New("deck invariant violated")

// Validate 检查交给渲染器前必须成立的约束
func (d *Deck) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil deck", ErrInvariant)
	}
	if len(d.Slides) == 0 {
		return fmt.Errorf("%w: no slides", ErrInvariant)
	}
	for i, s := range d.Slides {
		if s.Ordinal != i {
			return fmt.Errorf("%w: slide %d has ordinal %d", ErrInvariant, i, s.Ordinal)
		}
		if strings.TrimSpace(s.Title) == "" {
			return fmt.Errorf("%w: slide %d has empty title", ErrInvariant, i)
		}
		if !s.Asset.Settled() {
			return fmt.Errorf("%w: slide %d has unresolved visual asset", ErrInvariant, i)
		}
	}
	return nil
}
