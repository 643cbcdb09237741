package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// Refiner 基于 LLM 的要点精炼
type Refiner struct {
	client *Client
}

func NewRefiner(c *Client) *Refiner {
	return &Refiner{client: c}
}

func (r *Refiner) Name() string {
	return "llm:" + r.client.Name()
}

type refineResponse struct {
	Refinements []struct {
		ID         string  `json:"id"`
		Refined    string  `json:"refined"`
		Confidence float64 `json:"confidence"`
	} `json:"refinements"`
}

const refinePrompt = `Rewrite each bullet point below so it is clearer and more concise for a slide, in %s.
Keep every number and proper noun. Do not merge or split bullets.
For each bullet give a confidence between 0 and 1 that the rewrite keeps the original meaning.
Omit bullets that need no change.

Bullets (id<TAB>text):
%s
Return JSON:
{"refinements": [{"id": "s0/b0", "refined": "rewritten text", "confidence": 0.9}]}`

func (r *Refiner) Refine(ctx context.Context, blocks []model.BlockRef, lang model.Language) ([]model.Refinement, error) {
	var sb strings.Builder
	for _, b := range blocks {
		fmt.Fprintf(&sb, "%s\t%s\n", b.ID, b.Text)
	}
	var resp refineResponse
	if err := r.client.GenerateJSON(ctx, fmt.Sprintf(refinePrompt, languageName(lang), sb.String()), &resp); err != nil {
		return nil, err
	}

	out := make([]model.Refinement, 0, len(resp.Refinements))
	for _, item := range resp.Refinements {
		id, err := parseBlockID(item.ID)
		if err != nil {
			continue
		}
		out = append(out, model.Refinement{Block: id, Refined: item.Refined, Confidence: item.Confidence})
	}
	return out, nil
}

func parseBlockID(s string) (model.BlockID, error) {
	var id model.BlockID
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "s%d/b%d", &id.Slide, &id.Block); err != nil {
		return id, fmt.Errorf("invalid block id %q: %w", s, err)
	}
	return id, nil
}
