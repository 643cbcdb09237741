package chart

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

const (
	quickChartURL = "https://quickchart.io/chart"
	mermaidURL    = "https://quickchart.io/mermaid"
)

// Format 图表描述的格式
type Format string

const (
	FormatQuickChart Format = "quickchart"
	FormatMermaid    Format = "mermaid"
)

// Descriptor 渲染端可直接使用的图表描述
type Descriptor struct {
	Kind   model.VisualKind `json:"kind"`
	Format Format           `json:"format"`
	Source string           `json:"source"` // QuickChart 配置 JSON 或 Mermaid 源码
	URL    string           `json:"url"`    // PNG 地址
}

// Describe 柱状/饼/折线图生成 QuickChart 配置，流程/组织/时间线生成 Mermaid
func Describe(v *model.StructuredVisual) (Descriptor, error) {
	if v == nil {
		return Descriptor{}, fmt.Errorf("nil visual")
	}
	switch v.Kind {
	case model.VisualBar, model.VisualPie, model.VisualLine:
		cfg, err := json.Marshal(chartConfig(v))
		if err != nil {
			return Descriptor{}, fmt.Errorf("marshal chart config: %w", err)
		}
		q := url.Values{}
		q.Set("c", string(cfg))
		q.Set("format", "png")
		q.Set("width", "600")
		q.Set("height", "400")
		return Descriptor{Kind: v.Kind, Format: FormatQuickChart, Source: string(cfg), URL: quickChartURL + "?" + q.Encode()}, nil

	case model.VisualProcess, model.VisualOrg, model.VisualTimeline:
		src := Mermaid(v)
		q := url.Values{}
		q.Set("chart", src)
		q.Set("theme", "default")
		q.Set("format", "png")
		q.Set("width", "800")
		q.Set("height", "600")
		return Descriptor{Kind: v.Kind, Format: FormatMermaid, Source: src, URL: mermaidURL + "?" + q.Encode()}, nil
	}
	return Descriptor{}, fmt.Errorf("unsupported visual kind %q", v.Kind)
}

type dataset struct {
	Label string    `json:"label,omitempty"`
	Data  []float64 `json:"data"`
}

type config struct {
	Type string `json:"type"`
	Data struct {
		Labels   []string  `json:"labels"`
		Datasets []dataset `json:"datasets"`
	} `json:"data"`
	Options map[string]any `json:"options"`
}

func chartConfig(v *model.StructuredVisual) config {
	var c config
	plugins := map[string]any{
		"title":  map[string]any{"display": v.Title != "", "text": v.Title},
		"legend": map[string]any{"display": true},
	}
	c.Options = map[string]any{"plugins": plugins}

	switch v.Kind {
	case model.VisualPie:
		c.Type = "pie"
		c.Data.Labels = v.Labels
		pct := make([]float64, len(v.Fractions))
		for i, f := range v.Fractions {
			pct[i] = f * 100
		}
		c.Data.Datasets = []dataset{{Data: pct}}
	case model.VisualLine:
		c.Type = "line"
		c.Data.Labels = v.XAxis
	default:
		c.Type = "bar"
		c.Data.Labels = v.Labels
	}
	if v.Kind != model.VisualPie {
		for _, s := range v.Series {
			c.Data.Datasets = append(c.Data.Datasets, dataset{Label: s.Name, Data: s.Values})
		}
		c.Options["scales"] = map[string]any{"y": map[string]any{"beginAtZero": true}}
	}
	return c
}

// Mermaid 流程、组织结构与时间线的 Mermaid 源码
func Mermaid(v *model.StructuredVisual) string {
	var sb strings.Builder
	switch v.Kind {
	case model.VisualProcess:
		sb.WriteString("flowchart TD\n")
		for i, step := range v.Steps {
			fmt.Fprintf(&sb, "    step%d[\"%s\"]\n", i+1, escape(step))
		}
		for i := 1; i < len(v.Steps); i++ {
			fmt.Fprintf(&sb, "    step%d --> step%d\n", i, i+1)
		}
	case model.VisualOrg:
		sb.WriteString("flowchart TD\n")
		id := 0
		ids := map[*model.OrgNode]string{}
		var parents []string
		v.Root.Walk(func(n *model.OrgNode, depth int) {
			id++
			ids[n] = fmt.Sprintf("n%d", id)
			label := escape(n.Label)
			if n.Role != "" && n.Role != n.Label {
				label = escape(n.Role) + "<br/>" + label
			}
			fmt.Fprintf(&sb, "    %s[\"%s\"]\n", ids[n], label)
			parents = parents[:depth]
			if depth > 0 {
				fmt.Fprintf(&sb, "    %s --> %s\n", parents[depth-1], ids[n])
			}
			parents = append(parents, ids[n])
		})
	case model.VisualTimeline:
		sb.WriteString("timeline\n")
		title := v.Title
		if title == "" {
			title = "Timeline"
		}
		fmt.Fprintf(&sb, "    title %s\n", escape(title))
		for _, m := range v.Milestones {
			fmt.Fprintf(&sb, "    %s : %s\n", escape(m.Period), escape(m.Event))
		}
	}
	return sb.String()
}

func escape(s string) string {
	r := strings.NewReplacer(`"`, "'", "\n", " ", ":", " -")
	return strings.TrimSpace(r.Replace(s))
}
