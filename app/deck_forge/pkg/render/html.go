package render

import (
	"context"
	"fmt"
	"html/template"
	"io"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/chart"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/logger"
	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// slideView 模板使用的单页数据
type slideView struct {
	model.Slide
	Chart *chart.Descriptor
	Flag  *model.SlideFlag
}

// htmlData 用于模板渲染的数据
type htmlData struct {
	Meta   model.DeckMeta
	Slides []slideView
	Report *model.QualityReport
}

// HTML 预览渲染器，图表以 QuickChart/Mermaid 图片嵌入
type HTML struct {
	tpl *template.Template
}

func NewHTML() *HTML {
	funcs := template.FuncMap{
		"percent": func(f float64) string { return fmt.Sprintf("%.0f%%", f*100) },
		"inc":     func(i int) int { return i + 1 },
	}
	return &HTML{tpl: template.Must(template.New("deck").Funcs(funcs).Parse(htmlTpl))}
}

func (r *HTML) Render(ctx context.Context, deck *model.Deck, w io.Writer) error {
	if err := checkDeck(deck); err != nil {
		return err
	}
	data := htmlData{Meta: deck.Meta, Report: deck.Report}
	flags := map[int]*model.SlideFlag{}
	if deck.Report != nil {
		for i := range deck.Report.Flags {
			flags[deck.Report.Flags[i].Ordinal] = &deck.Report.Flags[i]
		}
	}
	for _, s := range deck.Slides {
		if err := ctx.Err(); err != nil {
			return err
		}
		v := slideView{Slide: s, Flag: flags[s.Ordinal]}
		if s.Visual != nil {
			d, err := chart.Describe(s.Visual)
			if err != nil {
				logger.Log.Warnf("第 %d 页图表无法渲染: %v", s.Ordinal, err)
			} else {
				v.Chart = &d
			}
		}
		data.Slides = append(data.Slides, v)
	}
	return r.tpl.Execute(w, data)
}

const htmlTpl = `<!DOCTYPE html>
<html lang="{{ .Meta.Language }}">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{ .Meta.Topic }}</title>
    <style>
        :root {
            --primary-color: #2563eb;
            --bg-color: #f8fafc;
            --card-bg: #ffffff;
            --text-main: #1e293b;
            --text-secondary: #64748b;
            --border-color: #e2e8f0;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            background-color: var(--bg-color);
            color: var(--text-main);
            line-height: 1.6;
            margin: 0;
            padding: 20px;
        }
        .container { max-width: 960px; margin: 0 auto; }
        header { text-align: center; margin-bottom: 40px; padding: 20px 0; }
        h1 { font-size: 2.2rem; margin: 0 0 10px 0; }
        .meta-info { color: var(--text-secondary); }
        .slide {
            background: var(--card-bg);
            border-radius: 12px;
            padding: 24px;
            margin-bottom: 30px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.05);
            border: 1px solid var(--border-color);
        }
        .slide-title { font-size: 1.6rem; font-weight: 800; color: #0f172a; margin-bottom: 16px; }
        .slide-kind { font-size: 0.8rem; color: var(--text-secondary); text-transform: uppercase; }
        .slide-body { display: grid; gap: 24px; grid-template-columns: 1fr; }
        @media (min-width: 768px) { .slide-body { grid-template-columns: 3fr 2fr; } }
        .slide ul { padding-left: 20px; }
        .slide li { margin-bottom: 8px; }
        .refined { border-bottom: 1px dotted var(--primary-color); }
        .visual img { max-width: 100%; border-radius: 8px; }
        .placeholder {
            background: #f1f5f9; color: var(--text-secondary);
            border: 1px dashed #cbd5e1; border-radius: 8px;
            padding: 40px 10px; text-align: center; font-size: 0.9rem;
        }
        .notes { margin-top: 16px; padding-top: 12px; border-top: 1px dashed var(--border-color); font-size: 0.9rem; color: #475569; }
        .flag { background: #fef2f2; color: #991b1b; padding: 2px 10px; border-radius: 20px; font-size: 0.8rem; }
        .report { background: #fff; padding: 24px; border-radius: 12px; border: 1px solid var(--border-color); }
        .report table { width: 100%; border-collapse: collapse; }
        .report td, .report th { text-align: left; padding: 6px; border-bottom: 1px solid #f1f5f9; }
        .status-ok { color: #166534; }
        .status-degraded { color: #a16207; }
        .status-failed { color: #991b1b; }
        .status-skipped { color: var(--text-secondary); }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>{{ .Meta.Topic }}</h1>
            <div class="meta-info">{{ len .Slides }} slides • {{ .Meta.Language }} • {{ .Meta.GeneratedAt.Format "2006-01-02 15:04" }}</div>
        </header>

        {{range .Slides}}
        <div class="slide" id="slide-{{ .Ordinal }}">
            <div class="slide-kind">{{ inc .Ordinal }} • {{ .Kind }}{{if .Flag}}{{if .Flag.RejectedRefinement}} <span class="flag">refinement rejected</span>{{end}}{{end}}</div>
            <div class="slide-title">{{ .Title }}</div>
            <div class="slide-body">
                <div>
                    <ul>
                        {{range .Blocks}}
                        {{if eq .Kind "refined_bullet"}}<li class="refined" title="{{ .Text }} ({{ percent .Confidence }})">{{ .Display }}</li>
                        {{else if eq .Kind "paragraph"}}<p>{{ .Text }}</p>
                        {{else}}<li>{{ .Text }}</li>{{end}}
                        {{end}}
                    </ul>
                </div>
                <div class="visual">
                    {{if .Chart}}<img src="{{ .Chart.URL }}" alt="{{ .Chart.Kind }}">
                    {{else if .Asset}}{{if eq .Asset.State "resolved"}}<img src="{{ .Asset.Ref }}" alt="{{ range .Asset.Keywords }}{{ . }} {{ end }}">
                    {{else}}<div class="placeholder">{{ range .Asset.Keywords }}{{ . }} {{ end }}<br>{{ .Asset.Reason }}</div>{{end}}{{end}}
                </div>
            </div>
            {{if .Notes}}<div class="notes">{{ .Notes.Text }}{{if .Notes.Points}}<ul>{{range .Notes.Points}}<li>{{ . }}</li>{{end}}</ul>{{end}}</div>{{end}}
        </div>
        {{end}}

        {{if .Report}}
        <div class="report">
            <h3>Quality</h3>
            <p>Average confidence: {{ percent .Report.AverageConfidence }} • Text score: {{ percent .Report.TextScore }}</p>
            <table>
                <tr><th>Stage</th><th>Status</th><th>Applied</th><th>Cache</th></tr>
                {{range .Report.Stages}}
                <tr><td>{{ .Stage }}</td><td class="status-{{ .Status }}">{{ .Status }}</td><td>{{ .Applied }}/{{ .Attempted }}</td><td>{{if .CacheHit}}hit{{else}}miss{{end}}</td></tr>
                {{end}}
            </table>
            {{range .Report.Degraded}}<p class="status-degraded">{{ .Stage }}: {{ .Message }}</p>{{end}}
        </div>
        {{end}}
    </div>
</body>
</html>
`
