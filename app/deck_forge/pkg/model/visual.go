package model

// VisualKind 结构化图表类型
type VisualKind string

const (
	VisualBar      VisualKind = "bar_chart"
	VisualPie      VisualKind = "pie_chart"
	VisualLine     VisualKind = "line_chart"
	VisualProcess  VisualKind = "process_flow"
	VisualOrg      VisualKind = "org_chart"
	VisualTimeline VisualKind = "timeline"
)

// Series 一组数值
type Series struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// OrgNode 组织结构节点
type OrgNode struct {
	Label    string     `json:"label"`
	Role     string     `json:"role,omitempty"`
	Children []*OrgNode `json:"children,omitempty"`
}

// Milestone 时间线节点
type Milestone struct {
	Period string `json:"period"`
	Event  string `json:"event"`
}

// StructuredVisual 图表/示意图描述，按 Kind 使用对应字段
type StructuredVisual struct {
	Kind       VisualKind  `json:"kind"`
	Title      string      `json:"title,omitempty"`
	Unit       string      `json:"unit,omitempty"`
	Labels     []string    `json:"labels,omitempty"`     // Bar, Pie
	Series     []Series    `json:"series,omitempty"`     // Bar, Line
	Fractions  []float64   `json:"fractions,omitempty"`  // Pie
	XAxis      []string    `json:"x_axis,omitempty"`     // Line
	Steps      []string    `json:"steps,omitempty"`      // ProcessFlow
	Root       *OrgNode    `json:"root,omitempty"`       // OrgChart
	Milestones []Milestone `json:"milestones,omitempty"` // Timeline
}

func NewBarChart(labels []string, series []Series) *StructuredVisual {
	return &StructuredVisual{Kind: VisualBar, Labels: labels, Series: series}
}

func NewPieChart(labels []string, fractions []float64) *StructuredVisual {
	return &StructuredVisual{Kind: VisualPie, Labels: labels, Fractions: fractions}
}

func NewLineChart(xAxis []string, series []Series) *StructuredVisual {
	return &StructuredVisual{Kind: VisualLine, XAxis: xAxis, Series: series}
}

func NewProcessFlow(steps []string) *StructuredVisual {
	return &StructuredVisual{Kind: VisualProcess, Steps: steps}
}

func NewOrgChart(root *OrgNode) *StructuredVisual {
	return &StructuredVisual{Kind: VisualOrg, Root: root}
}

func NewTimeline(milestones []Milestone) *StructuredVisual {
	return &StructuredVisual{Kind: VisualTimeline, Milestones: milestones}
}

// Clone 深拷贝
func (v *StructuredVisual) Clone() *StructuredVisual {
	if v == nil {
		return nil
	}
	out := *v
	out.Labels = append([]string(nil), v.Labels...)
	out.Fractions = append([]float64(nil), v.Fractions...)
	out.XAxis = append([]string(nil), v.XAxis...)
	out.Steps = append([]string(nil), v.Steps...)
	out.Milestones = append([]Milestone(nil), v.Milestones...)
	if v.Series != nil {
		out.Series = make([]Series, len(v.Series))
		for i, s := range v.Series {
			out.Series[i] = Series{Name: s.Name, Values: append([]float64(nil), s.Values...)}
		}
	}
	out.Root = v.Root.clone()
	return &out
}

func (n *OrgNode) clone() *OrgNode {
	if n == nil {
		return nil
	}
	out := &OrgNode{Label: n.Label, Role: n.Role}
	for _, c := range n.Children {
		out.Children = append(out.Children, c.clone())
	}
	return out
}

// Walk 先序遍历组织树
func (n *OrgNode) Walk(fn func(node *OrgNode, depth int)) {
	n.walk(fn, 0)
}

func (n *OrgNode) walk(fn func(*OrgNode, int), depth int) {
	if n == nil {
		return
	}
	fn(n, depth)
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}
