package detect

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// period: event，period 为年份、月/年、季度+年
var milestoneRe = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}/])((?:tháng\s*)?\d{1,2}/(?:19|20)\d{2}|(?:q[1-4]|quý\s*[1-4])\s*(?:19|20)\d{2}|(?:19|20)\d{2})\s*[:\-–]\s*`)

// process 三个及以上编号步骤 ⇒ 流程图
func (c *Classifier) process(text string) *model.StructuredVisual {
	locs := c.stepRe.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	descs := segments(text, locs)

	type step struct {
		n    int
		desc string
	}
	seen := map[int]bool{}
	var steps []step
	for i, loc := range locs {
		n, err := strconv.Atoi(text[loc[4]:loc[5]])
		if err != nil || seen[n] || descs[i] == "" {
			continue
		}
		seen[n] = true
		steps = append(steps, step{n: n, desc: descs[i]})
	}
	if len(steps) < c.cfg.MinSteps {
		return nil
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].n < steps[j].n })
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.desc
	}
	return model.NewProcessFlow(out)
}

// timeline 带日期/时期提示且事件为文字 ⇒ 时间线
func (c *Classifier) timeline(text string) *model.StructuredVisual {
	locs := milestoneRe.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	events := segments(text, locs)

	type entry struct {
		key int
		ms  model.Milestone
	}
	seen := map[string]bool{}
	var entries []entry
	for i, loc := range locs {
		period := strings.Join(strings.Fields(text[loc[2]:loc[3]]), " ")
		ev := events[i]
		if ev == "" || startsWithDigit(ev) || seen[strings.ToLower(period)] {
			continue
		}
		seen[strings.ToLower(period)] = true
		entries = append(entries, entry{key: periodKey(period), ms: model.Milestone{Period: period, Event: ev}})
	}
	if len(entries) < c.cfg.MinMilestones {
		return nil
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	ms := make([]model.Milestone, len(entries))
	for i, e := range entries {
		ms[i] = e.ms
	}
	return model.NewTimeline(ms)
}

// slashKey 解析 "MM/YYYY"
func slashKey(period string) int {
	p := strings.TrimSpace(strings.TrimPrefix(strings.ToLower(period), "tháng"))
	mm, yyyy, ok := strings.Cut(p, "/")
	if !ok {
		return 0
	}
	m, _ := strconv.Atoi(strings.TrimSpace(mm))
	y, _ := strconv.Atoi(strings.TrimSpace(yyyy))
	return y*100 + m
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

// org 至少跨两个职级的角色标记 ⇒ 组织结构图
func (c *Classifier) org(text string) *model.StructuredVisual {
	locs := c.orgRe.FindAllStringSubmatchIndex(text, -1)
	if len(locs) < 2 {
		return nil
	}
	names := segments(text, locs)

	type member struct {
		level int
		node  *model.OrgNode
	}
	var members []member
	levels := map[int]bool{}
	for i, loc := range locs {
		kw := text[loc[2]:loc[3]]
		level, ok := c.levels[foldSpaces(strings.ToLower(kw))]
		if !ok || names[i] == "" {
			continue
		}
		role := strings.TrimSpace(kw + text[loc[4]:loc[5]])
		name := names[i]
		if cut := strings.IndexAny(name, ",;"); cut >= 0 {
			name = strings.TrimSpace(name[:cut])
		}
		members = append(members, member{level: level, node: &model.OrgNode{Label: name, Role: role}})
		levels[level] = true
	}
	if len(members) < 2 || len(levels) < c.cfg.MinOrgLevels {
		return nil
	}

	sort.SliceStable(members, func(i, j int) bool { return members[i].level < members[j].level })
	top := members[0].level
	var roots []*model.OrgNode
	for i, m := range members {
		if m.level == top {
			roots = append(roots, m.node)
			continue
		}
		// 挂到已放置成员中职级最接近的上级（同级取最后一个）
		var parent *model.OrgNode
		best := -1
		for _, p := range members[:i] {
			if p.level < m.level && p.level >= best {
				parent, best = p.node, p.level
			}
		}
		parent.Children = append(parent.Children, m.node)
	}

	root := roots[0]
	if len(roots) > 1 {
		root = &model.OrgNode{Label: "Organization", Children: roots}
	}
	return model.NewOrgChart(root)
}
