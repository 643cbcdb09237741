package detect

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/model"
)

// label: value [unit]，单位只接受已知写法，避免吞掉后面的词
var numericRe = regexp.MustCompile(`(?i)([\p{L}\p{N}][\p{L}\p{N} ._/&'()-]*?)\s*[:=]\s*(-?\d+(?:[.,]\d+)?)\s*(%|k|nghìn|ngàn|thousand|tr|triệu|million|m|tỷ|billion|bn|usd|vnđ|vnd|đ|\$|€)?(?:[^\p{L}\p{N}]|$)`)

type point struct {
	label string
	raw   float64
	value float64
	unit  string
}

// unitClass 把单位归一为可比较的类别与倍数
func unitClass(unit string) (string, float64) {
	switch strings.ToLower(unit) {
	case "":
		return "", 1
	case "%":
		return "%", 1
	case "k", "nghìn", "ngàn", "thousand":
		return "", 1e3
	case "tr", "triệu", "million", "m":
		return "", 1e6
	case "tỷ", "billion", "bn":
		return "", 1e9
	case "usd", "$":
		return "usd", 1
	case "€":
		return "eur", 1
	default:
		return "vnd", 1
	}
}

func extractPoints(text string) []point {
	var out []point
	for _, m := range numericRe.FindAllStringSubmatch(text, -1) {
		v, err := strconv.ParseFloat(strings.Replace(m[2], ",", ".", 1), 64)
		if err != nil {
			continue
		}
		class, scale := unitClass(m[3])
		out = append(out, point{
			label: strings.TrimSpace(m[1]),
			raw:   v,
			value: v * scale,
			unit:  class,
		})
	}
	return out
}

// numeric 同单位、标签互异的数值组 ⇒ 饼图 / 折线图 / 柱状图
func (c *Classifier) numeric(text string) []*model.StructuredVisual {
	groups := map[string][]point{}
	var order []string
	for _, p := range extractPoints(text) {
		if _, ok := groups[p.unit]; !ok {
			order = append(order, p.unit)
		}
		groups[p.unit] = append(groups[p.unit], p)
	}

	var out []*model.StructuredVisual
	for _, unit := range order {
		pts := groups[unit]
		if len(pts) < c.cfg.MinSeries || !distinctLabels(pts) {
			continue
		}
		out = append(out, c.chart(unit, pts))
	}
	return out
}

func (c *Classifier) chart(unit string, pts []point) *model.StructuredVisual {
	labels := make([]string, len(pts))
	values := make([]float64, len(pts))
	var rawSum, sum float64
	for i, p := range pts {
		labels[i] = p.label
		values[i] = p.value
		rawSum += p.raw
		sum += p.value
	}

	// 只有显式百分比才构成占比；无单位的数值即使和为 100 也按序列处理
	if unit == "%" && nearly(rawSum, 100, c.cfg.PercentTolerance) && sum > 0 {
		fractions := make([]float64, len(values))
		for i, v := range values {
			fractions[i] = v / sum
		}
		v := model.NewPieChart(labels, fractions)
		v.Unit = unit
		return v
	}

	name := unit
	if name == "" {
		name = "value"
	}
	series := []model.Series{{Name: name, Values: values}}
	var v *model.StructuredVisual
	if timeOrdered(labels) {
		v = model.NewLineChart(labels, series)
	} else {
		v = model.NewBarChart(labels, series)
	}
	v.Unit = unit
	return v
}

func distinctLabels(pts []point) bool {
	seen := make(map[string]bool, len(pts))
	for _, p := range pts {
		k := strings.ToLower(p.label)
		if k == "" || seen[k] {
			return false
		}
		seen[k] = true
	}
	return true
}
