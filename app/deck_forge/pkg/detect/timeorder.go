package detect

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	quarterRe = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:q|quý|quarter)\s*([1-4])(?:[^\p{L}\p{N}]|$)`)
	halfRe    = regexp.MustCompile(`(?i)(?:^|[^\p{L}])h([12])(?:[^\p{L}\p{N}]|$)`)
	monthRe   = regexp.MustCompile(`(?i)(?:tháng|month)\s*(\d{1,2})(?:[^\p{N}]|$)`)
	yearRe    = regexp.MustCompile(`(?:^|[^\p{N}])((?:19|20)\d{2})(?:[^\p{N}]|$)`)
	monthName = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?(?:[^\p{L}]|$)`)
)

var months = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// timeKey 把标签映射为可比较的时间序号；kind 区分季度/半年/月/年
func timeKey(label string) (kind string, key int, ok bool) {
	year := 0
	if m := yearRe.FindStringSubmatch(label); m != nil {
		year, _ = strconv.Atoi(m[1])
	}
	if m := quarterRe.FindStringSubmatch(label); m != nil {
		q, _ := strconv.Atoi(m[1])
		return "quarter", year*10 + q, true
	}
	if m := halfRe.FindStringSubmatch(label); m != nil {
		h, _ := strconv.Atoi(m[1])
		return "half", year*10 + h, true
	}
	if m := monthRe.FindStringSubmatch(label); m != nil {
		mo, _ := strconv.Atoi(m[1])
		if mo >= 1 && mo <= 12 {
			return "month", year*100 + mo, true
		}
	}
	if m := monthName.FindStringSubmatch(label); m != nil {
		return "month", year*100 + months[strings.ToLower(m[1][:3])], true
	}
	if year > 0 {
		return "year", year, true
	}
	return "", 0, false
}

// timeOrdered 所有标签都是同类时间点且严格递增
func timeOrdered(labels []string) bool {
	if len(labels) < 2 {
		return false
	}
	prevKind, prev := "", 0
	for i, l := range labels {
		kind, key, ok := timeKey(l)
		if !ok {
			return false
		}
		if i > 0 && (kind != prevKind || key <= prev) {
			return false
		}
		prevKind, prev = kind, key
	}
	return true
}

// periodKey 统一到 年*100+月 的刻度，便于混排不同粒度的时间点
func periodKey(period string) int {
	if k := slashKey(period); k > 0 {
		return k
	}
	kind, key, ok := timeKey(period)
	if !ok {
		return 0
	}
	switch kind {
	case "quarter":
		return key/10*100 + key%10*3
	case "half":
		return key/10*100 + key%10*6
	case "year":
		return key * 100
	}
	return key
}
