package blueprint

import (
	"strconv"
	"strings"
)

// ParseAmount 解析会计记法的金额单元格
//
// 处理千分位、括号负数、货币符号；空白/短横线视为缺失。
func ParseAmount(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	switch s {
	case "", "-", "–", "—", "--":
		return 0, false
	}
	if l := strings.ToLower(s); l == "n/a" || l == "na" || l == "tbd" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r == ',', r == ' ', r == '$', r == '€', r == '£', r == '¥':
			// 千分位和货币符号直接丢弃
		default:
			return 0, false
		}
	}

	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	if negative {
		f = -f
	}
	return f, true
}

// ParseFlag 解析选中标记单元格
func ParseFlag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y", "true", "x", "1", "✓", "✔", "selected":
		return true
	}
	return false
}
