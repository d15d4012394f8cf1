package node

import (
	"strings"
	"unicode/utf8"
)

// TruncateByRunes 按字符数截断
func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

const maxGuessedTitleRunes = 30

// SplitTitleBody 从纯文本回复中猜测标题：
// 首个非空行较短且不以句号结尾时视为标题，其余非空行为正文。
func SplitTitleBody(raw string) (title, body string, ok bool) {
	lines := make([]string, 0, 8)
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return "", "", false
	}
	first := lines[0]
	if utf8.RuneCountInString(first) >= maxGuessedTitleRunes || strings.HasSuffix(first, "。") {
		return "", "", false
	}
	return strings.TrimSpace(strings.Trim(first, "\"'#*")), strings.Join(lines[1:], "\n"), true
}
