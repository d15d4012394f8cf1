package session

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// TextKind 输入文本的类别
type TextKind string

const (
	KindProse          TextKind = "prose"
	KindClassicalVerse TextKind = "classical_verse"
)

// Classifier 决定输入走普通生成还是诗词配图
type Classifier interface {
	Classify(text string) TextKind
}

// ClassifierFunc 函数适配器
type ClassifierFunc func(text string) TextKind

// Classify 实现 Classifier
func (f ClassifierFunc) Classify(text string) TextKind {
	return f(text)
}

var verseSeparators = regexp.MustCompile(`[，。！？、\n]+`)

const poetryHints = "诗词曲赋古唐宋元明清"

// HeuristicClassifier 基于句长与关键字的古诗词判断
type HeuristicClassifier struct{}

// Classify 实现 Classifier
func (HeuristicClassifier) Classify(text string) TextKind {
	if IsClassicalVerse(text) {
		return KindClassicalVerse
	}
	return KindProse
}

// IsClassicalVerse 至少两句，且每句五言、七言或不超过两字并带有中文句读；
// 或者出现诗词相关的提示字
func IsClassicalVerse(text string) bool {
	var lines []string
	for _, seg := range verseSeparators.Split(text, -1) {
		if seg = strings.TrimSpace(seg); seg != "" {
			lines = append(lines, seg)
		}
	}
	if len(lines) < 2 {
		return false
	}

	regular := true
	for _, line := range lines {
		n := utf8.RuneCountInString(line)
		if n != 5 && n != 7 && n > 2 {
			regular = false
			break
		}
	}
	if regular && strings.ContainsAny(text, "，。") {
		return true
	}
	return strings.ContainsAny(text, poetryHints)
}
