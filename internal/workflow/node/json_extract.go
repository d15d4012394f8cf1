package node

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONObject 从模型输出中截取首个 "{" 到最后一个 "}" 之间的内容。
// 模型常在 JSON 前后夹带说明文字或 Markdown 代码块标记。
func ExtractJSONObject(s string) string {
	raw := stripCodeFence(strings.TrimSpace(s))
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

// DecodeJSONObject 提取并解析模型输出中的 JSON 对象
func DecodeJSONObject[T any](s string) (*T, error) {
	raw := ExtractJSONObject(s)
	if raw == "" {
		return nil, fmt.Errorf("empty llm output")
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode llm json: %w", err)
	}
	return &out, nil
}

func stripCodeFence(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	return strings.TrimSpace(strings.ReplaceAll(s, "```", ""))
}

// jsonModeRejections 提供商拒绝 JSON 模式时错误信息中的特征片段，每组需全部命中
var jsonModeRejections = [][]string{
	{"response_format"},
	{"json_object"},
	{"unknown parameter", "response"},
	{"invalid", "response"},
}

// IsResponseFormatUnsupportedError 判断是否因提供商不支持 JSON 模式而失败，
// 此时应去掉 response_format 以纯文本方式重试
func IsResponseFormatUnsupportedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, markers := range jsonModeRejections {
		hit := true
		for _, m := range markers {
			if !strings.Contains(msg, m) {
				hit = false
				break
			}
		}
		if hit {
			return true
		}
	}
	return false
}
