// Package prompt 管理内置的提示词模板
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

// PromptID 提示词模板标识，对应 templates/<id>.system.txt 与 templates/<id>.user.txt
type PromptID string

const (
	PromptAnalyzeV1 PromptID = "analyze_v1"
	PromptPoetryV1  PromptID = "poetry_v1"
	PromptRewriteV1 PromptID = "rewrite_v1"
)

var builtin = map[PromptID]bool{
	PromptAnalyzeV1: true,
	PromptPoetryV1:  true,
	PromptRewriteV1: true,
}

// Registry 按需加载并缓存 ChatTemplate
type Registry struct {
	mu    sync.Mutex
	cache map[PromptID]einoprompt.ChatTemplate
}

// NewRegistry 创建模板注册表
func NewRegistry() *Registry {
	return &Registry{cache: make(map[PromptID]einoprompt.ChatTemplate)}
}

// ChatTemplate 获取模板；模板使用 Go text/template 语法，变量通过 map 传入
func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}
	if !builtin[id] {
		return nil, fmt.Errorf("unknown prompt id: %s", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	system, err := readTemplate(id, "system")
	if err != nil {
		return nil, err
	}
	user, err := readTemplate(id, "user")
	if err != nil {
		return nil, err
	}

	tpl := einoprompt.FromMessages(schema.GoTemplate, schema.SystemMessage(system), schema.UserMessage(user))
	r.cache[id] = tpl
	return tpl, nil
}

// readTemplate 读取 templates/<id>.<role>.txt
func readTemplate(id PromptID, role string) (string, error) {
	path := "templates/" + string(id) + "." + role + ".txt"
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt %s: %w", path, err)
	}
	return strings.TrimSpace(string(b)), nil
}
