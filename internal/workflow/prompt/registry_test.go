package prompt

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AnalyzeTemplateStyleBranch(t *testing.T) {
	r := NewRegistry()
	tpl, err := r.ChatTemplate(PromptAnalyzeV1)
	require.NoError(t, err)

	msgs, err := tpl.Format(context.Background(), map[string]any{"text": "海边日落", "style": "水彩"})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "「水彩」")
	assert.Contains(t, msgs[0].Content, "必须返回空字符串")
	assert.Contains(t, msgs[0].Content, `"imagePrompts"`)
	assert.Contains(t, msgs[1].Content, "海边日落")

	msgs, err = tpl.Format(context.Background(), map[string]any{"text": "海边日落", "style": ""})
	require.NoError(t, err)
	assert.NotContains(t, msgs[0].Content, "必须返回空字符串")
	assert.Contains(t, msgs[0].Content, "话题标签")
}

func TestRegistry_RewriteTemplate(t *testing.T) {
	tpl, err := NewRegistry().ChatTemplate(PromptRewriteV1)
	require.NoError(t, err)

	msgs, err := tpl.Format(context.Background(), map[string]any{"original_text": "素材", "current_content": ""})
	require.NoError(t, err)
	assert.NotContains(t, msgs[1].Content, "当前文案")

	msgs, err = tpl.Format(context.Background(), map[string]any{"original_text": "素材", "current_content": "旧文案"})
	require.NoError(t, err)
	assert.Contains(t, msgs[1].Content, "旧文案")
}

func TestRegistry_CachesAndRejectsUnknown(t *testing.T) {
	r := NewRegistry()
	a, err := r.ChatTemplate(PromptPoetryV1)
	require.NoError(t, err)
	b, err := r.ChatTemplate(PromptPoetryV1)
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = r.ChatTemplate("missing_v9")
	assert.Error(t, err)
}
