package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftState_IsEmpty(t *testing.T) {
	d := NewDraftState()
	assert.True(t, d.IsEmpty())

	d.InputText = "   "
	assert.True(t, d.IsEmpty(), "仅空白视为空")

	d.UIFlags.PreviewOpen = true
	d.AnalysisError = "err"
	assert.True(t, d.IsEmpty(), "弹窗和提示信息不影响空判断")

	d.XhsContent = &XhsContent{}
	assert.False(t, d.IsEmpty())
}

func TestDraftState_HasActiveWork(t *testing.T) {
	d := NewDraftState()
	assert.False(t, d.HasActiveWork())

	d.InputURL = "https://example.com"
	assert.False(t, d.HasActiveWork(), "仅有链接不算进行中作品")

	d.GeneratedPrompt = "p"
	assert.True(t, d.HasActiveWork())
}

func TestDraftState_AppendImage(t *testing.T) {
	d := NewDraftState()
	assert.True(t, d.AppendImage("a"))
	assert.True(t, d.AppendImage("b"))
	assert.False(t, d.AppendImage("a"))
	assert.False(t, d.AppendImage(""))
	assert.Equal(t, []string{"a", "b"}, d.GeneratedImages)
}

func TestDraftState_Normalize(t *testing.T) {
	d := DraftState{
		GeneratedImages:     []string{"a", "b", "a", "", "c", "b"},
		DisplayImage:        "z",
		SelectedPromptIndex: 5,
		ImagePrompts:        []ImagePrompt{{ID: "v1"}},
	}
	d.Normalize()

	assert.Equal(t, []string{"a", "b", "c", "z"}, d.GeneratedImages)
	assert.Equal(t, 0, d.SelectedPromptIndex)
}

func TestDraftState_CloneIsDeep(t *testing.T) {
	d := NewDraftState()
	d.AppendImage("a")
	d.XhsContent = &XhsContent{Title: "T"}

	c := d.Clone()
	c.AppendImage("b")
	c.XhsContent.Title = "changed"

	assert.Equal(t, []string{"a"}, d.GeneratedImages)
	assert.Equal(t, "T", d.XhsContent.Title)
}

func TestDraftState_JSONFieldNames(t *testing.T) {
	d := NewDraftState()
	d.CurrentWorkID = "W1"
	d.UIFlags.LinkDialogOpen = true

	raw, err := json.Marshal(d)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, float64(DraftSchemaVersion), m["version"])
	assert.Equal(t, "W1", m["currentWorkId"])
	assert.Equal(t, true, m["isLinkDialogOpen"])
	assert.Nil(t, m["xhsContent"])
}

func TestWorkSnapshot_ToDraft(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	w := WorkSnapshot{ID: "W1", OriginalText: "周末咖啡馆", ImageURL: "https://x/img.png", XhsTitle: "T"}

	d := w.ToDraft(now)
	assert.Equal(t, "W1", d.WorkID)
	assert.Equal(t, "W1", d.CurrentWorkID)
	assert.Equal(t, now.UnixMilli(), d.SavedAt)
	assert.Equal(t, 5, d.SourceCharCount)
	assert.Equal(t, []string{"https://x/img.png"}, d.GeneratedImages)
	assert.Equal(t, "https://x/img.png", d.DisplayImage)
	require.NotNil(t, d.XhsContent)
	assert.Equal(t, "T", d.XhsContent.Title)
	assert.Equal(t, UIFlags{}, d.UIFlags)
}

func TestHistory_Apply(t *testing.T) {
	h := NewHistory("", "prompt", "")
	assert.Equal(t, EmptyOriginalText, h.OriginalText)
	assert.Equal(t, TaskStatusPending, h.Status)
	assert.Nil(t, h.Style)

	url := "https://x/img.png"
	status := TaskStatusCompleted
	h.Apply(HistoryPatch{Status: &status, ImageURL: &url})

	assert.Equal(t, TaskStatusCompleted, h.Status)
	assert.True(t, h.Status.IsTerminal())
	assert.Equal(t, url, h.Image())
	assert.Equal(t, 2, h.Version)
	assert.Equal(t, "prompt", h.GeneratedPrompt)
}

func TestImagePrompt_Compose(t *testing.T) {
	p := ImagePrompt{Positive: "a cat", Negative: "blurry", Params: "--ar 3:4"}
	assert.Equal(t, "Positive Prompt: a cat\nNegative Prompt: blurry\nParameters: --ar 3:4", p.Compose())

	assert.Equal(t, "Positive Prompt:\nNegative Prompt:\nParameters:", ImagePrompt{}.Compose())
}
