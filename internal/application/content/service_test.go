package content

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rexi-api/internal/domain/entity"
	wfchain "rexi-api/internal/workflow/chain"
	apperrors "rexi-api/pkg/errors"
)

type stubModel struct {
	content string
	err     error
	last    []*schema.Message
}

func (m *stubModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.last = input
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.content, nil), nil
}

func (m *stubModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

type stubFactory struct {
	configured bool
	model      *stubModel
}

func (f *stubFactory) Get(context.Context, string, string) (model.BaseChatModel, error) {
	return f.model, nil
}

func (f *stubFactory) Configured() bool { return f.configured }

func newTestService(configured bool, m *stubModel, lister *fakeLister) *Service {
	factory := &stubFactory{configured: configured, model: m}
	var chooser *ModelChooser
	if lister != nil {
		chooser = NewModelChooser(lister, ChooserOptions{})
	}
	return NewService(wfchain.NewContentChain(factory, nil), factory, chooser, "")
}

func TestService_AnalyzeRequiresText(t *testing.T) {
	s := newTestService(true, &stubModel{}, &fakeLister{ids: []string{"m"}})
	_, err := s.Analyze(context.Background(), "  ", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidParam))
}

func TestService_AnalyzeDemoMode(t *testing.T) {
	s := newTestService(false, nil, nil)
	got, err := s.Analyze(context.Background(), "猫", "")
	require.NoError(t, err)
	assert.Contains(t, got.Prompt, "(Mock) Artistic oil painting of 猫")
	assert.Equal(t, demoAnalyzeTitle, got.XhsTitle)
	assert.Empty(t, got.Warning)
}

func TestService_AnalyzeNoModel(t *testing.T) {
	s := newTestService(true, &stubModel{}, &fakeLister{err: errors.New("down")})
	got, err := s.Analyze(context.Background(), "猫", "")
	require.NoError(t, err)
	assert.Equal(t, noModelPrompt, got.Prompt)
	assert.Equal(t, noModelWarning, got.Warning)
	assert.Equal(t, noModelTitle, got.XhsTitle)
}

func TestService_AnalyzeLLMError(t *testing.T) {
	s := newTestService(true, &stubModel{err: errors.New("quota exceeded")}, &fakeLister{ids: []string{"gpt-4o"}})
	got, err := s.Analyze(context.Background(), "猫", "")
	require.NoError(t, err)
	assert.Equal(t, failedPrompt, got.Prompt)
	assert.Contains(t, got.Warning, "quota exceeded")
	assert.Equal(t, failedTitle, got.XhsTitle)
	assert.Equal(t, "gpt-4o", got.ModelUsed)
}

func TestService_AnalyzeParsesVariants(t *testing.T) {
	m := &stubModel{content: "```json\n" + `{"imagePrompts":[{"id":"1","positive":"a cat","negative":"blurry","params":"--ar 3:4"}],"xhsTitle":"猫咪日记","xhsContent":"正文"}` + "\n```"}
	s := newTestService(true, m, &fakeLister{ids: []string{"gpt-4o"}})

	got, err := s.Analyze(context.Background(), "猫", "")
	require.NoError(t, err)
	assert.Equal(t, "Positive Prompt: a cat\nNegative Prompt: blurry\nParameters: --ar 3:4", got.Prompt)
	require.Len(t, got.ImagePrompts, 1)
	assert.Equal(t, "猫咪日记", got.XhsTitle)
	assert.Equal(t, "gpt-4o", got.ModelUsed)
}

func TestService_AnalyzeKeepsFactCheck(t *testing.T) {
	m := &stubModel{content: `{"imagePrompt":"old bridge at dawn","xhsTitle":"赵州桥","xhsContent":"建于隋代",` +
		`"citations":["赵州桥建于隋朝大业年间"],"verificationNotes":"年代已核实",` +
		`"sources":[{"title":"百科","url":"https://example.com/zhaozhou"},{"title":"无链接","url":" "},{"url":"https://example.com/2"}]}`}
	s := newTestService(true, m, &fakeLister{ids: []string{"gpt-4o"}})

	got, err := s.Analyze(context.Background(), "赵州桥", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"赵州桥建于隋朝大业年间"}, got.Citations)
	assert.Equal(t, "年代已核实", got.VerificationNotes)
	assert.Equal(t, []entity.GroundingSource{
		{Title: "百科", URL: "https://example.com/zhaozhou"},
		{Title: unknownSourceTitle, URL: "https://example.com/2"},
	}, got.GroundingSources)
	assert.Contains(t, m.last[0].Content, "citations")
}

func TestService_AnalyzeRedrawClearsCopy(t *testing.T) {
	m := &stubModel{content: `{"imagePrompt":"watercolor cat","xhsTitle":"不该出现","xhsContent":"不该出现"}`}
	s := newTestService(true, m, &fakeLister{ids: []string{"gpt-4o"}})

	got, err := s.Analyze(context.Background(), "猫", "水彩")
	require.NoError(t, err)
	assert.Equal(t, "watercolor cat", got.Prompt)
	assert.False(t, got.HasCopy())
	assert.Contains(t, m.last[0].Content, "「水彩」")
}

func TestService_AnalyzeUnparsedOutput(t *testing.T) {
	s := newTestService(true, &stubModel{content: "a lonely cat at dusk"}, &fakeLister{ids: []string{"gpt-4o"}})
	got, err := s.Analyze(context.Background(), "猫", "")
	require.NoError(t, err)
	assert.Equal(t, "a lonely cat at dusk", got.Prompt)
	assert.Equal(t, unparsedTitle, got.XhsTitle)
	assert.Equal(t, unparsedContent, got.XhsContent)
}

func TestService_AnalyzePoetry(t *testing.T) {
	_, err := newTestService(true, &stubModel{}, nil).AnalyzePoetry(context.Background(), "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeEmptyInput))

	got, err := newTestService(false, nil, nil).AnalyzePoetry(context.Background(), "床前明月光")
	require.NoError(t, err)
	assert.False(t, got.IsPoetry)
	assert.Equal(t, demoPoetryTitle, got.XhsTitle)

	m := &stubModel{content: `{"isPoetry":true,"poemInfo":{"title":"t","verses":[{"index":0},{"index":1},{"index":2},{"index":3},{"index":4}]},"xhsTitle":"x"}`}
	got, err = newTestService(true, m, &fakeLister{ids: []string{"gpt-4o"}}).AnalyzePoetry(context.Background(), "诗")
	require.NoError(t, err)
	assert.True(t, got.IsPoetry)
	assert.Len(t, got.PoemInfo.Verses, 4)
	assert.Equal(t, "gpt-4o", got.ModelUsed)

	got, err = newTestService(true, &stubModel{content: "不是 JSON"}, &fakeLister{ids: []string{"gpt-4o"}}).AnalyzePoetry(context.Background(), "诗")
	require.NoError(t, err)
	assert.False(t, got.IsPoetry)
	assert.Equal(t, unparsedPoetryTitle, got.XhsTitle)

	_, err = newTestService(true, &stubModel{err: errors.New("boom")}, &fakeLister{ids: []string{"gpt-4o"}}).AnalyzePoetry(context.Background(), "诗")
	require.Error(t, err)
	assert.Contains(t, apperrors.AsAppError(err).Message, "分析失败: ")
}

func TestService_Rewrite(t *testing.T) {
	_, err := newTestService(true, &stubModel{}, nil).Rewrite(context.Background(), "", " ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidParam))

	got, err := newTestService(false, nil, nil).Rewrite(context.Background(), "原文", "")
	require.NoError(t, err)
	assert.Equal(t, demoRewriteTitle, got.XhsTitle)

	m := &stubModel{content: `{"xhsTitle":"新","xhsContent":"内容"}`}
	got, err = newTestService(true, m, &fakeLister{ids: []string{"gpt-4o"}}).Rewrite(context.Background(), "", "只有当前文案")
	require.NoError(t, err)
	assert.Equal(t, "新", got.XhsTitle)
	assert.Contains(t, m.last[1].Content, "只有当前文案")

	got, err = newTestService(true, &stubModel{content: "# 周末计划\n第一段\n第二段"}, &fakeLister{ids: []string{"gpt-4o"}}).Rewrite(context.Background(), "原文", "")
	require.NoError(t, err)
	assert.Equal(t, "周末计划", got.XhsTitle)
	assert.Equal(t, "第一段\n第二段", got.XhsContent)

	got, err = newTestService(true, &stubModel{content: "这是一段普通的正文内容。"}, &fakeLister{ids: []string{"gpt-4o"}}).Rewrite(context.Background(), "原文", "")
	require.NoError(t, err)
	assert.Equal(t, guessedRewriteTitle, got.XhsTitle)
	assert.Equal(t, "这是一段普通的正文内容。", got.XhsContent)

	got, err = newTestService(true, &stubModel{content: `{"xhsTitle":"","xhsContent":""}`}, &fakeLister{ids: []string{"gpt-4o"}}).Rewrite(context.Background(), "原文", "")
	require.NoError(t, err)
	assert.Equal(t, untitled, got.XhsTitle)
	assert.Equal(t, `{"xhsTitle":"","xhsContent":""}`, got.XhsContent)
}
