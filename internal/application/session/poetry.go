package session

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"rexi-api/internal/domain/entity"
	"rexi-api/internal/domain/service"
	apperrors "rexi-api/pkg/errors"
	"rexi-api/pkg/logger"
)

// VerseStyle 逐句配图固定使用的风格
const VerseStyle = "Chinese Ink Wash"

// MsgPoetryFailed 诗词分析失败提示
const MsgPoetryFailed = "诗词分析失败，请重试"

// VerseImage 单句配图状态
type VerseImage struct {
	VerseIndex int    `json:"verseIndex"`
	ImageURL   string `json:"imageUrl"`
	Generating bool   `json:"isGenerating"`
	Error      string `json:"error,omitempty"`
}

// PoetryState 诗词模式状态，只保存在会话内存中
type PoetryState struct {
	Mode   bool             `json:"poetryMode"`
	Poem   *entity.PoemInfo `json:"poemInfo,omitempty"`
	Verses []VerseImage     `json:"verseImages"`
}

// PoetryFlow 诗词分析与逐句配图
type PoetryFlow struct {
	ctrl      *Controller
	lifecycle *TaskManager
	tasks     TaskStore
	content   service.ContentGenerator
	images    service.ImageDispatcher
	attempts  int
	interval  time.Duration

	mu    sync.Mutex
	state PoetryState
}

// NewPoetryFlow 创建诗词流程
func NewPoetryFlow(ctrl *Controller, lifecycle *TaskManager, tasks TaskStore, content service.ContentGenerator, images service.ImageDispatcher, attempts int, interval time.Duration) *PoetryFlow {
	return &PoetryFlow{
		ctrl:      ctrl,
		lifecycle: lifecycle,
		tasks:     tasks,
		content:   content,
		images:    images,
		attempts:  attempts,
		interval:  interval,
		state:     PoetryState{Verses: []VerseImage{}},
	}
}

// State 返回诗词状态副本
func (p *PoetryFlow) State() PoetryState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.state
	out.Verses = slices.Clone(p.state.Verses)
	return out
}

// Clear 退出诗词模式
func (p *PoetryFlow) Clear() {
	p.mu.Lock()
	p.state = PoetryState{Verses: []VerseImage{}}
	p.mu.Unlock()
}

// Generate 诗词分析，不是诗词时回退到普通生成
func (p *PoetryFlow) Generate(ctx context.Context) error {
	input := p.ctrl.State().InputText
	if strings.TrimSpace(input) == "" {
		return apperrors.New(apperrors.CodeEmptyInput, "请输入需要生成的文本")
	}
	r, err := p.lifecycle.begin()
	if err != nil {
		return err
	}
	p.Clear()
	p.ctrl.UpdateIf(r.epoch, func(d *entity.DraftState) {
		d.AnalysisError = ""
	})

	result, err := p.content.AnalyzePoetry(service.WithOperation(ctx, "poetry"), input)
	p.lifecycle.end(r)
	if err != nil {
		logger.Error(ctx, "poetry analysis failed", err)
		p.ctrl.UpdateIf(r.epoch, func(d *entity.DraftState) {
			d.AnalysisError = MsgPoetryFailed
		})
		return nil
	}
	if !result.IsPoetry || result.PoemInfo == nil {
		if !p.lifecycle.live(r) {
			return nil
		}
		return p.lifecycle.StartGeneration(ctx, "")
	}

	verses := make([]VerseImage, 0, len(result.PoemInfo.Verses))
	for _, v := range result.PoemInfo.Verses {
		verses = append(verses, VerseImage{VerseIndex: v.Index})
	}
	p.mu.Lock()
	// 替换作品先停止生成再清空诗词状态，这里检查后写入不会覆盖新作品
	if !p.lifecycle.live(r) {
		p.mu.Unlock()
		logger.Info(ctx, "drop poetry analysis after new work started")
		return nil
	}
	p.state = PoetryState{Mode: true, Poem: result.PoemInfo, Verses: verses}
	p.mu.Unlock()

	p.ctrl.UpdateIf(r.epoch, func(d *entity.DraftState) {
		d.XhsContent = &entity.XhsContent{Title: result.XhsTitle, Content: result.XhsContent}
	})
	return nil
}

// StartVerse 校验诗句并标记为生成中
func (p *PoetryFlow) StartVerse(verseIndex int) (entity.Verse, error) {
	verse, ok := p.verse(verseIndex)
	if !ok {
		return entity.Verse{}, apperrors.New(apperrors.CodeInvalidParam, "诗句不存在")
	}
	p.setVerse(verseIndex, func(v *VerseImage) {
		v.Generating = true
		v.Error = ""
	})
	return verse, nil
}

// RenderVerse 生成单句配图并写回诗句状态
func (p *PoetryFlow) RenderVerse(ctx context.Context, verse entity.Verse) {
	epoch := p.ctrl.Epoch()
	url, err := p.renderVerse(ctx, verse)
	if err != nil {
		logger.Warn(ctx, "verse image failed", "verse_index", verse.Index, "error", err.Error())
		msg := fmt.Sprintf("第%d句图片生成失败", verse.Index+1)
		p.setVerse(verse.Index, func(v *VerseImage) {
			v.Generating = false
			v.Error = msg
		})
		p.ctrl.UpdateIf(epoch, func(d *entity.DraftState) {
			d.AnalysisError = msg
		})
		return
	}
	p.setVerse(verse.Index, func(v *VerseImage) {
		v.Generating = false
		v.ImageURL = url
	})
}

// GenerateVerseImage 为指定诗句生成配图
func (p *PoetryFlow) GenerateVerseImage(ctx context.Context, verseIndex int) error {
	verse, err := p.StartVerse(verseIndex)
	if err != nil {
		return err
	}
	p.RenderVerse(ctx, verse)
	return nil
}

// GenerateAllVerses 依次为每句生成配图
func (p *PoetryFlow) GenerateAllVerses(ctx context.Context) error {
	state := p.State()
	if state.Poem == nil {
		return apperrors.New(apperrors.CodeInvalidParam, "当前不是诗词模式")
	}
	for _, v := range state.Poem.Verses {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.GenerateVerseImage(ctx, v.Index); err != nil {
			return err
		}
	}
	return nil
}

func (p *PoetryFlow) renderVerse(ctx context.Context, verse entity.Verse) (string, error) {
	task, err := p.tasks.CreateTask(ctx, CreateTaskInput{OriginalText: verse.Text, Style: VerseStyle})
	if err != nil {
		return "", err
	}
	job := service.ImageJob{TaskID: task.ID, Prompt: verse.ImagePrompt, OriginalText: verse.Text}
	if err := p.images.Dispatch(ctx, job); err != nil {
		return "", err
	}
	done, err := p.lifecycle.AwaitTask(ctx, task.ID, p.attempts, p.interval)
	if err != nil {
		return "", err
	}
	return done.Image(), nil
}

func (p *PoetryFlow) verse(index int) (entity.Verse, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Poem == nil {
		return entity.Verse{}, false
	}
	for _, v := range p.state.Poem.Verses {
		if v.Index == index {
			return v, true
		}
	}
	return entity.Verse{}, false
}

func (p *PoetryFlow) setVerse(index int, fn func(*VerseImage)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.state.Verses {
		if p.state.Verses[i].VerseIndex == index {
			fn(&p.state.Verses[i])
		}
	}
}
