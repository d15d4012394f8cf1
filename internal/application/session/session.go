package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"rexi-api/internal/domain/entity"
	"rexi-api/internal/domain/repository"
	"rexi-api/internal/domain/service"
	apperrors "rexi-api/pkg/errors"
	"rexi-api/pkg/logger"
	"rexi-api/pkg/metrics"
)

// 面向用户的提示
const (
	MsgLinkParseFailed = "链接解析失败，请检查链接是否有效"
	MsgRewriteFailed   = "文案改写失败，请重试"
)

// LinkParser 把文章链接解析为正文
type LinkParser interface {
	Parse(ctx context.Context, rawURL string) (string, error)
}

// Deps 会话依赖的协作者
type Deps struct {
	KV         repository.SessionKV
	Tasks      TaskStore
	Content    service.ContentGenerator
	Images     service.ImageDispatcher
	Links      LinkParser
	Classifier Classifier
	Clock      Clock
}

// Options 会话时间参数
type Options struct {
	SaveDebounce      time.Duration
	PollInterval      time.Duration
	CopySyncDebounce  time.Duration
	VersePollAttempts int
	VersePollInterval time.Duration
	IdleTTL           time.Duration
}

// OpenInput 打开会话的参数
type OpenInput struct {
	ScopeID      string
	EditID       string
	AutoGenerate bool
	// InitialText 草稿缺失时的输入文本
	InitialText string
	// InitialHistory 编辑作品时服务端已加载的记录
	InitialHistory *entity.History
}

// View 会话对外的完整状态
type View struct {
	ID                  string            `json:"sessionId"`
	ScopeID             string            `json:"scopeId"`
	EditID              string            `json:"editId,omitempty"`
	WorkID              string            `json:"workId,omitempty"`
	Draft               entity.DraftState `json:"draft"`
	CopyMarkdown        string            `json:"copyMarkdown"`
	Phase               Phase             `json:"phase"`
	PollingTaskID       string            `json:"pollingTaskId,omitempty"`
	NeedsReplaceConfirm bool              `json:"needsReplaceConfirm"`
	Poetry              PoetryState       `json:"poetry"`
	Source              HydrationSource   `json:"hydratedFrom,omitempty"`
	Redirect            string            `json:"redirect,omitempty"`
}

// Session 一次生成页面访问的状态机
type Session struct {
	id     string
	scope  string
	source HydrationSource
	clock  Clock

	store      *DraftStore
	ctrl       *Controller
	lifecycle  *TaskManager
	coord      *Coordinator
	poetry     *PoetryFlow
	copySync   *CopySyncer
	links      LinkParser
	content    service.ContentGenerator
	classifier Classifier

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	lastSeen time.Time
	closed   bool
}

// Open 解析初始草稿并启动会话
func Open(ctx context.Context, id string, deps Deps, opts Options, in OpenInput) *Session {
	clock := deps.Clock
	if clock == nil {
		clock = RealClock()
	}
	classifier := deps.Classifier
	if classifier == nil {
		classifier = HeuristicClassifier{}
	}
	ctx = logger.WithContext(ctx, logger.SessionIDKey, id)
	ctx = logger.WithContext(ctx, logger.ScopeIDKey, in.ScopeID)
	now := clock.Now()

	store := NewDraftStore(deps.KV, in.ScopeID)
	res := ResolveDraft(ctx, store, ResolveInput{EditID: in.EditID, AutoGenerate: in.AutoGenerate}, now)

	var initial entity.DraftState
	switch {
	case res.Draft != nil:
		initial = *res.Draft
	case in.EditID != "" && in.InitialHistory != nil && in.InitialHistory.ID == in.EditID:
		initial = in.InitialHistory.Snapshot().ToDraft(now)
		res.Source = SourceHistory
	default:
		initial = entity.NewDraftState()
		initial.InputText = in.InitialText
	}
	if initial.CurrentWorkID == "" {
		initial.CurrentWorkID = in.EditID
	}
	metrics.DraftHydrationsTotal.WithLabelValues(string(res.Source)).Inc()
	logger.Debug(ctx, "session hydrated", "source", res.Source, "key", res.Key)

	base, cancel := context.WithCancel(logger.Detach(ctx))
	ctrl := NewController(base, store, clock, opts.SaveDebounce, initial, in.EditID)
	lifecycle := NewTaskManager(base, ctrl, store, deps.Tasks, deps.Content, deps.Images, opts.PollInterval)
	s := &Session{
		id:         id,
		scope:      in.ScopeID,
		source:     res.Source,
		clock:      clock,
		store:      store,
		ctrl:       ctrl,
		lifecycle:  lifecycle,
		coord:      NewCoordinator(ctrl, lifecycle, store, clock),
		poetry:     NewPoetryFlow(ctrl, lifecycle, deps.Tasks, deps.Content, deps.Images, opts.VersePollAttempts, opts.VersePollInterval),
		copySync:   NewCopySyncer(base, ctrl, deps.Tasks, clock, opts.CopySyncDebounce),
		links:      deps.Links,
		content:    deps.Content,
		classifier: classifier,
		ctx:        base,
		cancel:     cancel,
		lastSeen:   now,
	}

	lifecycle.ResumeIfPending(ctx)

	if in.AutoGenerate && in.EditID == "" && strings.TrimSpace(initial.InputText) != "" {
		s.goTracked(func() {
			if err := s.smartGenerate(s.ctx); err != nil {
				logger.Warn(s.ctx, "auto generate skipped", "error", err.Error())
			}
		})
	}
	return s
}

// goTracked 在会话生命周期内启动后台任务，会话已关闭时返回 false
func (s *Session) goTracked(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
	return true
}

// detach 保留请求上下文中的日志字段，但只随会话关闭而取消
func (s *Session) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	work, cancel := context.WithCancel(logger.Detach(ctx))
	stop := context.AfterFunc(s.ctx, cancel)
	return work, func() {
		stop()
		cancel()
	}
}

// run 在会话上下文中执行 fn 并等待结果
// 请求先结束时立即返回 ctx.Err()，fn 继续执行，结果照常写回会话。
func (s *Session) run(ctx context.Context, fn func(context.Context) error) error {
	work, cancel := s.detach(ctx)
	done := make(chan error, 1)
	if !s.goTracked(func() {
		defer cancel()
		done <- fn(work)
	}) {
		cancel()
		return apperrors.New(apperrors.CodeSessionNotFound, "会话已关闭")
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		logger.Debug(ctx, "request ended before session work finished")
		return ctx.Err()
	}
}

// start 校验通过后在后台执行 fn，进度通过 View 查看
func (s *Session) start(ctx context.Context, op string, fn func(context.Context) error) error {
	work, cancel := s.detach(ctx)
	if !s.goTracked(func() {
		defer cancel()
		if err := fn(work); err != nil {
			logger.Warn(work, "session background work failed", "op", op, "error", err.Error())
		}
	}) {
		cancel()
		return apperrors.New(apperrors.CodeSessionNotFound, "会话已关闭")
	}
	return nil
}

// ID 返回会话 ID
func (s *Session) ID() string { return s.id }

// ScopeID 返回浏览会话 ID
func (s *Session) ScopeID() string { return s.scope }

// Touch 刷新最近访问时间
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = s.clock.Now()
	s.mu.Unlock()
}

// IdleSince 距最近访问的时长
func (s *Session) IdleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// View 返回当前完整状态
func (s *Session) View() View {
	d := s.ctrl.State()
	return View{
		ID:                  s.id,
		ScopeID:             s.scope,
		EditID:              s.ctrl.EditID(),
		WorkID:              s.ctrl.Identity(),
		Draft:               d,
		CopyMarkdown:        CopyMarkdown(d.XhsContent),
		Phase:               s.lifecycle.Phase(),
		PollingTaskID:       s.lifecycle.PollingTaskID(),
		NeedsReplaceConfirm: s.coord.NeedsConfirm(),
		Poetry:              s.poetry.State(),
		Source:              s.source,
	}
}

// Apply 字段修改
func (s *Session) Apply(m Mutation) (View, error) {
	if _, err := s.ctrl.Apply(m); err != nil {
		return s.View(), err
	}
	return s.View(), nil
}

// AddImage 追加图片
func (s *Session) AddImage(url string) View {
	s.ctrl.AddImage(url)
	return s.View()
}

// SelectStyle 选择重绘风格
func (s *Session) SelectStyle(style string) View {
	s.ctrl.SelectStyle(style)
	return s.View()
}

// SmartGenerate 根据文本类别选择诗词配图或普通生成
func (s *Session) SmartGenerate(ctx context.Context) error {
	return s.run(ctx, s.smartGenerate)
}

func (s *Session) smartGenerate(ctx context.Context) error {
	input := s.ctrl.State().InputText
	if s.classifier.Classify(input) == KindClassicalVerse {
		return s.poetry.Generate(ctx)
	}
	s.poetry.Clear()
	return s.lifecycle.StartGeneration(ctx, "")
}

// BeginSmartGenerate 校验通过后在后台执行 SmartGenerate
func (s *Session) BeginSmartGenerate(ctx context.Context) error {
	if strings.TrimSpace(s.ctrl.State().InputText) == "" {
		return apperrors.New(apperrors.CodeEmptyInput, "请输入需要生成的文本")
	}
	if err := s.lifecycle.Ready(); err != nil {
		return err
	}
	return s.start(ctx, "generate", s.smartGenerate)
}

// BeginGenerateFromPrompt 校验通过后在后台使用当前提示词生图
func (s *Session) BeginGenerateFromPrompt(ctx context.Context) error {
	if strings.TrimSpace(s.ctrl.State().GeneratedPrompt) == "" {
		return apperrors.New(apperrors.CodeMissingPrompt, "请先生成或填写提示词")
	}
	if err := s.lifecycle.Ready(); err != nil {
		return err
	}
	return s.start(ctx, "generate from prompt", s.lifecycle.GenerateFromPrompt)
}

// BeginRedraw 校验通过后在后台风格重绘
func (s *Session) BeginRedraw(ctx context.Context, style string) error {
	if strings.TrimSpace(style) == "" && strings.TrimSpace(s.ctrl.State().SelectedStyle) == "" {
		return apperrors.New(apperrors.CodeInvalidParam, "请选择重绘风格")
	}
	if strings.TrimSpace(s.ctrl.State().InputText) == "" {
		return apperrors.New(apperrors.CodeEmptyInput, "请输入需要生成的文本")
	}
	if err := s.lifecycle.Ready(); err != nil {
		return err
	}
	return s.start(ctx, "redraw", func(ctx context.Context) error {
		return s.lifecycle.Redraw(ctx, style)
	})
}

// ParseLink 解析链接正文填入输入框，rawURL 为空时使用草稿中的链接
func (s *Session) ParseLink(ctx context.Context, rawURL string) error {
	if rawURL = strings.TrimSpace(rawURL); rawURL == "" {
		rawURL = strings.TrimSpace(s.ctrl.State().InputURL)
	}
	if rawURL == "" {
		return apperrors.New(apperrors.CodeInvalidParam, "请输入链接")
	}
	if s.links == nil {
		return apperrors.New(apperrors.CodeServiceUnavailable, "链接解析未启用")
	}
	s.ctrl.Update(func(d *entity.DraftState) {
		d.InputURL = rawURL
	})
	return s.run(ctx, func(ctx context.Context) error {
		return s.parseLink(ctx, rawURL)
	})
}

func (s *Session) parseLink(ctx context.Context, rawURL string) error {
	epoch := s.ctrl.Epoch()
	text, err := s.links.Parse(ctx, rawURL)
	if err != nil {
		logger.Warn(ctx, "parse link failed", "url", rawURL, "error", err.Error())
		s.ctrl.UpdateIf(epoch, func(d *entity.DraftState) {
			d.AnalysisError = MsgLinkParseFailed
		})
		return nil
	}
	if text == "" {
		return nil
	}
	s.ctrl.UpdateIf(epoch, func(d *entity.DraftState) {
		d.InputText = text
		d.SourceCharCount = len([]rune(text))
		d.LinkDialogOpen = false
	})
	return nil
}

// RewriteCopy 基于原文与当前文案重新生成文案
func (s *Session) RewriteCopy(ctx context.Context) error {
	d := s.ctrl.State()
	current := CopyMarkdown(d.XhsContent)
	if strings.TrimSpace(d.InputText) == "" && strings.TrimSpace(current) == "" {
		return apperrors.New(apperrors.CodeEmptyInput, "缺少可改写的文本")
	}
	epoch := s.ctrl.Epoch()
	return s.run(ctx, func(ctx context.Context) error {
		out, err := s.content.Rewrite(service.WithOperation(ctx, "rewrite"), d.InputText, current)
		if err != nil {
			logger.Error(ctx, "rewrite copy failed", err)
			s.ctrl.UpdateIf(epoch, func(d *entity.DraftState) {
				d.AnalysisError = MsgRewriteFailed
			})
			return nil
		}
		if out.XhsTitle == "" && out.XhsContent == "" {
			return nil
		}
		s.ctrl.UpdateIf(epoch, func(d *entity.DraftState) {
			d.XhsContent = &entity.XhsContent{Title: out.XhsTitle, Content: out.XhsContent}
		})
		return nil
	})
}

// GenerateVerseImage 单句配图，诗句存在时立即返回，图片在后台生成
func (s *Session) GenerateVerseImage(ctx context.Context, index int) error {
	verse, err := s.poetry.StartVerse(index)
	if err != nil {
		return err
	}
	return s.start(ctx, "verse", func(ctx context.Context) error {
		s.poetry.RenderVerse(ctx, verse)
		return nil
	})
}

// GenerateAllVerses 全部诗句配图，依次在后台生成
func (s *Session) GenerateAllVerses(ctx context.Context) error {
	if s.poetry.State().Poem == nil {
		return apperrors.New(apperrors.CodeInvalidParam, "当前不是诗词模式")
	}
	return s.start(ctx, "all verses", s.poetry.GenerateAllVerses)
}

// RequestNewWork 开始新作品，可能需要确认
func (s *Session) RequestNewWork(ctx context.Context) View {
	r := s.coord.RequestNewWork(ctx)
	if !r.NeedsConfirm {
		s.poetry.Clear()
	}
	v := s.View()
	v.Redirect = r.Redirect
	return v
}

// ConfirmReplace 确认替换当前作品
func (s *Session) ConfirmReplace(ctx context.Context) View {
	r := s.coord.ConfirmReplace(ctx)
	s.poetry.Clear()
	v := s.View()
	v.Redirect = r.Redirect
	return v
}

// Flush 立即持久化
func (s *Session) Flush(ctx context.Context) {
	s.ctrl.Flush(ctx)
}

// Close 结束会话：保存草稿并停止轮询，服务端任务继续执行
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.lifecycle.Close()
	s.copySync.Stop()
	s.ctrl.Close(ctx)
	logger.Debug(ctx, "session closed", "session_id", s.id)
}
