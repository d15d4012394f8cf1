package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"rexi-api/internal/domain/entity"
	"rexi-api/internal/domain/service"
	apperrors "rexi-api/pkg/errors"
	"rexi-api/pkg/logger"
	"rexi-api/pkg/metrics"
)

// 面向用户的失败提示
const (
	MsgGenerateError  = "生成过程中出错，请重试"
	MsgGenerateFailed = "生成失败，请重试"
)

// CreateTaskInput 创建生成任务的参数
type CreateTaskInput struct {
	OriginalText string
	Prompt       string
	XhsTitle     string
	XhsContent   string
	Style        string
}

// TaskStore 任务记录存储，GetTask 在记录不存在时返回 CodeTaskNotFound
type TaskStore interface {
	CreateTask(ctx context.Context, in CreateTaskInput) (*entity.History, error)
	GetTask(ctx context.Context, id string) (*entity.History, error)
	UpdateTask(ctx context.Context, id string, patch entity.HistoryPatch) (*entity.History, error)
}

// Phase 会话的生成阶段
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseAnalyzing  Phase = "analyzing"
	PhaseGenerating Phase = "generating"
)

// run 一次生成的归属：seq 在 StopPolling 后失效，epoch 在草稿重置后失效
type run struct {
	seq   uint64
	epoch uint64
}

// TaskManager 驱动生成任务并轮询结果，把服务端状态合并回草稿
type TaskManager struct {
	ctrl         *Controller
	store        *DraftStore
	tasks        TaskStore
	content      service.ContentGenerator
	images       service.ImageDispatcher
	pollInterval time.Duration

	baseCtx    context.Context
	cancelBase context.CancelFunc

	// mu 持有期间不修改草稿，订阅者回调里可以读取 Phase
	mu        sync.Mutex
	analyzing bool
	seq       uint64
	pollingID string
	pollEpoch uint64
	stopPoll  context.CancelFunc
	wg        sync.WaitGroup
}

// NewTaskManager 创建任务生命周期管理器
func NewTaskManager(ctx context.Context, ctrl *Controller, store *DraftStore, tasks TaskStore, content service.ContentGenerator, images service.ImageDispatcher, pollInterval time.Duration) *TaskManager {
	base, cancel := context.WithCancel(logger.Detach(ctx))
	return &TaskManager{
		ctrl:         ctrl,
		store:        store,
		tasks:        tasks,
		content:      content,
		images:       images,
		pollInterval: pollInterval,
		baseCtx:      base,
		cancelBase:   cancel,
	}
}

// Phase 返回当前阶段
func (m *TaskManager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.analyzing:
		return PhaseAnalyzing
	case m.pollingID != "":
		return PhaseGenerating
	default:
		return PhaseIdle
	}
}

// PollingTaskID 返回正在轮询的任务 ID
func (m *TaskManager) PollingTaskID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pollingID
}

// Ready 没有进行中的分析或轮询时返回 nil
func (m *TaskManager) Ready() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.analyzing || m.pollingID != "" {
		return apperrors.New(apperrors.CodeConflict, "已有生成任务进行中")
	}
	return nil
}

func (m *TaskManager) begin() (run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.analyzing || m.pollingID != "" {
		return run{}, apperrors.New(apperrors.CodeConflict, "已有生成任务进行中")
	}
	m.analyzing = true
	m.seq++
	return run{seq: m.seq, epoch: m.ctrl.Epoch()}, nil
}

func (m *TaskManager) end(r run) {
	m.mu.Lock()
	if m.seq == r.seq {
		m.analyzing = false
	}
	m.mu.Unlock()
}

// live 生成开始后会话没有停止轮询，也没有被重置
func (m *TaskManager) live(r run) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq == r.seq && m.ctrl.Epoch() == r.epoch
}

// StartGeneration 创建任务、分析文本并投递生图
// style 非空时为重绘：保留现有文案。只有输入校验失败会返回错误，
// 其余失败写入 analysisError。
func (m *TaskManager) StartGeneration(ctx context.Context, style string) error {
	input := m.ctrl.State().InputText
	if strings.TrimSpace(input) == "" {
		return apperrors.New(apperrors.CodeEmptyInput, "请输入需要生成的文本")
	}
	r, err := m.begin()
	if err != nil {
		return err
	}
	defer m.end(r)

	m.ctrl.UpdateIf(r.epoch, func(d *entity.DraftState) {
		d.SourceCharCount = len([]rune(d.InputText))
		if style == "" {
			d.XhsContent = nil
		}
		d.AnalysisError = ""
	})

	task, err := m.tasks.CreateTask(ctx, CreateTaskInput{OriginalText: input, Style: style})
	if err != nil {
		m.fail(ctx, r, "", err)
		return nil
	}
	ctx = logger.WithContext(ctx, logger.TaskIDKey, task.ID)
	if !m.adopt(ctx, r, task.ID) {
		m.abandon(ctx, task.ID)
		return nil
	}

	analysis, err := m.content.Analyze(service.WithOperation(ctx, "analyze"), input, style)
	if err != nil {
		m.fail(ctx, r, task.ID, err)
		return nil
	}
	state, ok := m.ctrl.UpdateIf(r.epoch, func(d *entity.DraftState) {
		d.GeneratedPrompt = analysis.Prompt
		d.ImagePrompts = analysis.ImagePrompts
		d.SelectedPromptIndex = 0
		if style == "" && analysis.HasCopy() {
			d.XhsContent = &entity.XhsContent{Title: analysis.XhsTitle, Content: analysis.XhsContent}
		}
		d.WarningMsg = analysis.Warning
	})
	if !ok {
		m.abandon(ctx, task.ID)
		return nil
	}
	if strings.TrimSpace(analysis.Prompt) == "" {
		m.fail(ctx, r, task.ID, apperrors.New(apperrors.CodeMissingPrompt, "分析结果缺少提示词"))
		return nil
	}

	m.launch(ctx, r, task.ID, jobFor(task.ID, analysis.Prompt, state))
	return nil
}

// Redraw 以新风格重绘；当前图片先并入轮播，文案保持不变
func (m *TaskManager) Redraw(ctx context.Context, style string) error {
	if style == "" {
		style = m.ctrl.State().SelectedStyle
	}
	if strings.TrimSpace(style) == "" {
		return apperrors.New(apperrors.CodeInvalidParam, "请选择重绘风格")
	}
	m.ctrl.Update(func(d *entity.DraftState) {
		d.ShowStyleConfirm = false
		d.StyleDialogOpen = false
		d.AppendImage(d.DisplayImage)
		d.SelectedStyle = ""
	})
	return m.StartGeneration(ctx, style)
}

// GenerateFromPrompt 使用已编辑的提示词直接生图，跳过文本分析
func (m *TaskManager) GenerateFromPrompt(ctx context.Context) error {
	state := m.ctrl.State()
	prompt := strings.TrimSpace(state.GeneratedPrompt)
	if prompt == "" {
		return apperrors.New(apperrors.CodeMissingPrompt, "请先生成或填写提示词")
	}
	r, err := m.begin()
	if err != nil {
		return err
	}
	defer m.end(r)

	m.ctrl.UpdateIf(r.epoch, func(d *entity.DraftState) {
		d.AnalysisError = ""
	})
	in := CreateTaskInput{OriginalText: state.InputText, Prompt: prompt}
	if state.XhsContent != nil {
		in.XhsTitle = state.XhsContent.Title
		in.XhsContent = state.XhsContent.Content
	}
	task, err := m.tasks.CreateTask(ctx, in)
	if err != nil {
		m.fail(ctx, r, "", err)
		return nil
	}
	ctx = logger.WithContext(ctx, logger.TaskIDKey, task.ID)
	if !m.adopt(ctx, r, task.ID) {
		m.abandon(ctx, task.ID)
		return nil
	}
	m.launch(ctx, r, task.ID, jobFor(task.ID, prompt, state))
	return nil
}

// adopt 新任务成为会话身份并写入恢复槽
// 恢复槽与身份在同一次修改中写入，重置的清理总在其后执行。
func (m *TaskManager) adopt(ctx context.Context, r run, taskID string) bool {
	_, ok := m.ctrl.UpdateIf(r.epoch, func(d *entity.DraftState) {
		d.CurrentWorkID = taskID
		m.store.SetRecoveryTask(ctx, taskID)
	})
	if ok {
		metrics.TaskTransitionsTotal.WithLabelValues(string(entity.TaskStatusPending)).Inc()
	}
	return ok
}

// launch 投递生图，成功后开始轮询
func (m *TaskManager) launch(ctx context.Context, r run, taskID string, job service.ImageJob) {
	if !m.live(r) {
		m.abandon(ctx, taskID)
		return
	}
	if err := m.images.Dispatch(ctx, job); err != nil {
		m.fail(ctx, r, taskID, err)
		return
	}
	if !m.startPolling(taskID, r) {
		logger.Info(ctx, "session moved on, task continues without polling")
	}
}

func jobFor(taskID, prompt string, state entity.DraftState) service.ImageJob {
	job := service.ImageJob{TaskID: taskID, Prompt: prompt, OriginalText: state.InputText}
	if state.XhsContent != nil {
		job.XhsTitle = state.XhsContent.Title
		job.XhsContent = state.XhsContent.Content
	}
	return job
}

// fail 标记任务失败并提示重试；会话已切换时只更新服务端记录
func (m *TaskManager) fail(ctx context.Context, r run, taskID string, cause error) {
	logger.Error(ctx, "generation failed", cause)
	detached := logger.Detach(ctx)
	if taskID != "" {
		m.markFailed(detached, taskID)
	}
	if !m.live(r) {
		return
	}
	if taskID != "" {
		m.store.ClearRecoveryTask(detached)
	}
	m.ctrl.UpdateIf(r.epoch, func(d *entity.DraftState) {
		d.AnalysisError = MsgGenerateError
	})
}

// abandon 会话已开始新作品，未投递的任务不会再有 worker 处理
func (m *TaskManager) abandon(ctx context.Context, taskID string) {
	logger.Info(ctx, "drop generation result after new work started")
	m.markFailed(logger.Detach(ctx), taskID)
}

func (m *TaskManager) markFailed(ctx context.Context, taskID string) {
	if _, err := m.tasks.UpdateTask(ctx, taskID, entity.StatusPatch(entity.TaskStatusFailed)); err != nil {
		logger.Warn(ctx, "mark task failed", "task_id", taskID, "error", err.Error())
	}
	metrics.TaskTransitionsTotal.WithLabelValues(string(entity.TaskStatusFailed)).Inc()
}

// ResumeIfPending 恢复槽中有任务时继续轮询
func (m *TaskManager) ResumeIfPending(ctx context.Context) bool {
	taskID := m.store.RecoveryTask(ctx)
	if taskID == "" {
		return false
	}
	m.ctrl.Update(func(d *entity.DraftState) {
		if d.CurrentWorkID == "" {
			d.CurrentWorkID = taskID
		}
	})
	logger.Info(ctx, "resume polling pending task", "task_id", taskID)
	m.mu.Lock()
	r := run{seq: m.seq, epoch: m.ctrl.Epoch()}
	m.mu.Unlock()
	return m.startPolling(taskID, r)
}

// startPolling 生成仍属于当前会话时开始轮询
func (m *TaskManager) startPolling(taskID string, r run) bool {
	m.mu.Lock()
	if m.seq != r.seq {
		m.mu.Unlock()
		return false
	}
	if m.stopPoll != nil {
		m.stopPoll()
	}
	ctx, cancel := context.WithCancel(m.baseCtx)
	ctx = logger.WithContext(ctx, logger.TaskIDKey, taskID)
	m.pollingID = taskID
	m.pollEpoch = r.epoch
	m.stopPoll = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	go m.pollLoop(ctx, taskID)
	return true
}

// pollLoop 固定间隔轮询，直到终态或会话结束；没有客户端超时
func (m *TaskManager) pollLoop(ctx context.Context, taskID string) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.pollOnce(ctx, taskID) {
				return
			}
		}
	}
}

// pollOnce 查询一次任务，返回是否停止轮询
func (m *TaskManager) pollOnce(ctx context.Context, taskID string) bool {
	task, err := m.tasks.GetTask(ctx, taskID)
	notFound := err != nil && apperrors.HasCode(err, apperrors.CodeTaskNotFound)
	if err != nil && !notFound {
		if ctx.Err() != nil {
			return true
		}
		metrics.TaskPollsTotal.WithLabelValues("error").Inc()
		logger.Warn(ctx, "poll task status failed", "error", err.Error())
		return false
	}

	m.mu.Lock()
	current, epoch := m.pollingID == taskID, m.pollEpoch
	m.mu.Unlock()
	if !current {
		return true
	}

	switch {
	case notFound || task.Status == entity.TaskStatusFailed:
		metrics.TaskPollsTotal.WithLabelValues("failed").Inc()
		m.ctrl.UpdateIf(epoch, func(d *entity.DraftState) {
			d.AnalysisError = MsgGenerateFailed
		})
	case task.Status == entity.TaskStatusCompleted:
		metrics.TaskPollsTotal.WithLabelValues("completed").Inc()
		url, title, content := task.Image(), task.Title(), task.Content()
		m.ctrl.UpdateIf(epoch, func(d *entity.DraftState) {
			if url != "" {
				d.AppendImage(url)
				d.DisplayImage = url
			}
			if title != "" || content != "" {
				d.XhsContent = &entity.XhsContent{Title: title, Content: content}
			}
		})
	default:
		metrics.TaskPollsTotal.WithLabelValues("pending").Inc()
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pollingID == taskID {
		m.store.ClearRecoveryTask(ctx)
		m.stopPoll()
		m.pollingID = ""
		m.stopPoll = nil
	}
	return true
}

// StopPolling 停止客户端轮询，服务端任务不受影响
// 进行中的分析随之失效，其结果不再写回会话。
func (m *TaskManager) StopPolling() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopPoll != nil {
		m.stopPoll()
		m.stopPoll = nil
	}
	m.pollingID = ""
	m.analyzing = false
	m.seq++
}

// AwaitTask 有限次轮询单个任务，用于诗词逐句配图
func (m *TaskManager) AwaitTask(ctx context.Context, taskID string, attempts int, interval time.Duration) (*entity.History, error) {
	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
		task, err := m.tasks.GetTask(ctx, taskID)
		if err != nil {
			if apperrors.HasCode(err, apperrors.CodeTaskNotFound) {
				return nil, err
			}
			logger.Warn(ctx, "poll verse task failed", "task_id", taskID, "error", err.Error())
			continue
		}
		switch {
		case task.Status == entity.TaskStatusCompleted && task.Image() != "":
			return task, nil
		case task.Status == entity.TaskStatusFailed:
			return nil, apperrors.New(apperrors.CodeGenerationFailed, "图片生成失败")
		}
	}
	return nil, apperrors.New(apperrors.CodeGenerationFailed, "图片生成超时")
}

// Close 停止轮询并等待后台任务退出
func (m *TaskManager) Close() {
	m.StopPolling()
	m.cancelBase()
	m.wg.Wait()
}
