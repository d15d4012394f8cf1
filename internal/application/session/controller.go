package session

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"rexi-api/internal/domain/entity"
	apperrors "rexi-api/pkg/errors"
	"rexi-api/pkg/logger"
	"rexi-api/pkg/metrics"
)

// Listener 状态变更订阅者，收到的是变更后的副本
type Listener func(entity.DraftState)

// Controller 持有会话的唯一活动草稿，负责防抖持久化
type Controller struct {
	store    *DraftStore
	clock    Clock
	debounce time.Duration
	baseCtx  context.Context

	// saveMu 串行化持久化与重置，避免重置后被迟到的保存写回旧数据
	saveMu sync.Mutex

	mu        sync.Mutex
	state     entity.DraftState
	editID    string
	epoch     uint64
	timer     Timer
	closed    bool
	listeners []Listener
}

// NewController 创建会话状态控制器
func NewController(ctx context.Context, store *DraftStore, clock Clock, debounce time.Duration, initial entity.DraftState, editID string) *Controller {
	initial.Normalize()
	if initial.SchemaVersion == 0 {
		initial.SchemaVersion = entity.DraftSchemaVersion
	}
	return &Controller{
		store:    store,
		clock:    clock,
		debounce: debounce,
		baseCtx:  logger.Detach(ctx),
		state:    initial,
		editID:   editID,
	}
}

// State 返回当前草稿副本
func (c *Controller) State() entity.DraftState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// EditID 返回会话绑定的编辑作品 ID
func (c *Controller) EditID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editID
}

// Identity 返回持久化使用的作品身份：currentWorkId 优先，其次 editId
func (c *Controller) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identityLocked()
}

func (c *Controller) identityLocked() string {
	if c.state.CurrentWorkID != "" {
		return c.state.CurrentWorkID
	}
	return c.editID
}

// OnChange 订阅状态变更
func (c *Controller) OnChange(fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Update 修改草稿并重启防抖定时器
func (c *Controller) Update(fn func(*entity.DraftState)) entity.DraftState {
	snapshot, _ := c.update(nil, fn)
	return snapshot
}

// Epoch 返回重置代数，每次 Reset 加一
func (c *Controller) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// UpdateIf 只在会话未被重置过时修改草稿，返回是否已修改
// 检查与修改在同一临界区内，重置之后迟到的结果不会写入新作品。
func (c *Controller) UpdateIf(epoch uint64, fn func(*entity.DraftState)) (entity.DraftState, bool) {
	return c.update(&epoch, fn)
}

func (c *Controller) update(epoch *uint64, fn func(*entity.DraftState)) (entity.DraftState, bool) {
	c.mu.Lock()
	if c.closed || (epoch != nil && *epoch != c.epoch) {
		snapshot := c.state.Clone()
		c.mu.Unlock()
		return snapshot, false
	}
	fn(&c.state)
	c.state.Normalize()
	c.scheduleLocked()
	snapshot := c.state.Clone()
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l(snapshot.Clone())
	}
	return snapshot, true
}

// scheduleLocked 每次变更重置而不是叠加定时器
func (c *Controller) scheduleLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = c.clock.AfterFunc(c.debounce, func() {
		c.save(c.baseCtx)
	})
}

// Flush 立即持久化（页面隐藏、导航、销毁时调用）
func (c *Controller) Flush(ctx context.Context) {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	c.save(ctx)
}

// save 防覆盖保存：已有非空快照时，空状态只更新指针
func (c *Controller) save(ctx context.Context) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	next := c.state.Clone()
	target := c.identityLocked()
	c.mu.Unlock()

	key := DraftKeyFor(target)
	next.SchemaVersion = entity.DraftSchemaVersion
	next.WorkID = target
	next.CurrentWorkID = target
	next.SavedAt = c.clock.Now().UnixMilli()

	if existing, ok := c.store.Get(ctx, key); ok && !existing.IsEmpty() && next.IsEmpty() {
		c.store.SetPointer(ctx, key)
		metrics.DraftSavesTotal.WithLabelValues("skipped_clobber").Inc()
		logger.Debug(ctx, "skip empty draft over saved work", "key", key)
		return
	}

	if !c.store.Set(ctx, key, next) {
		return
	}
	c.store.SetPointer(ctx, key)
	metrics.DraftSavesTotal.WithLabelValues("written").Inc()
}

// Reset 清空草稿与身份，cleanup 在同一临界区内清理存储
// 迟到的防抖保存无法在清理之后写回被清空前的状态。
func (c *Controller) Reset(cleanup func(prev entity.DraftState, editID string)) entity.DraftState {
	c.saveMu.Lock()

	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	prev := c.state.Clone()
	editID := c.editID
	c.state = entity.NewDraftState()
	c.editID = ""
	c.epoch++
	snapshot := c.state.Clone()
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	if cleanup != nil {
		cleanup(prev, editID)
	}
	c.saveMu.Unlock()

	for _, l := range listeners {
		l(snapshot.Clone())
	}
	return snapshot
}

// Close 保存并停止接受变更
func (c *Controller) Close(ctx context.Context) {
	c.Flush(ctx)
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Mutation 一次字段修改，nil 字段保持不变
type Mutation struct {
	InputText           *string            `json:"inputText,omitempty"`
	InputURL            *string            `json:"inputUrl,omitempty"`
	GeneratedPrompt     *string            `json:"generatedPrompt,omitempty"`
	SelectedPromptIndex *int               `json:"selectedPromptIndex,omitempty"`
	CopyMarkdown        *string            `json:"copyMarkdown,omitempty"`
	XhsContent          *entity.XhsContent `json:"xhsContent,omitempty"`
	DisplayImage        *string            `json:"displayImage,omitempty"`
	SelectedStyle       *string            `json:"selectedStyle,omitempty"`
	ShowStyleConfirm    *bool              `json:"showStyleConfirm,omitempty"`
	LinkDialogOpen      *bool              `json:"isLinkDialogOpen,omitempty"`
	PreviewOpen         *bool              `json:"isPreviewOpen,omitempty"`
	ImageViewerOpen     *bool              `json:"isImageViewerOpen,omitempty"`
	PromptOpen          *bool              `json:"isPromptOpen,omitempty"`
	StyleDialogOpen     *bool              `json:"isStyleDialogOpen,omitempty"`
	ClearMessages       bool               `json:"clearMessages,omitempty"`
}

// Apply 校验并应用字段修改
func (c *Controller) Apply(m Mutation) (entity.DraftState, error) {
	current := c.State()
	if m.DisplayImage != nil && *m.DisplayImage != "" && !current.HasImage(*m.DisplayImage) {
		return current, apperrors.New(apperrors.CodeInvalidParam, "图片不在当前作品中")
	}
	if m.SelectedPromptIndex != nil {
		idx := *m.SelectedPromptIndex
		if idx < 0 || idx >= len(current.ImagePrompts) {
			return current, apperrors.New(apperrors.CodeInvalidParam, "提示词序号超出范围")
		}
	}

	return c.Update(func(d *entity.DraftState) {
		if m.InputText != nil {
			d.InputText = *m.InputText
		}
		if m.InputURL != nil {
			d.InputURL = *m.InputURL
		}
		if m.GeneratedPrompt != nil {
			d.GeneratedPrompt = *m.GeneratedPrompt
		}
		if m.SelectedPromptIndex != nil && *m.SelectedPromptIndex < len(d.ImagePrompts) {
			d.SelectedPromptIndex = *m.SelectedPromptIndex
			d.GeneratedPrompt = d.ImagePrompts[d.SelectedPromptIndex].Compose()
		}
		if m.CopyMarkdown != nil {
			x := ParseCopyMarkdown(*m.CopyMarkdown)
			d.XhsContent = &x
		}
		if m.XhsContent != nil {
			x := *m.XhsContent
			d.XhsContent = &x
		}
		if m.DisplayImage != nil && (*m.DisplayImage == "" || d.HasImage(*m.DisplayImage)) {
			d.DisplayImage = *m.DisplayImage
		}
		if m.SelectedStyle != nil {
			d.SelectedStyle = *m.SelectedStyle
		}
		if m.ShowStyleConfirm != nil {
			d.ShowStyleConfirm = *m.ShowStyleConfirm
		}
		setFlag(&d.LinkDialogOpen, m.LinkDialogOpen)
		setFlag(&d.PreviewOpen, m.PreviewOpen)
		setFlag(&d.ImageViewerOpen, m.ImageViewerOpen)
		setFlag(&d.PromptOpen, m.PromptOpen)
		setFlag(&d.StyleDialogOpen, m.StyleDialogOpen)
		if m.ClearMessages {
			d.AnalysisError = ""
			d.WarningMsg = ""
		}
	}), nil
}

func setFlag(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// AddImage 追加图片并设为当前展示
func (c *Controller) AddImage(url string) entity.DraftState {
	url = strings.TrimSpace(url)
	if url == "" {
		return c.State()
	}
	return c.Update(func(d *entity.DraftState) {
		d.AppendImage(url)
		d.DisplayImage = url
	})
}

// SelectStyle 选中重绘风格并打开确认框
func (c *Controller) SelectStyle(style string) entity.DraftState {
	return c.Update(func(d *entity.DraftState) {
		d.SelectedStyle = style
		d.ShowStyleConfirm = true
	})
}

var copyTitlePattern = regexp.MustCompile(`^#\s+(.*?)(\n|$)`)

// ParseCopyMarkdown 首行 "# 标题" 视为标题，其余为正文
func ParseCopyMarkdown(md string) entity.XhsContent {
	m := copyTitlePattern.FindStringSubmatchIndex(md)
	if m == nil {
		return entity.XhsContent{Content: strings.TrimSpace(md)}
	}
	return entity.XhsContent{
		Title:   strings.TrimSpace(md[m[2]:m[3]]),
		Content: strings.TrimSpace(md[m[1]:]),
	}
}

// CopyMarkdown 把文案渲染为编辑器使用的 markdown
func CopyMarkdown(x *entity.XhsContent) string {
	if x == nil {
		return ""
	}
	if x.Title == "" {
		return x.Content
	}
	return "# " + x.Title + "\n\n" + x.Content
}
