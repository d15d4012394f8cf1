package entity

import (
	"slices"
	"strings"
	"time"
)

// DraftSchemaVersion 草稿快照的当前结构版本，不一致的快照读取时视为不存在
const DraftSchemaVersion = 1

// XhsContent 小红书文案
type XhsContent struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ImagePrompt 候选提示词变体
type ImagePrompt struct {
	ID       string `json:"id,omitempty"`
	Focus    string `json:"focus,omitempty"`
	Positive string `json:"positive,omitempty"`
	Negative string `json:"negative,omitempty"`
	Params   string `json:"params,omitempty"`
	Tips     string `json:"tips,omitempty"`
}

// Compose 拼接为生图使用的完整提示词
func (p ImagePrompt) Compose() string {
	return strings.Join([]string{
		strings.TrimSpace("Positive Prompt: " + p.Positive),
		strings.TrimSpace("Negative Prompt: " + p.Negative),
		strings.TrimSpace("Parameters: " + p.Params),
	}, "\n")
}

// UIFlags 需要随草稿恢复的弹窗开关
type UIFlags struct {
	LinkDialogOpen  bool `json:"isLinkDialogOpen"`
	PreviewOpen     bool `json:"isPreviewOpen"`
	ImageViewerOpen bool `json:"isImageViewerOpen"`
	PromptOpen      bool `json:"isPromptOpen"`
	StyleDialogOpen bool `json:"isStyleDialogOpen"`
}

// DraftState 一次生成会话的可序列化快照
type DraftState struct {
	SchemaVersion int    `json:"version"`
	WorkID        string `json:"workId,omitempty"`
	// SavedAt 毫秒时间戳，多个候选草稿时用于比较新旧
	SavedAt int64 `json:"savedAt"`

	InputText       string `json:"inputText"`
	SourceCharCount int    `json:"sourceCharCount"`
	InputURL        string `json:"inputUrl"`

	GeneratedPrompt     string        `json:"generatedPrompt"`
	ImagePrompts        []ImagePrompt `json:"imagePrompts"`
	SelectedPromptIndex int           `json:"selectedPromptIndex"`

	XhsContent    *XhsContent `json:"xhsContent"`
	AnalysisError string      `json:"analysisError"`
	WarningMsg    string      `json:"warningMsg"`

	GeneratedImages []string `json:"generatedImages"`
	DisplayImage    string   `json:"displayImage,omitempty"`

	UIFlags
	SelectedStyle    string `json:"selectedStyle,omitempty"`
	ShowStyleConfirm bool   `json:"showStyleConfirm"`

	CurrentWorkID string `json:"currentWorkId,omitempty"`
}

// NewDraftState 创建空草稿
func NewDraftState() DraftState {
	return DraftState{
		SchemaVersion:   DraftSchemaVersion,
		GeneratedImages: []string{},
		ImagePrompts:    []ImagePrompt{},
	}
}

// IsEmpty 输入、提示词、文案、图片全部为空
func (d DraftState) IsEmpty() bool {
	return strings.TrimSpace(d.InputText) == "" &&
		strings.TrimSpace(d.InputURL) == "" &&
		strings.TrimSpace(d.GeneratedPrompt) == "" &&
		d.XhsContent == nil &&
		len(d.GeneratedImages) == 0 &&
		d.DisplayImage == ""
}

// HasActiveWork 是否存在进行中的作品内容
func (d DraftState) HasActiveWork() bool {
	return strings.TrimSpace(d.InputText) != "" ||
		d.DisplayImage != "" ||
		d.XhsContent != nil ||
		d.GeneratedPrompt != ""
}

// HasImage 图片是否已在轮播中
func (d DraftState) HasImage(url string) bool {
	return slices.Contains(d.GeneratedImages, url)
}

// AppendImage 追加图片（已存在则跳过），返回是否新增
func (d *DraftState) AppendImage(url string) bool {
	if url == "" || d.HasImage(url) {
		return false
	}
	d.GeneratedImages = append(d.GeneratedImages, url)
	return true
}

// Normalize 修正反序列化得到的快照：去重图片并保证当前图片在轮播中
func (d *DraftState) Normalize() {
	if d.GeneratedImages == nil {
		d.GeneratedImages = []string{}
	}
	if d.ImagePrompts == nil {
		d.ImagePrompts = []ImagePrompt{}
	}
	seen := make(map[string]struct{}, len(d.GeneratedImages))
	images := d.GeneratedImages[:0]
	for _, img := range d.GeneratedImages {
		if img == "" {
			continue
		}
		if _, ok := seen[img]; ok {
			continue
		}
		seen[img] = struct{}{}
		images = append(images, img)
	}
	d.GeneratedImages = images
	if d.DisplayImage != "" {
		d.AppendImage(d.DisplayImage)
	}
	if d.SelectedPromptIndex < 0 || (len(d.ImagePrompts) > 0 && d.SelectedPromptIndex >= len(d.ImagePrompts)) {
		d.SelectedPromptIndex = 0
	}
}

// Clone 深拷贝
func (d DraftState) Clone() DraftState {
	out := d
	out.GeneratedImages = slices.Clone(d.GeneratedImages)
	out.ImagePrompts = slices.Clone(d.ImagePrompts)
	if out.GeneratedImages == nil {
		out.GeneratedImages = []string{}
	}
	if out.ImagePrompts == nil {
		out.ImagePrompts = []ImagePrompt{}
	}
	if d.XhsContent != nil {
		c := *d.XhsContent
		out.XhsContent = &c
	}
	return out
}

// WorkSnapshot 作品列表页写入的轻量投影，用于草稿缺失时恢复编辑
type WorkSnapshot struct {
	ID              string `json:"id"`
	OriginalText    string `json:"originalText"`
	ImageURL        string `json:"imageUrl,omitempty"`
	XhsTitle        string `json:"xhsTitle,omitempty"`
	XhsContent      string `json:"xhsContent,omitempty"`
	GeneratedPrompt string `json:"generatedPrompt,omitempty"`
}

// ToDraft 由作品快照合成草稿：弹窗全部关闭，保存时间取 now
func (w WorkSnapshot) ToDraft(now time.Time) DraftState {
	d := NewDraftState()
	d.WorkID = w.ID
	d.CurrentWorkID = w.ID
	d.SavedAt = now.UnixMilli()
	d.InputText = w.OriginalText
	d.SourceCharCount = len([]rune(w.OriginalText))
	d.GeneratedPrompt = w.GeneratedPrompt
	if w.XhsTitle != "" || w.XhsContent != "" {
		d.XhsContent = &XhsContent{Title: w.XhsTitle, Content: w.XhsContent}
	}
	if w.ImageURL != "" {
		d.GeneratedImages = []string{w.ImageURL}
		d.DisplayImage = w.ImageURL
	}
	return d
}
