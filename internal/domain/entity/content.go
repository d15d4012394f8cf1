package entity

// Analysis 文本分析结果
type Analysis struct {
	Prompt       string        `json:"prompt"`
	ImagePrompts []ImagePrompt `json:"imagePrompts"`
	XhsTitle     string        `json:"xhsTitle"`
	XhsContent   string        `json:"xhsContent"`
	// Citations 文案中事实性内容的依据
	Citations         []string          `json:"citations,omitempty"`
	VerificationNotes string            `json:"verificationNotes,omitempty"`
	GroundingSources  []GroundingSource `json:"groundingSources,omitempty"`
	Warning           string            `json:"warning,omitempty"`
	ModelUsed         string            `json:"modelUsed,omitempty"`
}

// GroundingSource 参考来源
type GroundingSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// HasCopy 是否带有文案
func (a *Analysis) HasCopy() bool {
	return a.XhsTitle != "" || a.XhsContent != ""
}

// Verse 单句诗词分析
type Verse struct {
	Index          int      `json:"index"`
	Text           string   `json:"text"`
	LiteralMeaning string   `json:"literalMeaning"`
	Imagery        []string `json:"imagery"`
	Emotion        string   `json:"emotion"`
	ImagePrompt    string   `json:"imagePrompt"`
}

// PoemInfo 诗词整体信息
type PoemInfo struct {
	Title           string   `json:"title"`
	Author          string   `json:"author"`
	Dynasty         string   `json:"dynasty"`
	Verses          []Verse  `json:"verses"`
	OverallMeaning  string   `json:"overallMeaning"`
	LiteraryDevices []string `json:"literaryDevices"`
}

// MaxPoemVerses 单首诗词最多配图的句数
const MaxPoemVerses = 4

// PoetryAnalysis 诗词分析结果
type PoetryAnalysis struct {
	IsPoetry   bool      `json:"isPoetry"`
	PoemInfo   *PoemInfo `json:"poemInfo,omitempty"`
	XhsTitle   string    `json:"xhsTitle"`
	XhsContent string    `json:"xhsContent"`
	ModelUsed  string    `json:"modelUsed,omitempty"`
}

// Copy 文案改写结果
type Copy struct {
	XhsTitle   string `json:"xhsTitle"`
	XhsContent string `json:"xhsContent"`
}
