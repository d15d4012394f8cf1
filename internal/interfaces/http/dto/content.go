package dto

// AnalyzeRequest 文本分析请求
type AnalyzeRequest struct {
	Text  string `json:"text"`
	Style string `json:"style,omitempty"`
}

// AnalyzePoetryRequest 诗词分析请求
type AnalyzePoetryRequest struct {
	Text string `json:"text"`
}

// RewriteRequest 文案改写请求
type RewriteRequest struct {
	OriginalText   string `json:"originalText"`
	CurrentContent string `json:"currentContent"`
}

// ParseLinkRequest 链接解析请求
type ParseLinkRequest struct {
	URL string `json:"url"`
}

// ParseLinkResponse 链接解析结果
type ParseLinkResponse struct {
	Text      string `json:"text"`
	CharCount int    `json:"charCount"`
}
