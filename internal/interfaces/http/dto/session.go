package dto

// OpenSessionRequest 打开生成会话
type OpenSessionRequest struct {
	EditID       string `json:"editId"`
	AutoGenerate bool   `json:"autoGenerate"`
	InitialText  string `json:"initialText"`
}

// AddImageRequest 追加图片
type AddImageRequest struct {
	URL string `json:"url" binding:"required"`
}

// RedrawRequest 风格重绘
type RedrawRequest struct {
	Style string `json:"style"`
}

// VerseIndexRequest 诗句序号
type VerseIndexRequest struct {
	SessionID string `uri:"sid" binding:"required"`
	Index     int    `uri:"index"`
}
