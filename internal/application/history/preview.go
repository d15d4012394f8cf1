package history

import (
	"bytes"
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	apperrors "rexi-api/pkg/errors"
)

// Preview 作品的图文预览
type Preview struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl,omitempty"`
	HTML     string `json:"html"`
}

// 正文按小红书的排版习惯，单个换行也保留
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// Preview 把作品文案渲染为 HTML，原始 HTML 会被转义
func (s *Service) Preview(ctx context.Context, id string) (*Preview, error) {
	h, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := RenderCopyHTML(h.Title(), h.Content())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "failed to render preview")
	}
	return &Preview{ID: h.ID, Title: h.Title(), ImageURL: h.Image(), HTML: out}, nil
}

// RenderCopyHTML 渲染 "# 标题\n\n正文" 形式的文案
func RenderCopyHTML(title, content string) (string, error) {
	var md strings.Builder
	if t := strings.TrimSpace(title); t != "" {
		md.WriteString("# ")
		md.WriteString(t)
		md.WriteString("\n\n")
	}
	md.WriteString(strings.TrimSpace(content))

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md.String()), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
