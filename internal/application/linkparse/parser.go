// Package linkparse 通过阅读模式代理抓取文章正文
package linkparse

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"rexi-api/internal/config"
	"rexi-api/internal/workflow/node"
	apperrors "rexi-api/pkg/errors"
	"rexi-api/pkg/logger"
	"rexi-api/pkg/tracer"
)

// 响应体读取上限
const maxBodyBytes = 4 << 20

var (
	mdImageRe    = regexp.MustCompile(`!\[.*?\]\(.*?\)`)
	mdLinkRe     = regexp.MustCompile(`\[.*?\]\(.*?\)`)
	mdSyntaxRe   = regexp.MustCompile("[#*`]")
	blankLinesRe = regexp.MustCompile(`\n+`)

	blockMarkers = []string{"环境异常", "CAPTCHA", "访问过于频繁"}
)

// Parser 链接正文解析器
type Parser struct {
	cfg    config.LinkParseConfig
	client *http.Client
}

// NewParser 创建解析器，client 为 nil 时按配置的超时创建
func NewParser(cfg config.LinkParseConfig, client *http.Client) *Parser {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 3000
	}
	if cfg.MinChars <= 0 {
		cfg.MinChars = 50
	}
	return &Parser{cfg: cfg, client: client}
}

// Parse 抓取并清洗文章正文
func (p *Parser) Parse(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", apperrors.New(apperrors.CodeInvalidParam, "Missing URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", apperrors.New(apperrors.CodeInvalidParam, "Invalid URL format")
	}

	ctx, span := tracer.Start(ctx, "linkparse.Parse")
	defer span.End()

	body, err := p.fetch(ctx, rawURL)
	if err != nil {
		tracer.RecordError(span, err)
		return "", err
	}

	for _, marker := range blockMarkers {
		if strings.Contains(body, marker) {
			logger.Warn(ctx, "link content blocked by anti-bot page", "url", rawURL, "marker", marker)
			return "", apperrors.New(apperrors.CodeLinkBlocked, "内容暂时无法获取，请稍后再试或手动复制文章内容")
		}
	}

	text := Clean(body, p.cfg.MaxChars)
	if len([]rune(text)) < p.cfg.MinChars {
		return "", apperrors.New(apperrors.CodeContentTooShort, "无法获取有效内容，请尝试手动复制文章内容")
	}
	return text, nil
}

func (p *Parser) fetch(ctx context.Context, target string) (string, error) {
	readerURL := strings.TrimRight(p.cfg.ReaderBaseURL, "/") + "/" + target
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, readerURL, nil)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternalError, "Failed to parse link")
	}
	req.Header.Set("X-With-Images-Summary", "true")
	req.Header.Set("X-With-Links-Summary", "false")
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternalError, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn(ctx, "reader returned non-2xx", "status", resp.StatusCode)
		return "", apperrors.New(apperrors.CodeLinkParseFailed, "Failed to fetch content from reader").
			WithDetail(fmt.Sprintf("status %d", resp.StatusCode))
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeLinkParseFailed, "Failed to read reader response")
	}
	return string(b), nil
}

// Clean 去掉 markdown 图片、链接和标记符号，合并空行并截断到 maxChars 个字符
func Clean(s string, maxChars int) string {
	s = mdImageRe.ReplaceAllString(s, "")
	s = mdLinkRe.ReplaceAllString(s, "")
	s = mdSyntaxRe.ReplaceAllString(s, "")
	s = blankLinesRe.ReplaceAllString(s, "\n")
	return node.TruncateByRunes(strings.TrimSpace(s), maxChars)
}
