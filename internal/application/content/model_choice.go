package content

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	workflowport "rexi-api/internal/workflow/port"
	"rexi-api/pkg/logger"
)

// ErrNoModel 没有可用的文本模型
var ErrNoModel = fmt.Errorf("no available text model")

var modelVersionRe = regexp.MustCompile(`[a-z]-(\d+(?:\.\d+)?)`)

// ScoreModelID 为模型 ID 打分：版本号越高越好，pro 优于 flash / mini
func ScoreModelID(id string) float64 {
	s := strings.ToLower(id)
	score := 0.0
	if m := modelVersionRe.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			score += v * 100
		}
	}
	switch {
	case strings.Contains(s, "pro"):
		score += 40
	case strings.Contains(s, "flash"), strings.Contains(s, "mini"):
		score += 20
	}
	if strings.Contains(s, "image") {
		score += 10
	}
	if strings.Contains(s, "preview") {
		score += 5
	}
	return score
}

// ChooseBestModelID 从候选中选出最佳模型：
// preferred 存在则直接使用；否则按 include / exclude 过滤（过滤为空时退回全部候选）后按得分取最高。
func ChooseBestModelID(ids []string, preferred string, include, exclude []string) string {
	if len(ids) == 0 {
		return ""
	}
	if preferred != "" {
		for _, id := range ids {
			if id == preferred {
				return id
			}
		}
	}

	filtered := make([]string, 0, len(ids))
	for _, id := range ids {
		lower := strings.ToLower(id)
		if len(include) > 0 && !containsAny(lower, include) {
			continue
		}
		if containsAny(lower, exclude) {
			continue
		}
		filtered = append(filtered, id)
	}
	if len(filtered) == 0 {
		filtered = append(filtered, ids...)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return ScoreModelID(filtered[i]) > ScoreModelID(filtered[j])
	})
	return filtered[0]
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub = strings.ToLower(strings.TrimSpace(sub)); sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ChooserOptions 模型选择参数
type ChooserOptions struct {
	Preferred string
	Include   []string
	Exclude   []string
	TTL       time.Duration
	// Fallback 列表接口不可用时使用的模型，通常为提供商配置中的默认模型
	Fallback string
}

// ModelChooser 缓存一段时间内的模型选择结果，并发请求只触发一次列表查询
type ModelChooser struct {
	lister workflowport.ModelLister
	opts   ChooserOptions
	now    func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	chosen    string
	expiresAt time.Time
}

// NewModelChooser 创建模型选择器，lister 为 nil 时直接使用 Fallback
func NewModelChooser(lister workflowport.ModelLister, opts ChooserOptions) *ModelChooser {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	return &ModelChooser{lister: lister, opts: opts, now: time.Now}
}

// Choose 返回当前应使用的模型 ID
func (c *ModelChooser) Choose(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.chosen != "" && c.now().Before(c.expiresAt) {
		id := c.chosen
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("choose", func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *ModelChooser) refresh(ctx context.Context) (string, error) {
	if c.lister == nil {
		return c.remember(c.opts.Fallback)
	}
	ids, err := c.lister.ListModels(ctx)
	if err != nil {
		logger.Warn(ctx, "list models failed, using fallback model",
			"fallback", c.opts.Fallback,
			"error", err.Error(),
		)
		return c.remember(c.opts.Fallback)
	}
	id := ChooseBestModelID(ids, c.opts.Preferred, c.opts.Include, c.opts.Exclude)
	if id == "" {
		id = c.opts.Fallback
	}
	logger.Debug(ctx, "text model chosen", "model", id, "candidates", len(ids))
	return c.remember(id)
}

func (c *ModelChooser) remember(id string) (string, error) {
	if id == "" {
		return "", ErrNoModel
	}
	c.mu.Lock()
	c.chosen = id
	c.expiresAt = c.now().Add(c.opts.TTL)
	c.mu.Unlock()
	return id, nil
}
