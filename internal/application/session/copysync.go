package session

import (
	"context"
	"sync"
	"time"

	"rexi-api/internal/domain/entity"
	"rexi-api/pkg/logger"
)

// CopySyncer 文案编辑后防抖回写作品记录
type CopySyncer struct {
	ctrl     *Controller
	tasks    TaskStore
	clock    Clock
	debounce time.Duration
	baseCtx  context.Context

	mu         sync.Mutex
	timer      Timer
	lastSynced entity.XhsContent
	synced     bool
	stopped    bool
}

// NewCopySyncer 创建并订阅控制器
func NewCopySyncer(ctx context.Context, ctrl *Controller, tasks TaskStore, clock Clock, debounce time.Duration) *CopySyncer {
	s := &CopySyncer{
		ctrl:     ctrl,
		tasks:    tasks,
		clock:    clock,
		debounce: debounce,
		baseCtx:  logger.Detach(ctx),
	}
	ctrl.OnChange(s.onChange)
	return s
}

func (s *CopySyncer) onChange(d entity.DraftState) {
	id := d.CurrentWorkID
	if id == "" {
		id = s.ctrl.EditID()
	}
	if id == "" || d.XhsContent == nil {
		return
	}
	payload := *d.XhsContent

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || (s.synced && payload == s.lastSynced) {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clock.AfterFunc(s.debounce, func() {
		s.push(id, payload)
	})
}

func (s *CopySyncer) push(id string, payload entity.XhsContent) {
	patch := entity.HistoryPatch{XhsTitle: &payload.Title, XhsContent: &payload.Content}
	if _, err := s.tasks.UpdateTask(s.baseCtx, id, patch); err != nil {
		logger.Warn(s.baseCtx, "sync copy to history failed", "work_id", id, "error", err.Error())
		return
	}
	s.mu.Lock()
	s.lastSynced = payload
	s.synced = true
	s.mu.Unlock()
}

// Stop 取消等待中的回写
func (s *CopySyncer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
