package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"rexi-api/internal/domain/entity"
	apperrors "rexi-api/pkg/errors"
	"rexi-api/pkg/logger"
	"rexi-api/pkg/metrics"
)

// Manager 管理进程内的活动会话
type Manager struct {
	deps Deps
	opts Options

	mu       sync.RWMutex
	sessions map[string]*Session

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewManager 创建会话管理器
func NewManager(deps Deps, opts Options) *Manager {
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Classifier == nil {
		deps.Classifier = HeuristicClassifier{}
	}
	return &Manager{
		deps:     deps,
		opts:     opts,
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
	}
}

// Open 打开新会话
func (m *Manager) Open(ctx context.Context, in OpenInput) *Session {
	if in.ScopeID == "" {
		in.ScopeID = uuid.New().String()
	}
	s := Open(ctx, uuid.New().String(), m.deps, m.opts, in)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	n := len(m.sessions)
	m.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))

	logger.Info(ctx, "studio session opened",
		"session_id", s.ID(),
		"scope_id", in.ScopeID,
		"edit_id", in.EditID,
		"hydrated_from", s.source,
	)
	return s
}

// Get 按 ID 查找会话，浏览会话不匹配时视为不存在
func (m *Manager) Get(id, scope string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || (scope != "" && s.ScopeID() != scope) {
		return nil, apperrors.New(apperrors.CodeSessionNotFound, "会话不存在或已过期")
	}
	s.Touch()
	return s, nil
}

// Close 关闭并移除会话
func (m *Manager) Close(ctx context.Context, id, scope string) error {
	s, err := m.Get(id, scope)
	if err != nil {
		return err
	}
	m.remove(ctx, s)
	return nil
}

func (m *Manager) remove(ctx context.Context, s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID())
	n := len(m.sessions)
	m.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
	s.Close(ctx)
}

// Len 活动会话数
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// StashWork 作品列表跳转编辑前写入作品快照
func (m *Manager) StashWork(ctx context.Context, scope string, h *entity.History) {
	NewDraftStore(m.deps.KV, scope).SetWorkSnapshot(ctx, h.Snapshot())
}

// Start 启动空闲会话回收
func (m *Manager) Start(ctx context.Context) {
	if m.opts.IdleTTL <= 0 {
		return
	}
	interval := m.opts.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.ReapIdle(ctx)
			}
		}
	}()
}

// ReapIdle 关闭超过空闲时长的会话，返回关闭数量
func (m *Manager) ReapIdle(ctx context.Context) int {
	now := m.deps.Clock.Now()
	var idle []*Session
	m.mu.RLock()
	for _, s := range m.sessions {
		if s.IdleSince(now) >= m.opts.IdleTTL {
			idle = append(idle, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range idle {
		logger.Info(ctx, "closing idle studio session", "session_id", s.ID())
		m.remove(ctx, s)
	}
	return len(idle)
}

// Shutdown 关闭所有会话
func (m *Manager) Shutdown(ctx context.Context) {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()

	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	metrics.ActiveSessions.Set(0)

	for _, s := range all {
		s.Close(ctx)
	}
}
