package memory

import (
	"context"
	"sync"
	"time"

	"rexi-api/internal/domain/repository"
)

type scopeEntry struct {
	values    map[string][]byte
	expiresAt time.Time
}

// SessionKV 进程内的浏览会话键值存储
type SessionKV struct {
	mu     sync.Mutex
	scopes map[string]*scopeEntry
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionKV 创建进程内草稿存储
func NewSessionKV(ttl time.Duration) *SessionKV {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionKV{
		scopes: make(map[string]*scopeEntry),
		ttl:    ttl,
		now:    time.Now,
	}
}

// live 返回未过期的 scope，调用方持有锁
func (s *SessionKV) live(scope string) *scopeEntry {
	e, ok := s.scopes[scope]
	if !ok {
		return nil
	}
	if s.now().After(e.expiresAt) {
		delete(s.scopes, scope)
		return nil
	}
	return e
}

// Get 读取值
func (s *SessionKV) Get(_ context.Context, scope, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(scope)
	if e == nil {
		return nil, repository.ErrKeyNotFound
	}
	v, ok := e.values[key]
	if !ok {
		return nil, repository.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set 写入值并续期
func (s *SessionKV) Set(_ context.Context, scope, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(scope)
	if e == nil {
		e = &scopeEntry{values: make(map[string][]byte)}
		s.scopes[scope] = e
	}
	e.values[key] = append([]byte(nil), value...)
	e.expiresAt = s.now().Add(s.ttl)
	return nil
}

// Del 删除键
func (s *SessionKV) Del(_ context.Context, scope string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.live(scope); e != nil {
		for _, k := range keys {
			delete(e.values, k)
		}
	}
	return nil
}

// Sweep 清理过期的 scope，返回清理数量
func (s *SessionKV) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	now := s.now()
	for scope, e := range s.scopes {
		if now.After(e.expiresAt) {
			delete(s.scopes, scope)
			n++
		}
	}
	return n
}
