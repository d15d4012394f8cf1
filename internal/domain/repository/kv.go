package repository

import (
	"context"
	"errors"
)

// ErrKeyNotFound 键不存在
var ErrKeyNotFound = errors.New("key not found")

// SessionKV 按浏览会话隔离的键值存储
// scope 标识一个浏览会话（一个标签页），不同 scope 之间互不可见。
type SessionKV interface {
	// Get 读取值，不存在返回 ErrKeyNotFound
	Get(ctx context.Context, scope, key string) ([]byte, error)

	// Set 写入值并续期该 scope
	Set(ctx context.Context, scope, key string, value []byte) error

	// Del 删除键，不存在时不报错
	Del(ctx context.Context, scope string, keys ...string) error
}
