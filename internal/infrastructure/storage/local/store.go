// Package local 将对象写入本地目录，由 HTTP 服务以静态文件方式提供
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rexi-api/internal/infrastructure/storage"
)

// Store 本地文件对象存储
type Store struct {
	baseDir   string
	publicURL string
}

// New 创建本地对象存储
func New(baseDir, publicURL string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("local storage dir is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &Store{baseDir: baseDir, publicURL: publicURL}, nil
}

// Dir 返回存储根目录
func (s *Store) Dir() string {
	return s.baseDir
}

// Put 写入文件
func (s *Store) Put(ctx context.Context, key, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := filepath.Clean("/" + key)
	full := filepath.Join(s.baseDir, clean)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return storage.JoinURL(s.publicURL, filepath.ToSlash(clean)), nil
}

var _ storage.ObjectStore = (*Store)(nil)
