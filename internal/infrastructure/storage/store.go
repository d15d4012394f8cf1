// Package storage 定义生成图片的对象存储
package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"
)

// ObjectStore 保存对象并返回可公开访问的地址
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (publicURL string, err error)
}

// ImageKey 为生成的图片分配对象键：images/<yyyymmdd>/<taskID>-<random>.<ext>
func ImageKey(taskID, contentType string, now time.Time) string {
	ext := "png"
	switch contentType {
	case "image/jpeg":
		ext = "jpg"
	case "image/webp":
		ext = "webp"
	}
	name := randomID()
	if taskID != "" {
		name = taskID + "-" + name[:8]
	}
	return path.Join("images", now.UTC().Format("20060102"), name+"."+ext)
}

// JoinURL 拼接公开访问前缀与对象键
func JoinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

func randomID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
