package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestImageKey(t *testing.T) {
	at := time.Date(2024, 5, 6, 23, 0, 0, 0, time.UTC)

	key := ImageKey("task-1", "image/png", at)
	assert.True(t, strings.HasPrefix(key, "images/20240506/task-1-"), key)
	assert.True(t, strings.HasSuffix(key, ".png"), key)

	assert.True(t, strings.HasSuffix(ImageKey("", "image/jpeg", at), ".jpg"))
	assert.NotEqual(t, ImageKey("x", "", at), ImageKey("x", "", at))
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/images/a.png", JoinURL("https://cdn.example.com/", "/images/a.png"))
	assert.Equal(t, "/media/a.png", JoinURL("/media", "a.png"))
}
