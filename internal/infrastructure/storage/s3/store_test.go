package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rexi-api/internal/config"
)

func TestApplyPrefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "images/a.png", want: "images/a.png"},
		{name: "simple prefix", prefix: "rexi", key: "images/a.png", want: "rexi/images/a.png"},
		{name: "leading slash key", prefix: "rexi", key: "/images/a.png", want: "rexi/images/a.png"},
		{name: "empty key", prefix: "rexi", key: "", want: "rexi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, applyPrefix(normalizePrefix(tt.prefix), tt.key))
		})
	}
}

func TestDefaultPublicURL(t *testing.T) {
	assert.Equal(t, "https://b.s3.ap-east-1.amazonaws.com", defaultPublicURL(config.S3Config{Bucket: "b", Region: "ap-east-1"}))
	assert.Equal(t, "http://minio:9000/b", defaultPublicURL(config.S3Config{Bucket: "b", Endpoint: "http://minio:9000/"}))
}

func TestStore_PutAgainstEndpoint(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		method, path = r.Method, r.URL.Path
		mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := New(context.Background(), config.S3Config{
		Region:          "us-east-1",
		Bucket:          "rexi",
		Prefix:          "/gen/",
		Endpoint:        srv.URL,
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		UsePathStyle:    true,
		PublicURL:       "https://cdn.example.com",
	})
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "images/a.png", "image/png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/gen/images/a.png", url)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/rexi/gen/images/a.png", path)
}
