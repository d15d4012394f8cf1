package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rexi-api/internal/application/content"
	"rexi-api/internal/application/history"
	"rexi-api/internal/application/imagegen"
	"rexi-api/internal/application/linkparse"
	"rexi-api/internal/application/session"
	"rexi-api/internal/config"
	"rexi-api/internal/domain/entity"
	"rexi-api/internal/domain/service"
	"rexi-api/internal/infrastructure/persistence/memory"
	"rexi-api/internal/interfaces/http/handler"
	"rexi-api/internal/interfaces/http/middleware"
	"rexi-api/pkg/utils"
)

type recordingQueue struct {
	mu   sync.Mutex
	jobs []service.ImageJob
}

func (q *recordingQueue) Dispatch(_ context.Context, job service.ImageJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) dispatched() []service.ImageJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]service.ImageJob(nil), q.jobs...)
}

type testServer struct {
	engine *gin.Engine
	repo   *memory.HistoryRepository
	queue  *recordingQueue
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := memory.NewHistoryRepository()
	queue := &recordingQueue{}
	histories := history.NewService(repo, repo)
	submitter := imagegen.NewSubmitter(repo, queue)
	contentSvc := content.NewService(nil, nil, nil, "")
	parser := linkparse.NewParser(config.LinkParseConfig{ReaderBaseURL: "http://127.0.0.1:0"}, nil)

	manager := session.NewManager(session.Deps{
		KV:      memory.NewSessionKV(time.Hour),
		Tasks:   history.NewTaskStore(repo),
		Content: contentSvc,
		Images:  submitter,
		Links:   parser,
	}, session.Options{
		SaveDebounce:      time.Second,
		PollInterval:      time.Hour,
		CopySyncDebounce:  time.Second,
		VersePollAttempts: 1,
		VersePollInterval: time.Millisecond,
		IdleTTL:           time.Hour,
	})
	t.Cleanup(func() { manager.Shutdown(context.Background()) })

	jwtManager := utils.NewJWTManager("test-secret", "rexi")
	r := New(cfg, &Handlers{
		Health:   handler.NewHealthHandler(nil, nil, "test"),
		Auth:     handler.NewAuthHandler(cfg.Security.Auth, jwtManager, 0),
		History:  handler.NewHistoryHandler(histories),
		Content:  handler.NewContentHandler(contentSvc, parser),
		Generate: handler.NewGenerateHandler(submitter),
		Studio:   handler.NewStudioHandler(manager, histories),
	}, Options{JWT: jwtManager})

	return &testServer{engine: r.Engine(), repo: repo, queue: queue}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, v))
}

// studioView 读取会话状态，可在 Eventually 的条件函数中调用
func (s *testServer) studioView(path string, headers ...string) session.View {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	var env struct {
		Data session.View `json:"data"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return env.Data
}

func (s *testServer) seed(t *testing.T, text string) *entity.History {
	t.Helper()
	h := entity.NewHistory(text, "prompt", "")
	h.Status = entity.TaskStatusCompleted
	require.NoError(t, s.repo.Create(context.Background(), h))
	return h
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, &config.Config{})

	w := s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "in_memory")

	w = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"test"`)
}

func TestHistoryRoutes(t *testing.T) {
	s := newTestServer(t, &config.Config{})
	first := s.seed(t, "第一篇")
	s.seed(t, "第二篇")

	w := s.do(t, http.MethodGet, "/api/history?take=100", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items      []entity.History `json:"items"`
		TotalCount int64            `json:"totalCount"`
		Take       int              `json:"take"`
	}
	decodeData(t, w, &list)
	assert.Equal(t, int64(2), list.TotalCount)
	assert.Equal(t, 50, list.Take)

	w = s.do(t, http.MethodGet, "/api/history", nil)
	decodeData(t, w, &list)
	assert.Equal(t, 6, list.Take)

	w = s.do(t, http.MethodPatch, "/api/history/"+first.ID, map[string]string{"xhsTitle": "新标题", "xhsContent": "新正文"})
	require.Equal(t, http.StatusOK, w.Code)
	var patched entity.History
	decodeData(t, w, &patched)
	assert.Equal(t, "新标题", patched.Title())
	assert.Equal(t, 2, patched.Version)

	w = s.do(t, http.MethodGet, "/api/history/"+first.ID+"/preview?format=html", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h1>新标题</h1>")

	w = s.do(t, http.MethodDelete, "/api/history/"+first.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/api/history/"+first.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, "/api/history", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodGet, "/api/history", nil)
	decodeData(t, w, &list)
	assert.Equal(t, int64(0), list.TotalCount)
}

func TestSyncRoute(t *testing.T) {
	s := newTestServer(t, &config.Config{})
	rec := s.seed(t, "已有作品")

	w := s.do(t, http.MethodPost, "/api/sync", map[string]any{"operations": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/sync", map[string]any{"operations": []map[string]any{
		{"type": "ADD", "data": map[string]any{"originalText": "离线作品", "generatedPrompt": "p"}},
		{"type": "DELETE", "data": map[string]any{"id": rec.ID, "version": 7}},
	}})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var failure struct {
		Success bool                   `json:"success"`
		Error   string                 `json:"error"`
		Details string                 `json:"details"`
		Results []history.SyncOpResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &failure))
	assert.False(t, failure.Success)
	assert.Equal(t, "Batch sync failed", failure.Error)
	assert.Equal(t, "Version mismatch: client=7, server=1", failure.Details)
	require.Len(t, failure.Results, 2)
	assert.Equal(t, history.ResultFailed, failure.Results[1].Status)

	w = s.do(t, http.MethodPost, "/api/sync", map[string]any{"operations": []map[string]any{
		{"type": "DELETE", "data": map[string]any{"id": rec.ID, "version": 1}},
		{"type": "DELETE", "data": map[string]any{"id": "gone"}},
	}})
	require.Equal(t, http.StatusOK, w.Code)
	var ok history.SyncResult
	decodeData(t, w, &ok)
	assert.True(t, ok.Success)
	assert.Equal(t, "Already deleted", ok.Results[1].Note)
}

func TestGenerateRoutes(t *testing.T) {
	s := newTestServer(t, &config.Config{})

	w := s.do(t, http.MethodPost, "/api/generate", map[string]string{"prompt": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/generate/init", map[string]string{"originalText": "周末"})
	require.Equal(t, http.StatusCreated, w.Code)
	var task struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeData(t, w, &task)
	assert.Equal(t, "PENDING", task.Status)

	w = s.do(t, http.MethodPost, "/api/generate", map[string]string{"taskId": task.ID, "prompt": "sunny cafe"})
	require.Equal(t, http.StatusAccepted, w.Code)
	decodeData(t, w, &task)
	assert.Equal(t, "PROCESSING", task.Status)
	require.Len(t, s.queue.dispatched(), 1)
	assert.Equal(t, "sunny cafe", s.queue.dispatched()[0].Prompt)

	w = s.do(t, http.MethodPost, "/api/generate", map[string]string{"taskId": "missing", "prompt": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContentRoutesInDemoMode(t *testing.T) {
	s := newTestServer(t, &config.Config{})

	w := s.do(t, http.MethodPost, "/api/analyze", map[string]string{"text": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/analyze", map[string]string{"text": "海边日落"})
	require.Equal(t, http.StatusOK, w.Code)
	var analysis entity.Analysis
	decodeData(t, w, &analysis)
	assert.Contains(t, analysis.Prompt, "海边日落")

	w = s.do(t, http.MethodPost, "/api/parse-link", map[string]string{"url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthGate(t *testing.T) {
	cfg := &config.Config{}
	cfg.Security.Auth = config.AuthConfig{Enabled: true, AccessPassword: "open-sesame"}
	s := newTestServer(t, cfg)

	w := s.do(t, http.MethodGet, "/api/history", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/auth", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/auth", map[string]string{"password": "open-sesame"})
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.DefaultAuthCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, int(handler.DefaultAccessTTL.Seconds()), cookies[0].MaxAge)

	w = s.do(t, http.MethodGet, "/api/history", nil, "Cookie", cookies[0].Name+"="+cookies[0].Value)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthWithoutPasswordConfigured(t *testing.T) {
	cfg := &config.Config{}
	cfg.Security.Auth = config.AuthConfig{Enabled: true}
	s := newTestServer(t, cfg)

	w := s.do(t, http.MethodPost, "/api/auth", map[string]string{"password": "anything"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestStudioSessionRoutes(t *testing.T) {
	s := newTestServer(t, &config.Config{})
	tab := []string{middleware.BrowserSessionHeader, "tab-1"}

	w := s.do(t, http.MethodPost, "/api/studio/sessions", map[string]string{"initialText": "咖啡馆"}, tab...)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "tab-1", w.Header().Get(middleware.BrowserSessionHeader))
	var view session.View
	decodeData(t, w, &view)
	require.NotEmpty(t, view.ID)
	assert.Equal(t, "咖啡馆", view.Draft.InputText)
	base := "/api/studio/sessions/" + view.ID

	w = s.do(t, http.MethodPatch, base, map[string]string{"inputText": "海边"}, tab...)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &view)
	assert.Equal(t, "海边", view.Draft.InputText)

	w = s.do(t, http.MethodPatch, base, map[string]string{"displayImage": "https://x/unknown.png"}, tab...)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, base, nil, middleware.BrowserSessionHeader, "tab-2")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, base+"/images", map[string]string{"url": "https://x/1.png"}, tab...)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &view)
	assert.Equal(t, "https://x/1.png", view.Draft.DisplayImage)

	// 不在诗词模式时同步返回校验错误，不会启动后台配图
	w = s.do(t, http.MethodPost, base+"/poetry/verses", nil, tab...)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, http.MethodPost, base+"/poetry/verses/0", nil, tab...)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, s.queue.dispatched())

	w = s.do(t, http.MethodPost, base+"/new-work", nil, tab...)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &view)
	assert.True(t, view.Draft.IsEmpty())

	w = s.do(t, http.MethodPost, base+"/flush", nil, tab...)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodDelete, base, nil, tab...)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodGet, base, nil, tab...)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStudioGenerateRunsInBackground(t *testing.T) {
	s := newTestServer(t, &config.Config{})
	tab := []string{middleware.BrowserSessionHeader, "tab-3"}

	w := s.do(t, http.MethodPost, "/api/studio/sessions", nil, tab...)
	require.Equal(t, http.StatusCreated, w.Code)
	var view session.View
	decodeData(t, w, &view)
	base := "/api/studio/sessions/" + view.ID

	w = s.do(t, http.MethodPost, base+"/generate", nil, tab...)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPatch, base, map[string]string{"inputText": "海边日落"}, tab...)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodPost, base+"/generate", nil, tab...)
	require.Equal(t, http.StatusAccepted, w.Code)

	assert.Eventually(t, func() bool {
		return s.studioView(base, tab...).Phase == session.PhaseGenerating
	}, time.Second, 5*time.Millisecond)
	view = s.studioView(base, tab...)
	assert.Contains(t, view.Draft.GeneratedPrompt, "海边日落")
	require.Len(t, s.queue.dispatched(), 1)
	assert.Equal(t, view.PollingTaskID, s.queue.dispatched()[0].TaskID)

	w = s.do(t, http.MethodPost, base+"/generate", nil, tab...)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStudioEditWork(t *testing.T) {
	s := newTestServer(t, &config.Config{})
	rec := s.seed(t, "要编辑的作品")
	tab := []string{middleware.BrowserSessionHeader, "tab-9"}

	w := s.do(t, http.MethodPost, "/api/studio/edit-work/"+rec.ID, nil, tab...)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/studio/sessions", map[string]string{"editId": rec.ID}, tab...)
	require.Equal(t, http.StatusCreated, w.Code)
	var view session.View
	decodeData(t, w, &view)
	assert.Equal(t, "要编辑的作品", view.Draft.InputText)
	assert.Equal(t, session.SourceSnapshot, view.Source)

	w = s.do(t, http.MethodPost, "/api/studio/edit-work/missing", nil, tab...)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
