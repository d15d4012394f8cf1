package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rexi-api/internal/domain/entity"
	"rexi-api/internal/domain/repository"
	"rexi-api/internal/domain/service"
	apperrors "rexi-api/pkg/errors"
)

const testScope = "scope-1"

// fakeClock 手动推进的时钟，到期定时器在 Advance 中同步执行
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeKV 内存版 SessionKV，可模拟写入失败
type fakeKV struct {
	mu      sync.Mutex
	data    map[string]map[string][]byte
	writes  map[string]int
	failSet bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]map[string][]byte{}, writes: map[string]int{}}
}

func (k *fakeKV) Get(_ context.Context, scope, key string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.data[scope][key]
	if !ok {
		return nil, repository.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (k *fakeKV) Set(_ context.Context, scope, key string, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.failSet {
		return errors.New("quota exceeded")
	}
	if k.data[scope] == nil {
		k.data[scope] = map[string][]byte{}
	}
	k.data[scope][key] = append([]byte(nil), value...)
	k.writes[key]++
	return nil
}

func (k *fakeKV) Del(_ context.Context, scope string, keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, key := range keys {
		delete(k.data[scope], key)
	}
	return nil
}

func (k *fakeKV) has(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.data[testScope][key]
	return ok
}

func (k *fakeKV) raw(key string) string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return string(k.data[testScope][key])
}

func (k *fakeKV) writeCount(key string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.writes[key]
}

func (k *fakeKV) putDraft(t *testing.T, key string, d entity.DraftState) {
	t.Helper()
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	k.putRaw(key, string(raw))
}

func (k *fakeKV) putRaw(key, value string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.data[testScope] == nil {
		k.data[testScope] = map[string][]byte{}
	}
	k.data[testScope][key] = []byte(value)
}

func (k *fakeKV) draft(t *testing.T, key string) entity.DraftState {
	t.Helper()
	var d entity.DraftState
	require.NoError(t, json.Unmarshal([]byte(k.raw(key)), &d))
	return d
}

// fakeTasks 内存任务存储，记录每个任务的状态变迁与查询次数
type fakeTasks struct {
	mu        sync.Mutex
	seq       int
	records   map[string]*entity.History
	statuses  map[string][]entity.TaskStatus
	gets      map[string]int
	createErr error
	getFails  int
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{
		records:  map[string]*entity.History{},
		statuses: map[string][]entity.TaskStatus{},
		gets:     map[string]int{},
	}
}

func (f *fakeTasks) CreateTask(_ context.Context, in CreateTaskInput) (*entity.History, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	h := entity.NewHistory(in.OriginalText, in.Prompt, in.Style)
	h.ID = fmt.Sprintf("task-%d", f.seq)
	h.XhsTitle = entity.Optional(in.XhsTitle)
	h.XhsContent = entity.Optional(in.XhsContent)
	f.records[h.ID] = h
	f.statuses[h.ID] = []entity.TaskStatus{h.Status}
	out := *h
	return &out, nil
}

func (f *fakeTasks) GetTask(_ context.Context, id string) (*entity.History, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets[id]++
	if f.getFails > 0 {
		f.getFails--
		return nil, errors.New("connection reset")
	}
	h, ok := f.records[id]
	if !ok {
		return nil, apperrors.New(apperrors.CodeTaskNotFound, "task not found")
	}
	out := *h
	return &out, nil
}

func (f *fakeTasks) UpdateTask(_ context.Context, id string, patch entity.HistoryPatch) (*entity.History, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.records[id]
	if !ok {
		return nil, apperrors.New(apperrors.CodeTaskNotFound, "task not found")
	}
	h.Apply(patch)
	if patch.Status != nil {
		f.statuses[id] = append(f.statuses[id], *patch.Status)
	}
	out := *h
	return &out, nil
}

func (f *fakeTasks) put(h *entity.History) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[h.ID] = h
	f.statuses[h.ID] = []entity.TaskStatus{h.Status}
}

func (f *fakeTasks) set(id string, status entity.TaskStatus, url string) {
	patch := entity.StatusPatch(status)
	if url != "" {
		patch.ImageURL = &url
	}
	_, _ = f.UpdateTask(context.Background(), id, patch)
}

func (f *fakeTasks) record(id string) *entity.History {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.records[id]
	if !ok {
		return nil
	}
	out := *h
	return &out
}

func (f *fakeTasks) getCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets[id]
}

func (f *fakeTasks) statusLog(id string) []entity.TaskStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.TaskStatus(nil), f.statuses[id]...)
}

func (f *fakeTasks) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// fakeContent 可编排的内容生成服务
type fakeContent struct {
	mu        sync.Mutex
	analysis  entity.Analysis
	err       error
	poetry    *entity.PoetryAnalysis
	poetryErr error
	rewrite   *entity.Copy
	styles    []string
	// gate 非空时 Analyze 阻塞到其关闭
	gate chan struct{}
}

func (f *fakeContent) Analyze(_ context.Context, _ string, style string) (*entity.Analysis, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.styles = append(f.styles, style)
	if f.err != nil {
		return nil, f.err
	}
	out := f.analysis
	if style != "" {
		out.XhsTitle = ""
		out.XhsContent = ""
	}
	return &out, nil
}

func (f *fakeContent) AnalyzePoetry(context.Context, string) (*entity.PoetryAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.poetryErr != nil {
		return nil, f.poetryErr
	}
	if f.poetry == nil {
		return &entity.PoetryAnalysis{}, nil
	}
	out := *f.poetry
	return &out, nil
}

func (f *fakeContent) Rewrite(context.Context, string, string) (*entity.Copy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rewrite == nil {
		return nil, errors.New("model unavailable")
	}
	out := *f.rewrite
	return &out, nil
}

func (f *fakeContent) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.styles...)
}

// fakeDispatcher 记录投递的任务，onDispatch 可用来模拟 worker
type fakeDispatcher struct {
	mu         sync.Mutex
	jobs       []service.ImageJob
	err        error
	onDispatch func(service.ImageJob)
}

func (f *fakeDispatcher) Dispatch(_ context.Context, job service.ImageJob) error {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	err, hook := f.err, f.onDispatch
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(job)
	}
	return nil
}

func (f *fakeDispatcher) dispatched() []service.ImageJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]service.ImageJob(nil), f.jobs...)
}

type harness struct {
	kv        *fakeKV
	clock     *fakeClock
	tasks     *fakeTasks
	content   *fakeContent
	images    *fakeDispatcher
	store     *DraftStore
	ctrl      *Controller
	lifecycle *TaskManager
	coord     *Coordinator
}

const testPollInterval = 10 * time.Millisecond

func newHarness(t *testing.T, initial entity.DraftState, editID string) *harness {
	t.Helper()
	h := &harness{
		kv:      newFakeKV(),
		clock:   newFakeClock(),
		tasks:   newFakeTasks(),
		content: &fakeContent{analysis: entity.Analysis{Prompt: "a cozy cafe, film grain", XhsTitle: "周末去哪儿", XhsContent: "咖啡和阳光"}},
		images:  &fakeDispatcher{},
	}
	h.start(t, initial, editID)
	return h
}

// start 基于已有存储创建控制器，可模拟刷新后重新进入页面
func (h *harness) start(t *testing.T, initial entity.DraftState, editID string) {
	t.Helper()
	ctx := context.Background()
	h.store = NewDraftStore(h.kv, testScope)
	h.ctrl = NewController(ctx, h.store, h.clock, time.Second, initial, editID)
	h.lifecycle = NewTaskManager(ctx, h.ctrl, h.store, h.tasks, h.content, h.images, testPollInterval)
	h.coord = NewCoordinator(h.ctrl, h.lifecycle, h.store, h.clock)
	t.Cleanup(h.lifecycle.Close)
}

func draftWith(fn func(*entity.DraftState)) entity.DraftState {
	d := entity.NewDraftState()
	fn(&d)
	return d
}
