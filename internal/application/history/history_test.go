package history

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rexi-api/internal/application/session"
	"rexi-api/internal/domain/entity"
	"rexi-api/internal/infrastructure/persistence/memory"
	apperrors "rexi-api/pkg/errors"
)

func newService(t *testing.T) (*Service, *memory.HistoryRepository) {
	t.Helper()
	repo := memory.NewHistoryRepository()
	return NewService(repo, repo), repo
}

func seed(t *testing.T, repo *memory.HistoryRepository, text string) *entity.History {
	t.Helper()
	h := entity.NewHistory(text, "p", "")
	require.NoError(t, repo.Create(context.Background(), h))
	return h
}

func intPtr(v int) *int { return &v }

func TestService_GetPatchDelete(t *testing.T) {
	s, repo := newService(t)
	ctx := context.Background()
	h := seed(t, repo, "原文")

	_, err := s.Get(ctx, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	title := "新标题"
	got, err := s.PatchCopy(ctx, h.ID, CopyPatch{XhsTitle: &title})
	require.NoError(t, err)
	assert.Equal(t, "新标题", got.Title())
	assert.Equal(t, 2, got.Version)

	require.NoError(t, s.Delete(ctx, h.ID))
	assert.True(t, apperrors.HasCode(s.Delete(ctx, h.ID), apperrors.CodeNotFound))
}

func TestService_ListAndClear(t *testing.T) {
	s, repo := newService(t)
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		seed(t, repo, "x")
	}

	page, err := s.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, int64(8), page.TotalCount)

	page, err = s.List(ctx, 6, 6)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	require.NoError(t, s.Clear(ctx))
	page, err = s.List(ctx, 0, 6)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Zero(t, page.TotalCount)
}

func TestService_SyncAddAndDelete(t *testing.T) {
	s, repo := newService(t)
	ctx := context.Background()
	existing := seed(t, repo, "old")

	title := "t"
	res, err := s.Sync(ctx, []SyncOperation{
		{Type: OpAdd, Data: SyncData{OriginalText: "new", XhsTitle: &title}},
		{Type: OpDelete, Data: SyncData{ID: existing.ID, Version: intPtr(1)}},
		{Type: OpDelete, Data: SyncData{ID: "never-existed"}},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Results, 3)

	added, err := repo.GetByID(ctx, res.Results[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "new", added.OriginalText)
	assert.Equal(t, 1, added.Version)
	assert.Equal(t, entity.TaskStatusPending, added.Status)

	assert.Equal(t, SyncOpResult{ID: existing.ID, Status: ResultSuccess, Type: OpDelete}, res.Results[1])
	assert.Equal(t, "Already deleted", res.Results[2].Note)
}

func TestService_SyncVersionMismatchRollsBack(t *testing.T) {
	s, repo := newService(t)
	ctx := context.Background()
	h := seed(t, repo, "x")
	_, err := repo.Update(ctx, h.ID, entity.StatusPatch(entity.TaskStatusCompleted))
	require.NoError(t, err)

	_, err = s.Sync(ctx, []SyncOperation{
		{Type: OpAdd, Data: SyncData{OriginalText: "rolled back"}},
		{Type: OpDelete, Data: SyncData{ID: h.ID, Version: intPtr(1)}},
	})
	var syncErr *SyncError
	require.True(t, errors.As(err, &syncErr))
	require.Len(t, syncErr.Results, 2)
	assert.Equal(t, ResultFailed, syncErr.Results[1].Status)
	assert.Equal(t, "Version mismatch: client=1, server=2", syncErr.Results[1].Error)
	assert.Equal(t, "Version mismatch: client=1, server=2", ErrorMessage(syncErr.Err))

	page, err := s.List(ctx, 0, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalCount)
	_, err = repo.GetByID(ctx, h.ID)
	assert.NoError(t, err)
}

func TestService_SyncValidation(t *testing.T) {
	s, _ := newService(t)
	_, err := s.Sync(context.Background(), nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidParam))

	_, err = s.Sync(context.Background(), []SyncOperation{{Type: "MERGE"}})
	var syncErr *SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, "unknown", syncErr.Results[0].ID)
}

func TestService_Preview(t *testing.T) {
	s, repo := newService(t)
	h := entity.NewHistory("x", "p", "")
	title, content := "周末", "第一行\n第二行 <script>alert(1)</script>"
	h.XhsTitle, h.XhsContent = &title, &content
	require.NoError(t, repo.Create(context.Background(), h))

	p, err := s.Preview(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Contains(t, p.HTML, "<h1>周末</h1>")
	assert.Contains(t, p.HTML, "第一行<br>")
	assert.NotContains(t, p.HTML, "<script>")
}

func TestTaskStore(t *testing.T) {
	repo := memory.NewHistoryRepository()
	store := NewTaskStore(repo)
	ctx := context.Background()

	task, err := store.CreateTask(ctx, session.CreateTaskInput{OriginalText: "", Style: "Oil"})
	require.NoError(t, err)
	assert.Equal(t, entity.EmptyOriginalText, task.OriginalText)
	assert.Equal(t, "Oil", *task.Style)

	_, err = store.GetTask(ctx, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTaskNotFound))

	got, err := store.UpdateTask(ctx, task.ID, entity.StatusPatch(entity.TaskStatusFailed))
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusFailed, got.Status)
}
