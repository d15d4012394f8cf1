package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rexi-api/internal/domain/entity"
)

func TestCoordinator_ReplaceActiveWork(t *testing.T) {
	initial := draftWith(func(d *entity.DraftState) {
		d.InputText = "abc"
		d.CurrentWorkID = "W1"
	})
	h := newHarness(t, initial, "")
	ctx := context.Background()
	h.kv.putDraft(t, DraftKeyFor("W1"), savedDraft("W1", "abc", 1))
	h.kv.putDraft(t, GenericDraftKey, savedDraft("", "older", 1))
	h.kv.putRaw(PointerKey, DraftKeyFor("W1"))
	h.kv.putRaw(RecoveryKey, "W1")
	h.kv.putRaw(WorkSnapshotKey, `{"id":"W1"}`)

	res := h.coord.RequestNewWork(ctx)
	require.True(t, res.NeedsConfirm)
	assert.Equal(t, "abc", h.ctrl.State().InputText)

	res = h.coord.ConfirmReplace(ctx)
	assert.False(t, res.NeedsConfirm)
	assert.Empty(t, res.Redirect)

	paused, ok := h.store.PausedWork(ctx, "W1")
	require.True(t, ok)
	assert.Equal(t, "abc", paused.InputText)
	assert.Equal(t, "W1", paused.WorkID)

	d := h.ctrl.State()
	assert.True(t, d.IsEmpty())
	assert.Empty(t, h.ctrl.Identity())
	for _, key := range []string{RecoveryKey, GenericDraftKey, PointerKey, WorkSnapshotKey} {
		assert.False(t, h.kv.has(key), key)
	}
	// 作品自己的草稿键保留，再次编辑该作品时仍可恢复
	assert.True(t, h.kv.has(DraftKeyFor("W1")))
}

func TestCoordinator_ReplaceCancelsPendingSave(t *testing.T) {
	h := newHarness(t, draftWith(func(d *entity.DraftState) { d.CurrentWorkID = "W1" }), "")
	ctx := context.Background()

	h.ctrl.Apply(Mutation{InputText: strPtr("typing")})
	h.coord.ConfirmReplace(ctx)
	h.clock.Advance(5 * time.Second)

	assert.False(t, h.kv.has(DraftKeyFor("W1")))
	assert.False(t, h.kv.has(GenericDraftKey))
	paused, ok := h.store.PausedWork(ctx, "W1")
	require.True(t, ok)
	assert.Equal(t, "typing", paused.InputText)
}

func TestCoordinator_ReplaceStopsPolling(t *testing.T) {
	h := newHarness(t, withInput("abc"), "")
	require.NoError(t, h.lifecycle.StartGeneration(context.Background(), ""))
	taskID := h.images.dispatched()[0].TaskID

	h.coord.ConfirmReplace(context.Background())
	assert.Empty(t, h.lifecycle.PollingTaskID())

	h.tasks.set(taskID, entity.TaskStatusCompleted, "https://x/late.png")
	time.Sleep(10 * testPollInterval)
	assert.Empty(t, h.ctrl.State().GeneratedImages)
}

func TestCoordinator_NoIdentityResetsImmediately(t *testing.T) {
	h := newHarness(t, withInput("draft only"), "")
	h.kv.putDraft(t, GenericDraftKey, savedDraft("", "draft only", 1))

	res := h.coord.RequestNewWork(context.Background())
	assert.False(t, res.NeedsConfirm)
	assert.True(t, h.ctrl.State().IsEmpty())
	assert.False(t, h.kv.has(GenericDraftKey))
}

func TestCoordinator_ResetClearsWorkDraftAndRedirects(t *testing.T) {
	h := newHarness(t, entity.NewDraftState(), "W7")
	h.kv.putDraft(t, DraftKeyFor("W7"), savedDraft("W7", "x", 1))

	res := h.coord.RequestNewWork(context.Background())
	assert.False(t, res.NeedsConfirm)
	assert.Equal(t, CleanCreationPath, res.Redirect)
	assert.False(t, h.kv.has(DraftKeyFor("W7")))
	assert.Empty(t, h.ctrl.EditID())
}

func TestCoordinator_ReplaceDropsInFlightAnalysis(t *testing.T) {
	h := newHarness(t, withInput("周末咖啡馆"), "")
	ctx := context.Background()
	gate := make(chan struct{})
	h.content.gate = gate

	done := make(chan error, 1)
	go func() { done <- h.lifecycle.StartGeneration(ctx, "") }()
	assert.Eventually(t, func() bool { return h.ctrl.Identity() == "task-1" }, waitFor, tick)

	require.True(t, h.coord.RequestNewWork(ctx).NeedsConfirm)
	h.coord.ConfirmReplace(ctx)
	assert.Equal(t, PhaseIdle, h.lifecycle.Phase())

	close(gate)
	require.NoError(t, <-done)
	h.clock.Advance(5 * time.Second)

	d := h.ctrl.State()
	assert.True(t, d.IsEmpty())
	assert.Empty(t, d.GeneratedPrompt)
	assert.Nil(t, d.XhsContent)
	assert.Empty(t, h.ctrl.Identity())
	assert.Empty(t, h.images.dispatched())
	assert.Empty(t, h.lifecycle.PollingTaskID())
	assert.False(t, h.kv.has(RecoveryKey))
	assert.False(t, h.kv.has(GenericDraftKey))
	// 未投递的任务不会再被处理
	assert.Equal(t, entity.TaskStatusFailed, h.tasks.record("task-1").Status)

	paused, ok := h.store.PausedWork(ctx, "task-1")
	require.True(t, ok)
	assert.Equal(t, "周末咖啡馆", paused.InputText)
}

func TestCoordinator_NewGenerationAfterReplace(t *testing.T) {
	h := newHarness(t, withInput("旧作品"), "")
	ctx := context.Background()
	require.NoError(t, h.lifecycle.StartGeneration(ctx, ""))
	old := h.images.dispatched()[0].TaskID

	h.coord.ConfirmReplace(ctx)
	h.ctrl.Apply(Mutation{InputText: strPtr("新作品")})
	require.NoError(t, h.lifecycle.StartGeneration(ctx, ""))
	jobs := h.images.dispatched()
	require.Len(t, jobs, 2)
	assert.Equal(t, jobs[1].TaskID, h.lifecycle.PollingTaskID())

	h.tasks.set(old, entity.TaskStatusCompleted, "https://x/old.png")
	h.tasks.set(jobs[1].TaskID, entity.TaskStatusCompleted, "https://x/new.png")
	assert.Eventually(t, func() bool { return h.lifecycle.Phase() == PhaseIdle }, waitFor, tick)
	assert.Equal(t, []string{"https://x/new.png"}, h.ctrl.State().GeneratedImages)
}
