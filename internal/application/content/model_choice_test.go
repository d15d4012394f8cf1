package content

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	ids   []string
	err   error
	calls atomic.Int32
}

func (f *fakeLister) ListModels(context.Context) ([]string, error) {
	f.calls.Add(1)
	return f.ids, f.err
}

func TestScoreModelID(t *testing.T) {
	assert.Greater(t, ScoreModelID("gemini-2.5-pro"), ScoreModelID("gemini-2.5-flash"))
	assert.Greater(t, ScoreModelID("gemini-2.5-flash"), ScoreModelID("gemini-2.0-pro"))
	assert.Greater(t, ScoreModelID("gpt-4.1"), ScoreModelID("gpt-4o"))
	assert.Equal(t, 250.0+40+5, ScoreModelID("gemini-2.5-pro-preview"))
}

func TestChooseBestModelID(t *testing.T) {
	ids := []string{"gemini-1.5-pro", "gemini-2.5-flash", "gemini-2.5-flash-image", "text-embedding-ada"}

	assert.Equal(t, "gemini-1.5-pro", ChooseBestModelID(ids, "gemini-1.5-pro", nil, nil))
	assert.Equal(t, "gemini-2.5-flash-image", ChooseBestModelID(ids, "missing", nil, nil))
	assert.Equal(t, "gemini-2.5-flash", ChooseBestModelID(ids, "", nil, []string{"image", "embedding"}))
	assert.Equal(t, "gemini-1.5-pro", ChooseBestModelID(ids, "", []string{"pro"}, nil))
	// 过滤后为空时退回全部候选
	assert.Equal(t, "gemini-2.5-flash-image", ChooseBestModelID(ids, "", []string{"claude"}, nil))
	assert.Empty(t, ChooseBestModelID(nil, "x", nil, nil))
}

func TestModelChooser_CachesWithinTTL(t *testing.T) {
	lister := &fakeLister{ids: []string{"gpt-4o", "gpt-4.1"}}
	c := NewModelChooser(lister, ChooserOptions{TTL: time.Minute})
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	id, err := c.Choose(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", id)

	_, _ = c.Choose(context.Background())
	assert.Equal(t, int32(1), lister.calls.Load())

	now = now.Add(2 * time.Minute)
	lister.ids = []string{"gpt-5"}
	id, err = c.Choose(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gpt-5", id)
	assert.Equal(t, int32(2), lister.calls.Load())
}

func TestModelChooser_ConcurrentCallersShareLookup(t *testing.T) {
	lister := &fakeLister{ids: []string{"gpt-4o"}}
	c := NewModelChooser(lister, ChooserOptions{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := c.Choose(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "gpt-4o", id)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, lister.calls.Load(), int32(8))
	assert.GreaterOrEqual(t, lister.calls.Load(), int32(1))
}

func TestModelChooser_Fallback(t *testing.T) {
	c := NewModelChooser(&fakeLister{err: errors.New("401")}, ChooserOptions{Fallback: "gpt-4o-mini"})
	id, err := c.Choose(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", id)

	c = NewModelChooser(&fakeLister{err: errors.New("401")}, ChooserOptions{})
	_, err = c.Choose(context.Background())
	assert.ErrorIs(t, err, ErrNoModel)

	c = NewModelChooser(nil, ChooserOptions{Fallback: "local"})
	id, err = c.Choose(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "local", id)
}
