package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/trogers1052/market-sync/internal/ingest"
)

type fakeRunner struct {
	mu      sync.Mutex
	prices  int
	news    int
	err     error
	lastCtx context.Context
}

func (f *fakeRunner) SyncAll(ctx context.Context) (*ingest.RunSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices++
	f.lastCtx = ctx
	if f.err != nil {
		return nil, f.err
	}
	return &ingest.RunSummary{RunID: "r1", Kind: ingest.RunPrices}, nil
}

func (f *fakeRunner) SyncNewsAll(ctx context.Context) (*ingest.RunSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.news++
	if f.err != nil {
		return nil, f.err
	}
	return &ingest.RunSummary{RunID: "r2", Kind: ingest.RunNews}, nil
}

func TestNextRun_WeekdayCadenceInReferenceZone(t *testing.T) {
	sgt, err := time.LoadLocation("Asia/Singapore")
	require.NoError(t, err)

	// Friday 2025-01-03 07:00 SGT, already past today's slot
	from := time.Date(2025, 1, 3, 7, 0, 0, 0, sgt)
	next, err := NextRun("0 6 * * 1-5", from, sgt)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 6, 6, 0, 0, 0, sgt), next, "weekend is skipped")

	// 2025-01-05 21:30 UTC is Monday 05:30 SGT
	next, err = NextRun("0 6 * * 1-5", time.Date(2025, 1, 5, 21, 30, 0, 0, time.UTC), sgt)
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2025, 1, 6, 6, 0, 0, 0, sgt)))

	_, err = NextRun("not a cron", from, sgt)
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	t.Run("adds both jobs", func(t *testing.T) {
		s := New(&fakeRunner{}, time.UTC, arbor.NewNoOpLogger())
		require.NoError(t, s.Register("0 6 * * 1-5", "30 6 * * 1-5"))
		assert.Len(t, s.cron.Entries(), 2)
	})

	t.Run("empty expression disables a job", func(t *testing.T) {
		s := New(&fakeRunner{}, time.UTC, arbor.NewNoOpLogger())
		require.NoError(t, s.Register("0 6 * * 1-5", ""))
		assert.Len(t, s.cron.Entries(), 1)
	})

	t.Run("rejects invalid expressions", func(t *testing.T) {
		s := New(&fakeRunner{}, time.UTC, arbor.NewNoOpLogger())
		err := s.Register("61 * * * *", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid prices schedule")
	})
}

func TestJob_InvokesRunnerWithStartContext(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, time.UTC, arbor.NewNoOpLogger())

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "run")
	s.Start(ctx)
	defer s.Stop()

	s.job(ingest.RunPrices, runner.SyncAll)()
	s.job(ingest.RunNews, runner.SyncNewsAll)()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, 1, runner.prices)
	assert.Equal(t, 1, runner.news)
	assert.Equal(t, "run", runner.lastCtx.Value(key{}))
}

func TestJob_SurvivesRunErrors(t *testing.T) {
	for _, err := range []error{ingest.ErrRunInProgress, errors.New("store down")} {
		runner := &fakeRunner{err: err}
		s := New(runner, time.UTC, arbor.NewNoOpLogger())

		assert.NotPanics(t, s.job(ingest.RunPrices, runner.SyncAll))
		assert.Equal(t, 1, runner.prices)
	}
}
