package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	calls   *atomic.Int32
	release chan struct{}
	err     error
}

func (r stubRunner) RunPass(ctx context.Context) (*pipeline.Report, error) {
	r.calls.Add(1)
	if r.release != nil {
		<-r.release
	}
	return &pipeline.Report{PassID: "pass"}, r.err
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := NewScheduler("not a cron spec", false, func(time.Time) PassRunner {
		t.Fatal("runner should not be created")
		return nil
	})

	err := s.Start(context.Background())
	assert.Error(t, err)
}

func TestScheduler_RunOnStart(t *testing.T) {
	calls := &atomic.Int32{}
	s := NewScheduler("@hourly", true, func(time.Time) PassRunner {
		return stubRunner{calls: calls}
	})

	require.NoError(t, s.Start(context.Background()))
	s.Stop()

	assert.Equal(t, int32(1), calls.Load())
	report, err := s.Last()
	require.NoError(t, err)
	assert.Equal(t, "pass", report.PassID)
}

func TestScheduler_SkipsOverlappingPass(t *testing.T) {
	calls := &atomic.Int32{}
	release := make(chan struct{})
	s := NewScheduler("@hourly", false, func(time.Time) PassRunner {
		return stubRunner{calls: calls, release: release}
	})

	done := make(chan bool)
	go func() { done <- s.RunNow(context.Background()) }()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, s.RunNow(context.Background()))

	close(release)
	assert.True(t, <-done)
	assert.True(t, s.RunNow(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestScheduler_KeepsLastError(t *testing.T) {
	failure := errors.New("lock held")
	s := NewScheduler("@hourly", false, func(time.Time) PassRunner {
		return stubRunner{calls: &atomic.Int32{}, err: failure}
	})

	assert.True(t, s.RunNow(context.Background()))
	_, err := s.Last()
	assert.ErrorIs(t, err, failure)
}
