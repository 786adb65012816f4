package exam

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/eduquest/internal/model"
)

type resultSink struct {
	mu      sync.Mutex
	results []model.ExamResult
}

func (r *resultSink) add(res model.ExamResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *resultSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func newTestRunner(t *testing.T, e model.Exam) (*Runner, chan time.Time, *resultSink) {
	t.Helper()
	s := startTestSession(t, e)
	ticks := make(chan time.Time)
	sink := &resultSink{}
	r := NewRunner(context.Background(), s, RunnerConfig{Ticks: ticks, OnComplete: sink.add})
	return r, ticks, sink
}

func waitDone(t *testing.T, r *Runner) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunnerSubmit(t *testing.T) {
	r, _, sink := newTestRunner(t, twoQuestionExam())
	ctx := context.Background()

	require.NoError(t, r.Do(ctx, func(s *Session) error { return s.SelectAnswer(1, 1) }))
	require.NoError(t, r.Do(ctx, (*Session).Next))

	res, err := r.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.Score)
	waitDone(t, r)
	assert.Equal(t, 1, sink.count())

	_, err = r.Submit(ctx)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Equal(t, 1, sink.count())

	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, snap.Status)
	assert.Equal(t, 1, snap.CurrentIndex)
}

func TestRunnerCommandErrorsKeepRunning(t *testing.T) {
	r, _, _ := newTestRunner(t, twoQuestionExam())
	ctx := context.Background()

	err := r.Do(ctx, func(s *Session) error { return s.SelectAnswer(1, 3) })
	assert.ErrorIs(t, err, ErrInvalidOptionIndex)

	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, snap.Status)
	require.NoError(t, r.Cancel(ctx))
	waitDone(t, r)
}

func TestRunnerTimeout(t *testing.T) {
	e := twoQuestionExam()
	e.DurationSeconds = 2
	r, ticks, sink := newTestRunner(t, e)
	ctx := context.Background()

	require.NoError(t, r.Do(ctx, func(s *Session) error { return s.SelectAnswer(1, 1) }))
	ticks <- time.Now()
	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.RemainingSeconds)

	ticks <- time.Now()
	waitDone(t, r)
	require.Equal(t, 1, sink.count())
	assert.Equal(t, 10.0, sink.results[0].Score)

	_, err = r.Submit(ctx)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Equal(t, 1, sink.count())
}

func TestRunnerCancel(t *testing.T) {
	r, _, sink := newTestRunner(t, twoQuestionExam())
	ctx := context.Background()

	require.NoError(t, r.Cancel(ctx))
	waitDone(t, r)
	assert.Equal(t, 0, sink.count())

	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, snap.Status)
}

func TestRunnerContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := startTestSession(t, twoQuestionExam())
	sink := &resultSink{}
	r := NewRunner(ctx, s, RunnerConfig{Ticks: make(chan time.Time), OnComplete: sink.add})

	cancel()
	waitDone(t, r)
	assert.Equal(t, 0, sink.count())
	assert.Equal(t, model.StatusCancelled, s.Status())
}

func TestRunnerRealTicker(t *testing.T) {
	if testing.Short() {
		t.Skip("uses the wall clock")
	}
	e := twoQuestionExam()
	e.DurationSeconds = 1
	s := startTestSession(t, e)
	sink := &resultSink{}
	r := NewRunner(context.Background(), s, RunnerConfig{OnComplete: sink.add})

	waitDone(t, r)
	assert.Equal(t, 1, sink.count())
}
