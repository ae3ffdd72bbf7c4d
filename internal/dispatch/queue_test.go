package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-sender/internal/dispatch"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder collects results in the order the worker reports them.
type recorder struct {
	mu      sync.Mutex
	results []dispatch.Result
}

func (r *recorder) add(res dispatch.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) snapshot() []dispatch.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dispatch.Result(nil), r.results...)
}

func startQueue(t *testing.T, opts ...dispatch.Option) *dispatch.Queue {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	q := dispatch.New(append([]dispatch.Option{dispatch.WithLogger(testLogger())}, opts...)...)
	q.Start(ctx)
	return q
}

func waitIdle(t *testing.T, q *dispatch.Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))
}

func TestQueue_ExecutesInSubmissionOrder(t *testing.T) {
	q := startQueue(t)

	var mu sync.Mutex
	var order []int
	const n = 50
	for i := 0; i < n; i++ {
		i := i
		q.Submit(dispatch.Task{Name: fmt.Sprintf("job-%d", i), Run: func(context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}})
	}
	waitIdle(t, q)

	require.Len(t, order, n)
	for i, got := range order {
		assert.Equal(t, i, got)
	}
}

func TestQueue_NeverRunsTwoTasksAtOnce(t *testing.T) {
	q := startQueue(t)

	var mu sync.Mutex
	active, maxActive := 0, 0
	for i := 0; i < 20; i++ {
		q.Submit(dispatch.Task{Run: func(context.Context) error {
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			return nil
		}})
	}
	waitIdle(t, q)

	assert.Equal(t, 1, maxActive)
}

func TestQueue_SubmitDoesNotBlockWhileWorkerBusy(t *testing.T) {
	q := startQueue(t)

	release := make(chan struct{})
	started := make(chan struct{})
	q.Submit(dispatch.Task{Name: "slow", Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}})
	<-started

	begin := time.Now()
	for i := 0; i < 1000; i++ {
		q.Submit(dispatch.Task{Run: func(context.Context) error { return nil }})
	}
	elapsed := time.Since(begin)

	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, 1000, q.Pending())
	assert.True(t, q.Running())

	close(release)
	waitIdle(t, q)
	assert.Zero(t, q.Pending())
	assert.False(t, q.Running())
}

func TestQueue_FailingTaskIsIsolated(t *testing.T) {
	rec := &recorder{}
	q := startQueue(t, dispatch.WithResultHandler(rec.add))

	ran := false
	failID := q.Submit(dispatch.Task{Name: "fail", Run: func(context.Context) error {
		return errors.New("upload rejected")
	}})
	okID := q.Submit(dispatch.Task{Name: "ok", Run: func(context.Context) error {
		ran = true
		return nil
	}})
	waitIdle(t, q)

	assert.True(t, ran)
	assert.Zero(t, q.Pending())

	results := rec.snapshot()
	require.Len(t, results, 2)
	assert.Equal(t, failID, results[0].TaskID)
	assert.EqualError(t, results[0].Err, "upload rejected")
	assert.False(t, results[0].OK())
	assert.Equal(t, okID, results[1].TaskID)
	assert.True(t, results[1].OK())
}

func TestQueue_PanickingTaskIsIsolated(t *testing.T) {
	rec := &recorder{}
	q := startQueue(t, dispatch.WithResultHandler(rec.add))

	q.Submit(dispatch.Task{Name: "boom", Run: func(context.Context) error {
		panic("transcoder exploded")
	}})
	q.Submit(dispatch.Task{Name: "after", Run: func(context.Context) error { return nil }})
	waitIdle(t, q)

	results := rec.snapshot()
	require.Len(t, results, 2)
	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "transcoder exploded")
	assert.True(t, results[1].OK())
}

func TestQueue_NilRunIsReportedAsFailure(t *testing.T) {
	rec := &recorder{}
	q := startQueue(t, dispatch.WithResultHandler(rec.add))

	q.Submit(dispatch.Task{Name: "empty"})
	waitIdle(t, q)

	results := rec.snapshot()
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
}

func TestQueue_BuffersTasksBeforeStart(t *testing.T) {
	rec := &recorder{}
	q := dispatch.New(dispatch.WithLogger(testLogger()), dispatch.WithResultHandler(rec.add))

	q.Submit(dispatch.Task{ID: "first", Run: func(context.Context) error { return nil }})
	q.Submit(dispatch.Task{ID: "second", Run: func(context.Context) error { return nil }})
	assert.Equal(t, 2, q.Pending())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	q.Start(ctx)
	waitIdle(t, q)

	results := rec.snapshot()
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].TaskID)
	assert.Equal(t, "second", results[1].TaskID)
}

func TestQueue_SubmitAssignsIDs(t *testing.T) {
	q := dispatch.New(dispatch.WithLogger(testLogger()))

	a := q.Submit(dispatch.Task{})
	b := q.Submit(dispatch.Task{})
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, "fixed", q.Submit(dispatch.Task{ID: "fixed"}))
}

func TestQueue_WaitHonorsContext(t *testing.T) {
	q := dispatch.New(dispatch.WithLogger(testLogger()))
	q.Submit(dispatch.Task{Run: func(context.Context) error { return nil }})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Wait(ctx), context.DeadlineExceeded)
}

func TestQueue_WorkerResumesAfterIdle(t *testing.T) {
	rec := &recorder{}
	q := startQueue(t, dispatch.WithResultHandler(rec.add))

	q.Submit(dispatch.Task{Run: func(context.Context) error { return nil }})
	waitIdle(t, q)

	q.Submit(dispatch.Task{Run: func(context.Context) error { return nil }})
	waitIdle(t, q)

	assert.Len(t, rec.snapshot(), 2)
}
