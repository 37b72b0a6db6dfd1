package fanout

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/agentstation/edimap/pkg/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func squares(n int, fail map[int]bool) []Task[int, int] {
	tasks := make([]Task[int, int], n)
	for i := range n {
		tasks[i] = Task[int, int]{
			Key: i,
			Run: func(context.Context) (int, error) {
				if fail[i] {
					return 0, fmt.Errorf("task %d failed", i)
				}
				return i * i, nil
			},
		}
	}
	return tasks
}

func TestRunCollectsEveryOutcome(t *testing.T) {
	tasks := squares(12, map[int]bool{3: true, 7: true})
	outcomes := Run(context.Background(), 4, tasks)

	require.Len(t, outcomes, 12)
	for i := range 12 {
		if i == 3 || i == 7 {
			assert.False(t, outcomes[i].OK())
			continue
		}
		assert.True(t, outcomes[i].OK())
		assert.Equal(t, i*i, outcomes[i].Value)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	tasks := make([]Task[int, struct{}], 20)
	for i := range tasks {
		tasks[i] = Task[int, struct{}]{Key: i, Run: func(context.Context) (struct{}, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return struct{}{}, nil
		}}
	}

	Run(context.Background(), 3, tasks)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestRunRecoversPanics(t *testing.T) {
	tasks := []Task[string, int]{
		{Key: "ok", Run: func(context.Context) (int, error) { return 1, nil }},
		{Key: "boom", Run: func(context.Context) (int, error) { panic("unexpected reply") }},
	}
	outcomes := Run(context.Background(), 2, tasks)

	assert.True(t, outcomes["ok"].OK())
	require.Error(t, outcomes["boom"].Err)
	assert.Contains(t, outcomes["boom"].Err.Error(), "unexpected reply")
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	tasks := []Task[int, int]{{Key: 1, Run: func(context.Context) (int, error) {
		calls.Add(1)
		return 1, nil
	}}}
	outcomes := Run(ctx, 1, tasks)

	assert.Zero(t, calls.Load())
	assert.True(t, errors.IsCanceled(outcomes[1].Err))
}

func TestRunEmpty(t *testing.T) {
	outcomes := Run[int, int](context.Background(), 5, nil)
	assert.Empty(t, outcomes)
}

func TestReduceFollowsTaskOrder(t *testing.T) {
	tasks := squares(6, map[int]bool{2: true})
	outcomes := Run(context.Background(), 6, tasks)

	var failed []int
	got := Reduce(tasks, outcomes, []int(nil),
		func(acc []int, _ int, v int) []int { return append(acc, v) },
		func(k int, _ error) { failed = append(failed, k) })

	assert.Equal(t, []int{0, 1, 9, 16, 25}, got)
	assert.Equal(t, []int{2}, failed)
}

func TestWorkers(t *testing.T) {
	tests := []struct {
		n, limit, want int
	}{
		{n: 3, limit: 5, want: 3},
		{n: 12, limit: 5, want: 5},
		{n: 12, limit: 0, want: 5},
		{n: 0, limit: 5, want: 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Workers(tt.n, tt.limit), "n=%d limit=%d", tt.n, tt.limit)
	}
}
