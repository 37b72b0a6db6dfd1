// Package fanout runs independent keyed tasks on a bounded worker pool and
// collects one outcome per task.
package fanout

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/agentstation/edimap/pkg/constants"
	"github.com/agentstation/edimap/pkg/errors"
)

// Task is a unit of work identified by Key.
type Task[K comparable, R any] struct {
	Key K
	Run func(ctx context.Context) (R, error)
}

// Outcome is the result of one task. Exactly one of Value or Err is meaningful.
type Outcome[R any] struct {
	Value R
	Err   error
}

// OK reports whether the task succeeded.
func (o Outcome[R]) OK() bool { return o.Err == nil }

// Workers returns the pool size for n tasks, capped at limit.
// A non-positive limit falls back to the default.
func Workers(n, limit int) int {
	if limit <= 0 {
		limit = constants.DefaultMaxWorkers
	}
	return max(1, min(n, limit))
}

// Run executes tasks with at most workers running at once and returns an
// outcome for every key. A failing or panicking task never stops the others.
// Tasks not yet started when ctx is canceled report the context error.
// Keys are expected to be unique; a duplicate key keeps the later task's outcome.
func Run[K comparable, R any](ctx context.Context, workers int, tasks []Task[K, R]) map[K]Outcome[R] {
	outcomes := make([]Outcome[R], len(tasks))

	g := new(errgroup.Group)
	g.SetLimit(Workers(len(tasks), workers))
	for i, task := range tasks {
		g.Go(func() error {
			outcomes[i] = runOne(ctx, task)
			return nil
		})
	}
	_ = g.Wait()

	results := make(map[K]Outcome[R], len(tasks))
	for i, task := range tasks {
		results[task.Key] = outcomes[i]
	}
	return results
}

func runOne[K comparable, R any](ctx context.Context, task Task[K, R]) (out Outcome[R]) {
	if err := ctx.Err(); err != nil {
		out.Err = errors.Join(errors.ErrCanceled, err)
		return out
	}
	defer func() {
		if r := recover(); r != nil {
			out = Outcome[R]{Err: fmt.Errorf("task %v panicked: %v\n%s", task.Key, r, debug.Stack())}
		}
	}()
	v, err := task.Run(ctx)
	return Outcome[R]{Value: v, Err: err}
}

// Reduce folds the outcomes in task order, calling onError for each failure.
// Completion order never affects the result.
func Reduce[K comparable, R, A any](tasks []Task[K, R], outcomes map[K]Outcome[R], acc A, fold func(A, K, R) A, onError func(K, error)) A {
	for _, task := range tasks {
		out, ok := outcomes[task.Key]
		if !ok {
			continue
		}
		if out.Err != nil {
			if onError != nil {
				onError(task.Key, out.Err)
			}
			continue
		}
		acc = fold(acc, task.Key, out.Value)
	}
	return acc
}
