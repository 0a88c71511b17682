package demo

import (
	"context"

	"github.com/taskboards/taskboards/internal/api"
	"github.com/taskboards/taskboards/internal/types"
)

// Fallback produces the value returned instead of a live result.
type Fallback[T any] func(demoTasks []types.Task) T

// Constant returns a Fallback that ignores the dataset.
func Constant[T any](v T) Fallback[T] {
	return func([]types.Task) T { return v }
}

// Tasks is the Fallback that returns the demo dataset itself.
func Tasks(demoTasks []types.Task) []types.Task {
	return demoTasks
}

// RunWithFallback runs op unless demo mode is on. A 503 from op switches demo
// mode on and yields the fallback; other errors are returned unchanged.
// A nil fallback yields the zero value of T.
func RunWithFallback[T any](ctx context.Context, c *Coordinator, op func(context.Context) (T, error), fallback Fallback[T]) (T, error) {
	if c.DemoMode() {
		return fallbackValue(ctx, c, fallback), nil
	}

	v, err := op(ctx)
	if err == nil {
		return v, nil
	}
	if api.IsServiceUnavailable(err) {
		c.EnterDemo(err.Error())
		return fallbackValue(ctx, c, fallback), nil
	}
	var zero T
	return zero, err
}

func fallbackValue[T any](ctx context.Context, c *Coordinator, fallback Fallback[T]) T {
	if fallback == nil {
		var zero T
		return zero
	}
	return fallback(c.Tasks(ctx))
}
