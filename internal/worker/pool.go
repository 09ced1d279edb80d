// Package worker runs independent tasks on a bounded pool and records the
// outcome of every task. A failing task never cancels its siblings.
package worker

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one task
type Result struct {
	Name    string
	Err     error
	Elapsed time.Duration
}

// Report collects the results of a batch in submission order.
type Report struct {
	Results []Result
}

// Succeeded returns the number of tasks that finished without error
func (r *Report) Succeeded() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Slowest returns the task that took longest, or false for an empty report
func (r *Report) Slowest() (Result, bool) {
	if r == nil || len(r.Results) == 0 {
		return Result{}, false
	}
	slowest := r.Results[0]
	for _, res := range r.Results[1:] {
		if res.Elapsed > slowest.Elapsed {
			slowest = res
		}
	}
	return slowest, true
}

// Failed returns the number of tasks that returned an error
func (r *Report) Failed() int {
	if r == nil {
		return 0
	}
	return len(r.Results) - r.Succeeded()
}

// Failures returns the failed results in submission order
func (r *Report) Failures() []Result {
	if r == nil {
		return nil
	}
	var failed []Result
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// ProgressFunc is called after each task completes. It may be called from
// several goroutines at once.
type ProgressFunc func(done, total int, name string)

// Run executes task for every item with at most limit tasks in flight. A
// limit of zero or less uses GOMAXPROCS. Items not yet started when ctx is
// cancelled are recorded with the context error.
func Run[T any](ctx context.Context, limit int, items []T, name func(T) string, task func(context.Context, T) error, progress ProgressFunc) *Report {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	report := &Report{Results: make([]Result, len(items))}
	var done atomic.Int64

	var g errgroup.Group
	g.SetLimit(limit)

	for i, item := range items {
		g.Go(func() error {
			res := &report.Results[i]
			res.Name = name(item)

			if err := ctx.Err(); err != nil {
				res.Err = err
			} else {
				start := time.Now()
				res.Err = task(ctx, item)
				res.Elapsed = time.Since(start)
			}

			if progress != nil {
				progress(int(done.Add(1)), len(items), res.Name)
			}
			return nil
		})
	}

	g.Wait()
	return report
}
