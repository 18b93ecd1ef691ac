package analysis

import (
	"context"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/schollz/progressbar/v3"

	"github.com/emberwatch/burnsight/internal/notification"
)

// BatchItem is one named request in a multi-area run.
type BatchItem struct {
	Name    string
	Request Request
}

// BatchResult pairs an item with its outcome. Failures are per item: one bad
// area never aborts the others.
type BatchResult struct {
	Name   string
	Result *Result
	Err    error
}

// RunBatch executes many analyses on a bounded worker pool. Results come
// back in input order.
func (e *Engine) RunBatch(ctx context.Context, items []BatchItem, workers int, notifier *notification.Notifier) []BatchResult {
	if workers <= 0 {
		workers = 4
	}

	var (
		mu          sync.Mutex
		failed      int
		progressBar = progressbar.Default(int64(len(items)), "Assessing areas")
	)
	results := make([]BatchResult, len(items))

	wp := workerpool.New(workers)
	for i, item := range items {
		i, item := i, item
		wp.Submit(func() {
			result, err := e.Run(ctx, item.Request)
			mu.Lock()
			results[i] = BatchResult{Name: item.Name, Result: result, Err: err}
			if err != nil {
				failed++
			}
			progressBar.Add(1)
			mu.Unlock()
		})
	}
	wp.StopWait()
	fmt.Println()

	if notifier != nil {
		summary := fmt.Sprintf("%d areas assessed, %d failed", len(items), failed)
		if failed > 0 {
			notifier.Failure(summary)
		} else {
			notifier.Success(summary)
		}
	}
	return results
}
