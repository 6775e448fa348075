package lark

import (
	"context"
	"sync"
)

// OnStartFunc is called when a worker begins one cell fill. The cellID
// parameter identifies which cell is now being filled.
type OnStartFunc func(cellID string)

// ChildAppender is the one client call the pool needs. *Client satisfies it.
type ChildAppender interface {
	AppendChildren(ctx context.Context, docToken, parentID string, children []Block) ([]Block, error)
}

// WorkerPool runs grid cell fills in parallel. Cell fills are independent
// and order-insensitive, so a semaphore-bounded fan-out is safe; the shared
// client still spaces the individual calls through its rate limiter.
type WorkerPool struct {
	client      ChildAppender
	concurrency int
	semaphore   chan struct{}
	onStart     OnStartFunc
}

// NewWorkerPool creates a worker pool with the specified concurrency limit,
// clamped to 1-20.
func NewWorkerPool(client ChildAppender, concurrency int) *WorkerPool {
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 20 {
		concurrency = 20
	}
	return &WorkerPool{
		client:      client,
		concurrency: concurrency,
		semaphore:   make(chan struct{}, concurrency),
	}
}

// DefaultWorkerPool creates a worker pool with the default concurrency (5).
func DefaultWorkerPool(client ChildAppender) *WorkerPool {
	return NewWorkerPool(client, 5)
}

// SetOnStart sets a callback that fires when a worker picks up a cell.
// Called after the semaphore slot is acquired, just before the API call.
func (p *WorkerPool) SetOnStart(fn OnStartFunc) {
	p.onStart = fn
}

// CellAppend is one unit of work: the blocks to append into a grid cell.
type CellAppend struct {
	CellID   string
	Children []Block
}

// CellAppendResult reports one completed cell fill.
type CellAppendResult struct {
	CellID string
	Err    error
}

// AppendCellsParallel fills grid cells concurrently. Results arrive on the
// returned channel in completion order; the channel is closed when all fills
// complete or the context is canceled.
func (p *WorkerPool) AppendCellsParallel(ctx context.Context, docToken string, fills []CellAppend) <-chan CellAppendResult {
	results := make(chan CellAppendResult, len(fills))

	go func() {
		defer close(results)

		var wg sync.WaitGroup
		for _, fill := range fills {
			// Check context before starting new work
			select {
			case <-ctx.Done():
				wg.Wait()
				return
			default:
			}

			// Acquire semaphore slot
			select {
			case p.semaphore <- struct{}{}:
			case <-ctx.Done():
				wg.Wait()
				return
			}

			wg.Add(1)
			go func(f CellAppend) {
				defer wg.Done()
				defer func() { <-p.semaphore }() // Release semaphore slot

				if p.onStart != nil {
					p.onStart(f.CellID)
				}

				_, err := p.client.AppendChildren(ctx, docToken, f.CellID, f.Children)
				select {
				case results <- CellAppendResult{CellID: f.CellID, Err: err}:
				case <-ctx.Done():
				}
			}(fill)
		}

		wg.Wait()
	}()

	return results
}
