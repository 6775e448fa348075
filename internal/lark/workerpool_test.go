package lark

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeAppender records calls and tracks how many run at once.
type fakeAppender struct {
	mu      sync.Mutex
	calls   []string
	active  int32
	maxSeen int32
	delay   time.Duration
	err     error
}

func (f *fakeAppender) AppendChildren(ctx context.Context, docToken, parentID string, children []Block) ([]Block, error) {
	cur := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if cur <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, cur) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.calls = append(f.calls, parentID)
	f.mu.Unlock()
	return children, f.err
}

func cellFills(ids ...string) []CellAppend {
	fills := make([]CellAppend, 0, len(ids))
	for _, id := range ids {
		fills = append(fills, CellAppend{
			CellID:   id,
			Children: []Block{{BlockType: BlockTypeText, Text: &TextPayload{}}},
		})
	}
	return fills
}

func TestNewWorkerPool(t *testing.T) {
	tests := []struct {
		name        string
		concurrency int
		want        int
	}{
		{"normal concurrency", 5, 5},
		{"zero defaults to 1", 0, 1},
		{"negative defaults to 1", -1, 1},
		{"capped at 20", 50, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewWorkerPool(&fakeAppender{}, tt.concurrency)
			if pool.concurrency != tt.want {
				t.Errorf("NewWorkerPool(%d) concurrency = %d, want %d", tt.concurrency, pool.concurrency, tt.want)
			}
		})
	}
}

func TestDefaultWorkerPool(t *testing.T) {
	pool := DefaultWorkerPool(&fakeAppender{})
	if pool.concurrency != 5 {
		t.Errorf("DefaultWorkerPool() concurrency = %d, want 5", pool.concurrency)
	}
}

func TestAppendCellsParallel(t *testing.T) {
	appender := &fakeAppender{}
	pool := NewWorkerPool(appender, 3)

	fills := cellFills("c1", "c2", "c3", "c4", "c5")
	results := pool.AppendCellsParallel(context.Background(), "doc1", fills)

	done := make(map[string]bool)
	for res := range results {
		if res.Err != nil {
			t.Errorf("cell %s: %v", res.CellID, res.Err)
		}
		done[res.CellID] = true
	}

	if len(done) != len(fills) {
		t.Errorf("completed %d cells, want %d", len(done), len(fills))
	}
	for _, f := range fills {
		if !done[f.CellID] {
			t.Errorf("cell %s never completed", f.CellID)
		}
	}
}

func TestAppendCellsParallelConcurrencyBound(t *testing.T) {
	appender := &fakeAppender{delay: 20 * time.Millisecond}
	pool := NewWorkerPool(appender, 2)

	results := pool.AppendCellsParallel(context.Background(), "doc1", cellFills("a", "b", "c", "d", "e", "f"))
	for range results {
	}

	if got := atomic.LoadInt32(&appender.maxSeen); got > 2 {
		t.Errorf("observed %d concurrent fills, want at most 2", got)
	}
}

func TestAppendCellsParallelPropagatesErrors(t *testing.T) {
	appender := &fakeAppender{err: errors.New("boom")}
	pool := NewWorkerPool(appender, 2)

	results := pool.AppendCellsParallel(context.Background(), "doc1", cellFills("a", "b"))

	failed := 0
	for res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed != 2 {
		t.Errorf("failed fills = %d, want 2", failed)
	}
}

func TestAppendCellsParallelContextCanceled(t *testing.T) {
	appender := &fakeAppender{delay: 10 * time.Millisecond}
	pool := NewWorkerPool(appender, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	results := pool.AppendCellsParallel(ctx, "doc1", cellFills("a", "b", "c"))

	// Should complete quickly without blocking
	select {
	case <-time.After(1 * time.Second):
		t.Fatal("AppendCellsParallel did not respect canceled context")
	case _, ok := <-results:
		if ok {
			for range results {
			}
		}
	}
}

func TestAppendCellsParallelOnStart(t *testing.T) {
	appender := &fakeAppender{}
	pool := NewWorkerPool(appender, 2)

	var started int32
	pool.SetOnStart(func(string) { atomic.AddInt32(&started, 1) })

	results := pool.AppendCellsParallel(context.Background(), "doc1", cellFills("a", "b", "c"))
	for range results {
	}

	if got := atomic.LoadInt32(&started); got != 3 {
		t.Errorf("onStart fired %d times, want 3", got)
	}
}
