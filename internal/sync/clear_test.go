package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/larkmd/larkmd/internal/lark"
)

type deleteCall struct {
	start, end int
}

type fakeClearClient struct {
	children []lark.Block
	listErr  error
	titles   []string
	titleErr error
	deletes  []deleteCall
	failBulk bool
	failAll  bool
}

func (f *fakeClearClient) BlockChildren(ctx context.Context, docToken, blockID string) ([]lark.Block, error) {
	return f.children, f.listErr
}

func (f *fakeClearClient) UpdateTitle(ctx context.Context, docToken, title string) error {
	f.titles = append(f.titles, title)
	return f.titleErr
}

func (f *fakeClearClient) DeleteChildRange(ctx context.Context, docToken, parentID string, startIndex, endIndex int) error {
	f.deletes = append(f.deletes, deleteCall{startIndex, endIndex})
	if f.failAll {
		return errors.New("delete rejected")
	}
	if f.failBulk && len(f.deletes) == 1 {
		return errors.New("range too large")
	}
	return nil
}

func childBlocks(n int) []lark.Block {
	blocks := make([]lark.Block, n)
	for i := range blocks {
		blocks[i] = lark.Block{BlockID: fmt.Sprintf("blk-%d", i), BlockType: lark.BlockTypeText}
	}
	return blocks
}

func TestClearEmptyDocument(t *testing.T) {
	fake := &fakeClearClient{}
	clearer := NewClearer(fake, testLogger())

	deleted, err := clearer.Clear(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
	if len(fake.deletes) != 0 {
		t.Errorf("delete calls = %d, want 0", len(fake.deletes))
	}
	// Title still reset even when there is nothing to delete.
	if len(fake.titles) != 1 || fake.titles[0] != "" {
		t.Errorf("titles = %v, want one empty title update", fake.titles)
	}
}

func TestClearBulkDelete(t *testing.T) {
	fake := &fakeClearClient{children: childBlocks(30)}
	clearer := NewClearer(fake, testLogger())

	deleted, err := clearer.Clear(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if deleted != 30 {
		t.Errorf("deleted = %d, want 30", deleted)
	}
	if len(fake.deletes) != 1 {
		t.Fatalf("delete calls = %d, want 1", len(fake.deletes))
	}
	if fake.deletes[0] != (deleteCall{0, 30}) {
		t.Errorf("delete range = %v, want {0 30}", fake.deletes[0])
	}
}

func TestClearFallsBackToSubBatches(t *testing.T) {
	shrinkBatchDelay(t)
	fake := &fakeClearClient{children: childBlocks(120), failBulk: true}
	clearer := NewClearer(fake, testLogger())

	deleted, err := clearer.Clear(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if deleted != 120 {
		t.Errorf("deleted = %d, want 120", deleted)
	}

	want := []deleteCall{{0, 120}, {0, 50}, {0, 50}, {0, 20}}
	if len(fake.deletes) != len(want) {
		t.Fatalf("delete calls = %v, want %v", fake.deletes, want)
	}
	for i := range want {
		if fake.deletes[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, fake.deletes[i], want[i])
		}
	}
}

func TestClearSubBatchFailure(t *testing.T) {
	shrinkBatchDelay(t)
	fake := &fakeClearClient{children: childBlocks(120), failAll: true}
	clearer := NewClearer(fake, testLogger())

	deleted, err := clearer.Clear(context.Background(), "doc-1")
	if err == nil || !strings.Contains(err.Error(), "deleting sub-batch") {
		t.Fatalf("Clear() error = %v, want a sub-batch failure", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
	// Bulk attempt plus the first failed sub-batch.
	if len(fake.deletes) != 2 {
		t.Errorf("delete calls = %d, want 2", len(fake.deletes))
	}
}

func TestClearTitleError(t *testing.T) {
	fake := &fakeClearClient{children: childBlocks(3), titleErr: errors.New("boom")}
	clearer := NewClearer(fake, testLogger())

	if _, err := clearer.Clear(context.Background(), "doc-1"); err == nil || !strings.Contains(err.Error(), "clearing title") {
		t.Errorf("Clear() error = %v, want a title failure", err)
	}
}

func TestClearListError(t *testing.T) {
	fake := &fakeClearClient{listErr: errors.New("boom")}
	clearer := NewClearer(fake, testLogger())

	if _, err := clearer.Clear(context.Background(), "doc-1"); err == nil || !strings.Contains(err.Error(), "listing children") {
		t.Errorf("Clear() error = %v, want a list failure", err)
	}
}
