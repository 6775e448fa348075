package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/larkmd/larkmd/internal/lark"
	"github.com/larkmd/larkmd/internal/transform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func shrinkBatchDelay(t *testing.T) {
	t.Helper()
	old := batchDelay
	batchDelay = time.Millisecond
	t.Cleanup(func() { batchDelay = old })
}

type appendCall struct {
	parentID string
	blocks   []lark.Block
}

// fakeDocClient fabricates append responses: created blocks get sequential
// identifiers and grids come back with their cell IDs populated.
type fakeDocClient struct {
	mu          sync.Mutex
	calls       []appendCall
	nextID      int
	failGrid    bool
	gridNoCells bool
	failParent  string
}

func (f *fakeDocClient) AppendChildren(ctx context.Context, docToken, parentID string, children []lark.Block) ([]lark.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, appendCall{parentID: parentID, blocks: children})

	if f.failParent != "" && parentID == f.failParent {
		return nil, errors.New("append rejected")
	}

	created := make([]lark.Block, 0, len(children))
	for _, child := range children {
		if child.BlockType == lark.BlockTypeTable {
			if f.failGrid {
				return nil, errors.New("grid rejected")
			}
			if !f.gridNoCells && child.Table != nil && child.Table.Property != nil {
				cells := child.Table.Property.RowSize * child.Table.Property.ColumnSize
				for i := 0; i < cells; i++ {
					child.Children = append(child.Children, fmt.Sprintf("cell-%d", i))
				}
			}
		}
		f.nextID++
		child.BlockID = fmt.Sprintf("blk-%d", f.nextID)
		created = append(created, child)
	}
	return created, nil
}

func plainLeaves(n int) []transform.Descriptor {
	descriptors := make([]transform.Descriptor, 0, n)
	for i := 0; i < n; i++ {
		descriptors = append(descriptors, transform.Leaf{
			Kind:  transform.KindText,
			Spans: []transform.Span{{Text: fmt.Sprintf("line %d", i)}},
		})
	}
	return descriptors
}

func sampleTable() transform.Table {
	return transform.Table{
		Header: []string{"Name", "Role"},
		Rows:   [][]string{{"Ada", "eng"}, {"Grace", "**lead**"}},
		RawLines: []string{
			"| Name | Role |",
			"| --- | --- |",
			"| Ada | eng |",
			"| Grace | **lead** |",
		},
	}
}

func TestUploadBatchesLeaves(t *testing.T) {
	shrinkBatchDelay(t)
	fake := &fakeDocClient{}
	up := NewUploader(fake, 50, 2, testLogger(), nil)

	stats, err := up.Upload(context.Background(), "doc-1", plainLeaves(130))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if stats.BlocksAdded != 130 {
		t.Errorf("BlocksAdded = %d, want 130", stats.BlocksAdded)
	}
	if stats.Batches != 3 {
		t.Errorf("Batches = %d, want 3", stats.Batches)
	}
	if len(fake.calls) != 3 {
		t.Fatalf("append calls = %d, want 3", len(fake.calls))
	}
	for i, want := range []int{50, 50, 30} {
		if got := len(fake.calls[i].blocks); got != want {
			t.Errorf("call %d carried %d blocks, want %d", i, got, want)
		}
		if fake.calls[i].parentID != "doc-1" {
			t.Errorf("call %d parent = %q, want doc-1", i, fake.calls[i].parentID)
		}
	}
}

func TestNewUploaderClampsBatchSize(t *testing.T) {
	tests := []struct {
		name string
		size int
		want int
	}{
		{"zero falls back to the cap", 0, lark.MaxAppendChildren},
		{"negative falls back to the cap", -5, lark.MaxAppendChildren},
		{"over the cap falls back to the cap", 200, lark.MaxAppendChildren},
		{"in range kept", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := NewUploader(&fakeDocClient{}, tt.size, 1, testLogger(), nil)
			if up.batchSize != tt.want {
				t.Errorf("batchSize = %d, want %d", up.batchSize, tt.want)
			}
		})
	}
}

func TestUploadCalloutTwoPhase(t *testing.T) {
	shrinkBatchDelay(t)
	fake := &fakeDocClient{}
	up := NewUploader(fake, 50, 1, testLogger(), nil)

	descriptors := []transform.Descriptor{
		transform.Leaf{Kind: transform.KindText, Spans: []transform.Span{{Text: "before"}}},
		transform.Callout{Body: "note"},
		transform.Leaf{Kind: transform.KindText, Spans: []transform.Span{{Text: "after"}}},
	}

	stats, err := up.Upload(context.Background(), "doc-1", descriptors)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if stats.BlocksAdded != 3 {
		t.Errorf("BlocksAdded = %d, want 3", stats.BlocksAdded)
	}
	if stats.Batches != 2 {
		t.Errorf("Batches = %d, want 2", stats.Batches)
	}
	if len(fake.calls) != 4 {
		t.Fatalf("append calls = %d, want 4", len(fake.calls))
	}

	// Buffer flushed before the container so document order survives.
	if fake.calls[0].blocks[0].Text.Elements[0].TextRun.Content != "before" {
		t.Errorf("first flush did not carry the preceding text block")
	}

	container := fake.calls[1]
	if container.parentID != "doc-1" {
		t.Errorf("container parent = %q, want doc-1", container.parentID)
	}
	if container.blocks[0].BlockType != lark.BlockTypeCallout {
		t.Errorf("container type = %d, want %d", container.blocks[0].BlockType, lark.BlockTypeCallout)
	}
	if container.blocks[0].Callout.BackgroundColor != 14 {
		t.Errorf("container background = %d, want 14", container.blocks[0].Callout.BackgroundColor)
	}

	child := fake.calls[2]
	if child.parentID != "blk-2" {
		t.Errorf("child parent = %q, want the container id blk-2", child.parentID)
	}
	if got := child.blocks[0].Text.Elements[0].TextRun.Content; got != "note" {
		t.Errorf("child content = %q, want %q", got, "note")
	}

	if fake.calls[3].blocks[0].Text.Elements[0].TextRun.Content != "after" {
		t.Errorf("final flush did not carry the trailing text block")
	}
}

func TestUploadTableCreatesGridAndFillsCells(t *testing.T) {
	shrinkBatchDelay(t)
	fake := &fakeDocClient{}
	up := NewUploader(fake, 50, 3, testLogger(), nil)

	stats, err := up.Upload(context.Background(), "doc-1", []transform.Descriptor{sampleTable()})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if stats.BlocksAdded != 1 {
		t.Errorf("BlocksAdded = %d, want 1", stats.BlocksAdded)
	}
	if stats.Batches != 0 {
		t.Errorf("Batches = %d, want 0", stats.Batches)
	}

	grid := fake.calls[0]
	if grid.blocks[0].BlockType != lark.BlockTypeTable {
		t.Fatalf("first call type = %d, want %d", grid.blocks[0].BlockType, lark.BlockTypeTable)
	}
	prop := grid.blocks[0].Table.Property
	if prop.RowSize != 3 || prop.ColumnSize != 2 {
		t.Errorf("grid geometry = %dx%d, want 3x2", prop.RowSize, prop.ColumnSize)
	}
	if len(prop.ColumnWidth) != 2 {
		t.Errorf("column widths = %d entries, want 2", len(prop.ColumnWidth))
	}

	var parents []string
	for _, call := range fake.calls[1:] {
		parents = append(parents, call.parentID)
		if call.blocks[0].BlockType != lark.BlockTypeText {
			t.Errorf("cell fill type = %d, want %d", call.blocks[0].BlockType, lark.BlockTypeText)
		}
	}
	sort.Strings(parents)
	want := []string{"cell-0", "cell-1", "cell-2", "cell-3", "cell-4", "cell-5"}
	if len(parents) != len(want) {
		t.Fatalf("cell fills = %d, want %d", len(parents), len(want))
	}
	for i := range want {
		if parents[i] != want[i] {
			t.Errorf("filled %q, want %q", parents[i], want[i])
		}
	}
}

func TestUploadTableOverRowCapFallsBack(t *testing.T) {
	shrinkBatchDelay(t)
	fake := &fakeDocClient{}
	up := NewUploader(fake, 50, 2, testLogger(), nil)

	rows := make([][]string, 9)
	raw := []string{"| h |", "| --- |"}
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("row %d", i)}
		raw = append(raw, fmt.Sprintf("| row %d |", i))
	}
	table := transform.Table{Header: []string{"h"}, Rows: rows, RawLines: raw}

	stats, err := up.Upload(context.Background(), "doc-1", []transform.Descriptor{table})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if len(fake.calls) != 1 {
		t.Fatalf("append calls = %d, want 1 (no grid create)", len(fake.calls))
	}
	block := fake.calls[0].blocks[0]
	if block.BlockType != lark.BlockTypeCode {
		t.Errorf("fallback type = %d, want %d", block.BlockType, lark.BlockTypeCode)
	}
	if got := block.Code.Elements[0].TextRun.Content; got != strings.Join(raw, "\n") {
		t.Errorf("fallback carried %q, want the verbatim table source", got)
	}
	if stats.BlocksAdded != 1 || stats.Batches != 1 {
		t.Errorf("stats = %+v, want 1 block in 1 batch", stats)
	}
}

func TestUploadGridCreateFailureFallsBack(t *testing.T) {
	shrinkBatchDelay(t)
	fake := &fakeDocClient{failGrid: true}
	up := NewUploader(fake, 50, 2, testLogger(), nil)

	descriptors := []transform.Descriptor{
		sampleTable(),
		transform.Leaf{Kind: transform.KindText, Spans: []transform.Span{{Text: "after"}}},
	}

	stats, err := up.Upload(context.Background(), "doc-1", descriptors)
	if err != nil {
		t.Fatalf("Upload() error = %v, want fallback instead", err)
	}

	if stats.BlocksAdded != 2 {
		t.Errorf("BlocksAdded = %d, want 2", stats.BlocksAdded)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("append calls = %d, want 2", len(fake.calls))
	}

	flush := fake.calls[1]
	if len(flush.blocks) != 2 {
		t.Fatalf("final flush carried %d blocks, want 2", len(flush.blocks))
	}
	if flush.blocks[0].BlockType != lark.BlockTypeCode {
		t.Errorf("fallback type = %d, want %d", flush.blocks[0].BlockType, lark.BlockTypeCode)
	}
	if flush.blocks[1].BlockType != lark.BlockTypeText {
		t.Errorf("trailing type = %d, want %d", flush.blocks[1].BlockType, lark.BlockTypeText)
	}
}

func TestUploadGridWithoutCellIDsFallsBack(t *testing.T) {
	shrinkBatchDelay(t)
	fake := &fakeDocClient{gridNoCells: true}
	up := NewUploader(fake, 50, 2, testLogger(), nil)

	stats, err := up.Upload(context.Background(), "doc-1", []transform.Descriptor{sampleTable()})
	if err != nil {
		t.Fatalf("Upload() error = %v, want fallback instead", err)
	}

	// Grid attempt plus the fallback flush, no cell fills.
	if len(fake.calls) != 2 {
		t.Fatalf("append calls = %d, want 2", len(fake.calls))
	}
	if fake.calls[1].blocks[0].BlockType != lark.BlockTypeCode {
		t.Errorf("fallback type = %d, want %d", fake.calls[1].blocks[0].BlockType, lark.BlockTypeCode)
	}
	if stats.BlocksAdded != 1 {
		t.Errorf("BlocksAdded = %d, want 1", stats.BlocksAdded)
	}
}

func TestUploadCellFillErrorIsFatal(t *testing.T) {
	shrinkBatchDelay(t)
	fake := &fakeDocClient{failParent: "cell-0"}
	up := NewUploader(fake, 50, 2, testLogger(), nil)

	stats, err := up.Upload(context.Background(), "doc-1", []transform.Descriptor{sampleTable()})
	if err == nil {
		t.Fatal("Upload() error = nil, want cell fill failure")
	}
	if !strings.Contains(err.Error(), "filling cell cell-0") {
		t.Errorf("error = %v, want it to name the failed cell", err)
	}
	if stats.BlocksAdded != 0 {
		t.Errorf("BlocksAdded = %d, want 0", stats.BlocksAdded)
	}
}

func TestUploadCompiledDocument(t *testing.T) {
	shrinkBatchDelay(t)
	fake := &fakeDocClient{}
	up := NewUploader(fake, 50, 2, testLogger(), nil)

	res := transform.Compile("# Title\n\nHello **world**\n", transform.ModeWrite)
	if !res.HasTitle || res.Title != "Title" {
		t.Fatalf("Compile() title = %q (has=%v), want Title", res.Title, res.HasTitle)
	}

	stats, err := up.Upload(context.Background(), "doc-1", res.Blocks)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if stats.BlocksAdded != 1 {
		t.Errorf("BlocksAdded = %d, want 1", stats.BlocksAdded)
	}

	elements := fake.calls[0].blocks[0].Text.Elements
	if len(elements) != 2 {
		t.Fatalf("elements = %d, want 2", len(elements))
	}
	if elements[0].TextRun.Content != "Hello " || elements[0].TextRun.Style != nil {
		t.Errorf("first run = %q, want plain %q", elements[0].TextRun.Content, "Hello ")
	}
	if elements[1].TextRun.Content != "world" || elements[1].TextRun.Style == nil || !elements[1].TextRun.Style.Bold {
		t.Errorf("second run = %q, want bold %q", elements[1].TextRun.Content, "world")
	}
}

// recordingProgress collects step events in order.
type recordingProgress struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingProgress) add(event string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingProgress) StepQueued(id, title string) { p.add("queued " + id) }
func (p *recordingProgress) StepStarted(id string)       { p.add("started " + id) }
func (p *recordingProgress) StepDone(id string)          { p.add("done " + id) }
func (p *recordingProgress) StepFailed(id string, err error) {
	p.add("failed " + id)
}

func TestUploadReportsProgress(t *testing.T) {
	shrinkBatchDelay(t)
	progress := &recordingProgress{}
	up := NewUploader(&fakeDocClient{}, 50, 1, testLogger(), progress)

	descriptors := []transform.Descriptor{
		transform.Leaf{Kind: transform.KindText, Spans: []transform.Span{{Text: "hi"}}},
		transform.Callout{Body: "note"},
	}

	if _, err := up.Upload(context.Background(), "doc-1", descriptors); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	want := []string{
		"queued batch-1", "started batch-1", "done batch-1",
		"queued callout-1", "started callout-1", "done callout-1",
	}
	if len(progress.events) != len(want) {
		t.Fatalf("events = %v, want %v", progress.events, want)
	}
	for i := range want {
		if progress.events[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, progress.events[i], want[i])
		}
	}
}
