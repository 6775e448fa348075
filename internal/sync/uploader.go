package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/larkmd/larkmd/internal/lark"
	"github.com/larkmd/larkmd/internal/transform"
)

// batchDelay spaces consecutive append calls so sustained uploads stay
// under the service's write rate. Variable so tests can shrink it.
var batchDelay = 300 * time.Millisecond

// Uploader persists compiled descriptors against a document, batching
// ordinary blocks and running the container protocols for callouts and
// tables.
type Uploader struct {
	client    lark.ChildAppender
	pool      *lark.WorkerPool
	batchSize int
	logger    *slog.Logger
	progress  Progress
}

// NewUploader creates an uploader. batchSize outside 1 to the service cap
// falls back to the cap; concurrency bounds the cell-fill pool.
func NewUploader(client lark.ChildAppender, batchSize, concurrency int, logger *slog.Logger, progress Progress) *Uploader {
	if batchSize < 1 || batchSize > lark.MaxAppendChildren {
		batchSize = lark.MaxAppendChildren
	}
	if logger == nil {
		logger = slog.Default()
	}
	if progress == nil {
		progress = NopProgress{}
	}

	return &Uploader{
		client:    client,
		pool:      lark.NewWorkerPool(client, concurrency),
		batchSize: batchSize,
		logger:    logger,
		progress:  progress,
	}
}

// UploadStats reports what one upload persisted: top-level blocks written
// and how many batched append calls it took (container creates not
// included).
type UploadStats struct {
	BlocksAdded int
	Batches     int
}

// Upload persists descriptors as children of the document root, in source
// order. Ordinary blocks accumulate to the batch size; a callout or table
// descriptor first flushes the buffer so ordering survives, then runs its
// own creation protocol.
func (u *Uploader) Upload(ctx context.Context, docToken string, descriptors []transform.Descriptor) (UploadStats, error) {
	var stats UploadStats
	var buffer []lark.Block

	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}

		stats.Batches++
		id := fmt.Sprintf("batch-%d", stats.Batches)
		u.progress.StepQueued(id, fmt.Sprintf("batch %d (%d blocks)", stats.Batches, len(buffer)))
		u.progress.StepStarted(id)
		u.logger.Debug("appending batch", "batch", stats.Batches, "blocks", len(buffer))

		if _, err := u.client.AppendChildren(ctx, docToken, docToken, buffer); err != nil {
			u.progress.StepFailed(id, err)
			return fmt.Errorf("appending batch %d: %w", stats.Batches, err)
		}

		u.progress.StepDone(id)
		stats.BlocksAdded += len(buffer)
		buffer = nil
		return sleepBatchDelay(ctx)
	}

	for i, d := range descriptors {
		switch d := d.(type) {
		case transform.Leaf:
			buffer = append(buffer, transform.BuildBlock(d))
			if len(buffer) >= u.batchSize {
				if err := flush(); err != nil {
					return stats, err
				}
			}

		case transform.Callout:
			if err := flush(); err != nil {
				return stats, err
			}
			if err := u.createCallout(ctx, docToken, d, i); err != nil {
				return stats, err
			}
			stats.BlocksAdded++

		case transform.Table:
			if err := flush(); err != nil {
				return stats, err
			}
			fallback, err := u.createTable(ctx, docToken, d, i)
			if err != nil {
				return stats, err
			}
			if fallback != nil {
				buffer = append(buffer, transform.BuildBlock(*fallback))
			} else {
				stats.BlocksAdded++
			}

		default:
			return stats, fmt.Errorf("unknown descriptor type %T", d)
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}
	return stats, nil
}

// createCallout is the two-phase create: the container block first, then
// one text child holding the merged quote body, appended once the container
// has an identifier.
func (u *Uploader) createCallout(ctx context.Context, docToken string, c transform.Callout, pos int) error {
	id := fmt.Sprintf("callout-%d", pos)
	u.progress.StepQueued(id, "callout")
	u.progress.StepStarted(id)

	created, err := u.client.AppendChildren(ctx, docToken, docToken, []lark.Block{transform.CalloutBlock()})
	if err != nil {
		u.progress.StepFailed(id, err)
		return fmt.Errorf("creating callout container: %w", err)
	}
	if len(created) == 0 || created[0].BlockID == "" {
		err := errors.New("creating callout container: no block id returned")
		u.progress.StepFailed(id, err)
		return err
	}

	if _, err := u.client.AppendChildren(ctx, docToken, created[0].BlockID, []lark.Block{transform.CalloutChild(c.Body)}); err != nil {
		u.progress.StepFailed(id, err)
		return fmt.Errorf("filling callout: %w", err)
	}

	u.progress.StepDone(id)
	return nil
}

// createTable runs the grid protocol: one create call carrying the
// geometry, then parallel fills of the non-empty cells. Tables over the row
// cap, failed creates, and creates that come back without cell IDs all
// degrade to the verbatim code-block fallback, returned for the caller to
// buffer; only cell-fill errors are fatal.
func (u *Uploader) createTable(ctx context.Context, docToken string, t transform.Table, pos int) (*transform.Leaf, error) {
	if t.RowCount() > transform.MaxGridRows {
		u.logger.Warn("table exceeds the grid row cap, serializing as code block",
			"rows", t.RowCount(), "cap", transform.MaxGridRows)
		leaf := t.Fallback()
		return &leaf, nil
	}

	id := fmt.Sprintf("table-%d", pos)
	u.progress.StepQueued(id, fmt.Sprintf("table %dx%d", t.RowCount(), t.ColumnCount()))
	u.progress.StepStarted(id)

	created, err := u.client.AppendChildren(ctx, docToken, docToken, []lark.Block{transform.GridBlock(t)})
	if err != nil {
		u.progress.StepFailed(id, err)
		u.logger.Warn("grid creation failed, serializing as code block", "error", err)
		leaf := t.Fallback()
		return &leaf, nil
	}
	if len(created) == 0 || len(created[0].Children) < t.RowCount()*t.ColumnCount() {
		u.progress.StepFailed(id, errors.New("grid created without cell ids"))
		u.logger.Warn("grid created without cell ids, serializing as code block")
		leaf := t.Fallback()
		return &leaf, nil
	}

	cellIDs := created[0].Children
	fills := t.CellFills()
	appends := make([]lark.CellAppend, 0, len(fills))
	for _, f := range fills {
		appends = append(appends, lark.CellAppend{
			CellID:   cellIDs[f.Index],
			Children: []lark.Block{transform.CellBlock(f.Spans)},
		})
	}

	var errs []error
	for res := range u.pool.AppendCellsParallel(ctx, docToken, appends) {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("filling cell %s: %w", res.CellID, res.Err))
		}
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		u.progress.StepFailed(id, err)
		return nil, err
	}

	u.progress.StepDone(id)
	return nil, nil
}

// sleepBatchDelay waits the inter-batch delay, honoring cancellation.
func sleepBatchDelay(ctx context.Context) error {
	select {
	case <-time.After(batchDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
