package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/larkmd/larkmd/internal/lark"
)

// clearSubBatch is the per-call size the fallback deleter uses. The bulk
// range delete has an undocumented ceiling on the backend, so when it
// fails the children go in chunks of this size instead.
const clearSubBatch = 50

// DocClearer is the client surface the clearer needs. *lark.Client
// satisfies it.
type DocClearer interface {
	BlockChildren(ctx context.Context, docToken, blockID string) ([]lark.Block, error)
	UpdateTitle(ctx context.Context, docToken, title string) error
	DeleteChildRange(ctx context.Context, docToken, parentID string, startIndex, endIndex int) error
}

// Clearer empties a document: title reset plus removal of every child of
// the root block.
type Clearer struct {
	client DocClearer
	logger *slog.Logger
}

func NewClearer(client DocClearer, logger *slog.Logger) *Clearer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Clearer{client: client, logger: logger}
}

// Clear resets the title and deletes all children of the document root,
// returning how many blocks were removed. Deletion tries one bulk range
// call first and falls back to fixed-size sub-batches when the bulk call
// fails.
func (c *Clearer) Clear(ctx context.Context, docToken string) (int, error) {
	children, err := c.client.BlockChildren(ctx, docToken, docToken)
	if err != nil {
		return 0, fmt.Errorf("listing children: %w", err)
	}

	if err := c.client.UpdateTitle(ctx, docToken, ""); err != nil {
		return 0, fmt.Errorf("clearing title: %w", err)
	}

	total := len(children)
	if total == 0 {
		return 0, nil
	}

	if err := c.client.DeleteChildRange(ctx, docToken, docToken, 0, total); err == nil {
		c.logger.Debug("bulk delete succeeded", "blocks", total)
		return total, nil
	} else {
		c.logger.Warn("bulk delete failed, deleting in sub-batches", "error", err)
	}

	// Children shift down after each delete, so every sub-batch removes
	// from index zero.
	deleted := 0
	for remaining := total; remaining > 0; {
		n := min(clearSubBatch, remaining)
		if err := c.client.DeleteChildRange(ctx, docToken, docToken, 0, n); err != nil {
			return deleted, fmt.Errorf("deleting sub-batch: %w", err)
		}
		deleted += n
		remaining -= n

		if remaining > 0 {
			if err := sleepBatchDelay(ctx); err != nil {
				return deleted, err
			}
		}
	}

	return deleted, nil
}
