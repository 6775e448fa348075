package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/larkmd/larkmd/internal/lark"
	"github.com/larkmd/larkmd/internal/transform"
)

// DocReader is the client surface the reader needs. *lark.Client satisfies
// it.
type DocReader interface {
	RawContent(ctx context.Context, docToken string) (string, error)
	ListBlocks(ctx context.Context, docToken string) ([]lark.Block, error)
}

// Reader fetches a document as plain text and as the flat block list, and
// renders the blocks back to markdown.
type Reader struct {
	client DocReader
	logger *slog.Logger
}

func NewReader(client DocReader, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{client: client, logger: logger}
}

// ReadOutput carries both representations of a document.
type ReadOutput struct {
	Markdown   string
	RawContent string
	BlockCount int
}

func (r *Reader) Read(ctx context.Context, docToken string) (ReadOutput, error) {
	raw, err := r.client.RawContent(ctx, docToken)
	if err != nil {
		return ReadOutput{}, fmt.Errorf("fetching raw content: %w", err)
	}

	blocks, err := r.client.ListBlocks(ctx, docToken)
	if err != nil {
		return ReadOutput{}, fmt.Errorf("listing blocks: %w", err)
	}

	r.logger.Debug("document fetched", "blocks", len(blocks))

	return ReadOutput{
		Markdown:   transform.RenderBlocks(blocks),
		RawContent: raw,
		BlockCount: len(blocks),
	}, nil
}
