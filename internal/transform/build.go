package transform

import "github.com/larkmd/larkmd/internal/lark"

// calloutBackground is the light gray background color index written on
// quote callouts.
const calloutBackground = 14

// Elements converts spans to wire text elements, one run per span.
func Elements(spans []Span) []lark.TextElement {
	els := make([]lark.TextElement, 0, len(spans))
	for _, s := range spans {
		run := &lark.TextRun{Content: s.Text}
		switch s.Style {
		case SpanBold:
			run.Style = &lark.RunStyle{Bold: true}
		case SpanInlineCode:
			run.Style = &lark.RunStyle{InlineCode: true}
		case SpanStrikethrough:
			run.Style = &lark.RunStyle{Strikethrough: true}
		case SpanLink:
			run.Style = &lark.RunStyle{Link: &lark.Link{URL: s.URL}}
		}
		els = append(els, lark.TextElement{TextRun: run})
	}
	return els
}

// BuildBlock converts a leaf descriptor into its wire block.
func BuildBlock(l Leaf) lark.Block {
	payload := &lark.TextPayload{Elements: Elements(l.Spans)}

	switch l.Kind {
	case KindBullet:
		return lark.Block{BlockType: lark.BlockTypeBullet, Bullet: payload}
	case KindOrdered:
		return lark.Block{BlockType: lark.BlockTypeOrdered, Ordered: payload}
	case KindTodo:
		if l.Done {
			payload.Style = &lark.TextStyle{Done: true}
		}
		return lark.Block{BlockType: lark.BlockTypeTodo, Todo: payload}
	case KindCode:
		if code := LanguageCode(l.Language); code > 0 {
			payload.Style = &lark.TextStyle{Language: code}
		}
		return lark.Block{BlockType: lark.BlockTypeCode, Code: payload}
	case KindDivider:
		return lark.Block{BlockType: lark.BlockTypeDivider, Divider: &lark.DividerPayload{}}
	default:
		return lark.Block{BlockType: lark.BlockTypeText, Text: payload}
	}
}

// CalloutBlock is the container created in phase one of a quote write.
func CalloutBlock() lark.Block {
	return lark.Block{
		BlockType: lark.BlockTypeCallout,
		Callout:   &lark.CalloutPayload{BackgroundColor: calloutBackground},
	}
}

// CalloutChild is the phase-two text block holding the merged quote body,
// appended into the container once it has an identifier.
func CalloutChild(body string) lark.Block {
	return lark.Block{
		BlockType: lark.BlockTypeText,
		Text:      &lark.TextPayload{Elements: Elements(ParseSpans(body))},
	}
}

// GridBlock is the empty grid block carrying the computed geometry. Cells
// are filled afterwards, one append per non-empty cell.
func GridBlock(t Table) lark.Block {
	return lark.Block{
		BlockType: lark.BlockTypeTable,
		Table: &lark.TablePayload{
			Property: &lark.TableProperty{
				RowSize:     t.RowCount(),
				ColumnSize:  t.ColumnCount(),
				ColumnWidth: t.ColumnWidths(),
			},
		},
	}
}

// CellBlock wraps one cell's spans as the text block appended into a grid
// cell.
func CellBlock(spans []Span) lark.Block {
	return lark.Block{
		BlockType: lark.BlockTypeText,
		Text:      &lark.TextPayload{Elements: Elements(spans)},
	}
}
