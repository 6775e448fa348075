package transform

import (
	"strings"
	"unicode/utf8"
)

// MaxGridRows is the largest table (header plus data rows) the service's
// grid primitive accepts in one creation call; larger tables are serialized
// as code blocks instead. Service-observed limit.
const MaxGridRows = 9

// Grid layout: total width in pixels spread across columns, with a floor so
// narrow columns stay clickable.
const (
	gridTotalWidth  = 700
	gridMinColWidth = 100
)

// RowCount is the header plus all data rows.
func (t Table) RowCount() int {
	return 1 + len(t.Rows)
}

// ColumnCount is fixed by the header row. Extra cells in data rows are
// ignored; missing cells render empty.
func (t Table) ColumnCount() int {
	return len(t.Header)
}

// Cell returns the text at (row, col), row 0 being the header.
// Out-of-range columns are empty.
func (t Table) Cell(row, col int) string {
	if row == 0 {
		if col < len(t.Header) {
			return t.Header[col]
		}
		return ""
	}
	r := t.Rows[row-1]
	if col < len(r) {
		return r[col]
	}
	return ""
}

// ColumnWidths spreads the grid width across columns proportionally to the
// longest cell text observed in each, clamped below at the minimum width.
func (t Table) ColumnWidths() []int {
	cols := t.ColumnCount()
	maxLens := make([]int, cols)
	for col := 0; col < cols; col++ {
		for row := 0; row < t.RowCount(); row++ {
			if l := utf8.RuneCountInString(t.Cell(row, col)); l > maxLens[col] {
				maxLens[col] = l
			}
		}
	}

	total := 0
	for _, l := range maxLens {
		total += l
	}
	if total < 1 {
		total = 1
	}

	widths := make([]int, cols)
	for col, l := range maxLens {
		w := gridTotalWidth * l / total
		if w < gridMinColWidth {
			w = gridMinColWidth
		}
		widths[col] = w
	}
	return widths
}

// Fallback serializes the table as a markdown-tagged code block holding the
// verbatim source lines. Used when the row cap is exceeded or grid creation
// fails on the service side.
func (t Table) Fallback() Leaf {
	return Leaf{
		Kind:     KindCode,
		Spans:    []Span{{Text: strings.Join(t.RawLines, "\n"), Style: SpanPlain}},
		Language: "markdown",
	}
}

// CellFill is one non-empty cell ready to be appended into the grid.
type CellFill struct {
	Index int // row-major position
	Spans []Span
}

// CellFills lists the non-empty cells in row-major order. Header cells stay
// plain; data cells get full inline parsing.
func (t Table) CellFills() []CellFill {
	var fills []CellFill
	cols := t.ColumnCount()
	for row := 0; row < t.RowCount(); row++ {
		for col := 0; col < cols; col++ {
			text := t.Cell(row, col)
			if text == "" {
				continue
			}
			var spans []Span
			if row == 0 {
				spans = []Span{{Text: text, Style: SpanPlain}}
			} else {
				spans = ParseSpans(text)
			}
			fills = append(fills, CellFill{Index: row*cols + col, Spans: spans})
		}
	}
	return fills
}
