package lark

import (
	"encoding/json"
	"sort"
	"strings"
)

// BlockType is the numeric tag the service uses to identify a block's kind.
type BlockType int

// Block type tags from the docx wire format. The service defines more tags
// than we handle; unknown tags must degrade gracefully, never error.
const (
	BlockTypePage      BlockType = 1
	BlockTypeText      BlockType = 2
	BlockTypeHeading1  BlockType = 3
	BlockTypeHeading2  BlockType = 4
	BlockTypeHeading3  BlockType = 5
	BlockTypeHeading4  BlockType = 6
	BlockTypeHeading5  BlockType = 7
	BlockTypeHeading6  BlockType = 8
	BlockTypeHeading7  BlockType = 9
	BlockTypeHeading8  BlockType = 10
	BlockTypeHeading9  BlockType = 11
	BlockTypeBullet    BlockType = 12
	BlockTypeOrdered   BlockType = 13
	BlockTypeCode      BlockType = 14
	BlockTypeQuote     BlockType = 15
	BlockTypeTodo      BlockType = 17
	BlockTypeBitable   BlockType = 18
	BlockTypeCallout   BlockType = 19
	BlockTypeDivider   BlockType = 22
	BlockTypeGrid      BlockType = 24
	BlockTypeImage     BlockType = 27
	BlockTypeTable     BlockType = 31
	BlockTypeTableCell BlockType = 32
)

// Block is one node of a document's content tree as the service represents it
// on the wire. At most one payload field, the one matching BlockType, is set.
// A block carries a server-assigned BlockID only after it has been persisted.
type Block struct {
	BlockID   string    `json:"block_id,omitempty"`
	ParentID  string    `json:"parent_id,omitempty"`
	BlockType BlockType `json:"block_type"`
	Children  []string  `json:"children,omitempty"`

	Page     *TextPayload    `json:"page,omitempty"`
	Text     *TextPayload    `json:"text,omitempty"`
	Heading1 *TextPayload    `json:"heading1,omitempty"`
	Heading2 *TextPayload    `json:"heading2,omitempty"`
	Heading3 *TextPayload    `json:"heading3,omitempty"`
	Heading4 *TextPayload    `json:"heading4,omitempty"`
	Heading5 *TextPayload    `json:"heading5,omitempty"`
	Heading6 *TextPayload    `json:"heading6,omitempty"`
	Heading7 *TextPayload    `json:"heading7,omitempty"`
	Heading8 *TextPayload    `json:"heading8,omitempty"`
	Heading9 *TextPayload    `json:"heading9,omitempty"`
	Bullet   *TextPayload    `json:"bullet,omitempty"`
	Ordered  *TextPayload    `json:"ordered,omitempty"`
	Code     *TextPayload    `json:"code,omitempty"`
	Quote    *TextPayload    `json:"quote,omitempty"`
	Todo     *TextPayload    `json:"todo,omitempty"`
	Callout  *CalloutPayload `json:"callout,omitempty"`
	Divider  *DividerPayload `json:"divider,omitempty"`
	Image    *ImagePayload   `json:"image,omitempty"`
	Table    *TablePayload   `json:"table,omitempty"`

	// raw keeps the undecoded payload fields so unrecognized block types can
	// still be rendered from whatever elements they carry.
	raw map[string]json.RawMessage
}

// TextPayload is the shared shape of every text-bearing block payload.
type TextPayload struct {
	Elements []TextElement `json:"elements,omitempty"`
	Style    *TextStyle    `json:"style,omitempty"`
}

// TextElement wraps one inline element. Only text runs are modeled; other
// element kinds (mentions, equations) decode to an empty element.
type TextElement struct {
	TextRun *TextRun `json:"text_run,omitempty"`
}

// TextRun is a styled inline text run.
type TextRun struct {
	Content string    `json:"content"`
	Style   *RunStyle `json:"text_element_style,omitempty"`
}

// RunStyle carries the inline styles. The converter only ever sets one of
// these per run; documents written by other editors may combine them.
type RunStyle struct {
	Bold          bool  `json:"bold,omitempty"`
	InlineCode    bool  `json:"inline_code,omitempty"`
	Strikethrough bool  `json:"strikethrough,omitempty"`
	Link          *Link `json:"link,omitempty"`
}

// Link is a hyperlink target on a text run.
type Link struct {
	URL string `json:"url"`
}

// TextStyle holds the block-level style bits the converter cares about:
// the numeric code-block language and the todo done flag.
type TextStyle struct {
	Language int  `json:"language,omitempty"`
	Done     bool `json:"done,omitempty"`
}

// CalloutPayload configures a callout container block.
type CalloutPayload struct {
	BackgroundColor int    `json:"background_color,omitempty"`
	BorderColor     int    `json:"border_color,omitempty"`
	EmojiID         string `json:"emoji_id,omitempty"`
}

// DividerPayload is empty on the wire; the tag alone identifies the block.
type DividerPayload struct{}

// ImagePayload references an uploaded media token.
type ImagePayload struct {
	Token  string `json:"token,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// TablePayload describes a grid block. Cells lists the cell block IDs in
// row-major order once the grid has been persisted.
type TablePayload struct {
	Cells    []string       `json:"cells,omitempty"`
	Property *TableProperty `json:"property,omitempty"`
}

// TableProperty is the grid geometry: row/column counts and per-column pixel
// widths.
type TableProperty struct {
	RowSize     int   `json:"row_size"`
	ColumnSize  int   `json:"column_size"`
	ColumnWidth []int `json:"column_width,omitempty"`
}

// UnmarshalJSON decodes the typed fields and additionally keeps the raw
// payload map so unknown block types remain inspectable.
func (b *Block) UnmarshalJSON(data []byte) error {
	type plain Block
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = Block(p)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.raw = raw
	return nil
}

// Payload returns the text-bearing payload matching b's type, or nil when
// the type has none (dividers, images, grids) or is not recognized.
func (b *Block) Payload() *TextPayload {
	switch b.BlockType {
	case BlockTypePage:
		return b.Page
	case BlockTypeText:
		return b.Text
	case BlockTypeHeading1:
		return b.Heading1
	case BlockTypeHeading2:
		return b.Heading2
	case BlockTypeHeading3:
		return b.Heading3
	case BlockTypeHeading4:
		return b.Heading4
	case BlockTypeHeading5:
		return b.Heading5
	case BlockTypeHeading6:
		return b.Heading6
	case BlockTypeHeading7:
		return b.Heading7
	case BlockTypeHeading8:
		return b.Heading8
	case BlockTypeHeading9:
		return b.Heading9
	case BlockTypeBullet:
		return b.Bullet
	case BlockTypeOrdered:
		return b.Ordered
	case BlockTypeCode:
		return b.Code
	case BlockTypeQuote:
		return b.Quote
	case BlockTypeTodo:
		return b.Todo
	}
	return nil
}

// HeadingDepth returns 1-9 for heading blocks and 0 for everything else.
func (b *Block) HeadingDepth() int {
	if b.BlockType >= BlockTypeHeading1 && b.BlockType <= BlockTypeHeading9 {
		return int(b.BlockType-BlockTypeHeading1) + 1
	}
	return 0
}

// blockFields are the non-payload keys of the wire object, skipped when
// scanning an unrecognized block for usable elements.
var blockFields = map[string]bool{
	"block_id":    true,
	"parent_id":   true,
	"block_type":  true,
	"children":    true,
	"comment_ids": true,
	"revision_id": true,
}

// FallbackElements scans an unrecognized block's raw payload fields for the
// first one carrying a non-empty "elements" array. Keys are visited in
// sorted order so the choice is deterministic. Returns nil when nothing in
// the block looks like text.
func (b *Block) FallbackElements() []TextElement {
	if b.raw == nil {
		return nil
	}
	keys := make([]string, 0, len(b.raw))
	for k := range b.raw {
		if blockFields[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var payload struct {
			Elements []TextElement `json:"elements"`
		}
		if err := json.Unmarshal(b.raw[k], &payload); err != nil {
			continue
		}
		if len(payload.Elements) > 0 {
			return payload.Elements
		}
	}
	return nil
}

// PlainText concatenates the contents of all text runs in the payload,
// ignoring styles.
func (p *TextPayload) PlainText() string {
	if p == nil {
		return ""
	}
	var sb strings.Builder
	for _, el := range p.Elements {
		if el.TextRun != nil {
			sb.WriteString(el.TextRun.Content)
		}
	}
	return sb.String()
}
