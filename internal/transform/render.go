package transform

import (
	"strings"

	"github.com/larkmd/larkmd/internal/lark"
)

// RenderBlocks renders a document's block list (document order, as the
// paginated list endpoint returns it) to Markdown-like text, one template
// per block. Rendering is lossy by design: container blocks surface as
// placeholder tokens and unknown types degrade to whatever text they carry,
// never an error.
func RenderBlocks(blocks []lark.Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		sb.WriteString(renderBlock(b))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderBlock maps one block to its fixed text template.
func renderBlock(b lark.Block) string {
	if depth := b.HeadingDepth(); depth > 0 {
		return strings.Repeat("#", depth) + " " + renderElements(b.Payload())
	}

	switch b.BlockType {
	case lark.BlockTypePage:
		// The root block's text is the document title.
		return "# " + renderElements(b.Page)
	case lark.BlockTypeText:
		return renderElements(b.Text)
	case lark.BlockTypeBullet:
		return "- " + renderElements(b.Bullet)
	case lark.BlockTypeOrdered:
		// Literal "1." for every item; markdown viewers renumber.
		return "1. " + renderElements(b.Ordered)
	case lark.BlockTypeCode:
		return renderCode(b.Code)
	case lark.BlockTypeQuote:
		return "> " + renderElements(b.Quote)
	case lark.BlockTypeTodo:
		marker := "- [ ] "
		if b.Todo != nil && b.Todo.Style != nil && b.Todo.Style.Done {
			marker = "- [x] "
		}
		return marker + renderElements(b.Todo)
	case lark.BlockTypeDivider:
		return "---"
	case lark.BlockTypeImage:
		return "[image]"
	case lark.BlockTypeTable:
		return "[table]"
	case lark.BlockTypeBitable:
		return "[bitable]"
	case lark.BlockTypeGrid:
		return "[grid]"
	case lark.BlockTypeCallout:
		return "[callout]"
	}

	// Unrecognized type: best-effort text from whatever payload carries
	// elements, else an empty line.
	return renderElements(&lark.TextPayload{Elements: b.FallbackElements()})
}

// renderElements concatenates a payload's runs with their inline markers
// re-applied, so styled text survives the trip back to markdown.
func renderElements(p *lark.TextPayload) string {
	if p == nil {
		return ""
	}
	var sb strings.Builder
	for _, el := range p.Elements {
		if el.TextRun == nil {
			continue
		}
		sb.WriteString(renderRun(el.TextRun))
	}
	return sb.String()
}

// renderRun restores the markdown marker for a styled run. Styles are
// mutually exclusive on the write path; for documents written by other
// editors the first style below wins.
func renderRun(run *lark.TextRun) string {
	text := run.Content
	st := run.Style
	if st == nil {
		return text
	}
	switch {
	case st.Link != nil:
		return "[" + text + "](" + st.Link.URL + ")"
	case st.Bold:
		return "**" + text + "**"
	case st.InlineCode:
		return "`" + text + "`"
	case st.Strikethrough:
		return "~~" + text + "~~"
	}
	return text
}

// renderCode fences the code body with its reverse-mapped language tag.
func renderCode(p *lark.TextPayload) string {
	lang := ""
	if p != nil && p.Style != nil {
		lang = LanguageName(p.Style.Language)
	}
	return "```" + lang + "\n" + p.PlainText() + "\n```"
}
