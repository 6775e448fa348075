package transform

import (
	"regexp"
	"strings"
)

// BlockKind enumerates the leaf block kinds the compiler emits.
type BlockKind int

const (
	KindText BlockKind = iota
	KindBullet
	KindOrdered
	KindTodo
	KindCode
	KindDivider
)

// Descriptor is a pending block: parsed and ordered, but not yet persisted,
// so it carries no server identifier. The concrete types form a small sum:
// Leaf for blocks created with a single call, Callout for two-phase
// containers, Table for grids with their own creation protocol.
type Descriptor interface {
	descriptor()
}

// Leaf is a block persisted with one append call.
type Leaf struct {
	Kind     BlockKind
	Spans    []Span
	Language string // code blocks: fence tag, possibly guessed
	Done     bool   // todo blocks
}

// Callout is a block quote modeled as a container: the container block is
// created first, then one text child holding Body is appended into it.
type Callout struct {
	Body string
}

// Table is a parsed pipe table. RawLines preserves the verbatim source for
// the code-block fallback.
type Table struct {
	Header   []string
	Rows     [][]string
	RawLines []string
}

func (Leaf) descriptor()    {}
func (Callout) descriptor() {}
func (Table) descriptor()   {}

// CompileMode selects how a leading level-one heading is treated.
type CompileMode int

const (
	// ModeWrite extracts a leading "# " line as the document title.
	ModeWrite CompileMode = iota
	// ModeAppend keeps every heading as a content block; appends must not
	// silently retitle the document.
	ModeAppend
)

// CompileResult is the writer's output: an optional document title plus the
// ordered descriptors to persist.
type CompileResult struct {
	Title    string
	HasTitle bool
	Blocks   []Descriptor
}

// Line patterns for the compiler, tested in recognition order.
var linePatterns = struct {
	divider   *regexp.Regexp
	heading   *regexp.Regexp
	todo      *regexp.Regexp
	bullet    *regexp.Regexp
	ordered   *regexp.Regexp
	quote     *regexp.Regexp
	tableRule *regexp.Regexp
}{
	divider:   regexp.MustCompile(`^\s*(-{3,}|\*{3,})\s*$`),
	heading:   regexp.MustCompile(`^(#{1,9})\s+(.*)$`),
	todo:      regexp.MustCompile(`(?i)^\s*[-*]\s+\[([ x])\]\s*(.*)$`),
	bullet:    regexp.MustCompile(`^\s*[-*+]\s+(.*)$`),
	ordered:   regexp.MustCompile(`^\s*\d+\.\s+(.*)$`),
	quote:     regexp.MustCompile(`^>\s?(.*)$`),
	tableRule: regexp.MustCompile(`^\|(\s*:?-+:?\s*\|)+\s*$`),
}

// Compile scans source text with a line cursor and produces the descriptor
// sequence for upload, plus the document title when mode is ModeWrite and
// the first content line is a level-one heading. Multi-line constructs
// (fences, quote runs, tables) consume their whole run of lines atomically.
func Compile(source string, mode CompileMode) CompileResult {
	var res CompileResult
	lines := strings.Split(source, "\n")

	i := 0
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "```"):
			block, next := compileFence(lines, i)
			res.Blocks = append(res.Blocks, block)
			i = next

		case trimmed == "":
			i++

		case linePatterns.divider.MatchString(line):
			res.Blocks = append(res.Blocks, Leaf{Kind: KindDivider})
			i++

		case linePatterns.heading.MatchString(line):
			m := linePatterns.heading.FindStringSubmatch(line)
			depth, text := len(m[1]), m[2]
			if mode == ModeWrite && depth == 1 && !res.HasTitle && len(res.Blocks) == 0 {
				res.Title = strings.TrimSpace(text)
				res.HasTitle = true
				i++
				continue
			}
			// The write path has no native heading: emit the text bold.
			res.Blocks = append(res.Blocks, Leaf{
				Kind:  KindText,
				Spans: []Span{{Text: text, Style: SpanBold}},
			})
			i++

		case linePatterns.todo.MatchString(line):
			m := linePatterns.todo.FindStringSubmatch(line)
			res.Blocks = append(res.Blocks, Leaf{
				Kind:  KindTodo,
				Spans: ParseSpans(m[2]),
				Done:  strings.EqualFold(m[1], "x"),
			})
			i++

		case linePatterns.bullet.MatchString(line):
			m := linePatterns.bullet.FindStringSubmatch(line)
			res.Blocks = append(res.Blocks, Leaf{Kind: KindBullet, Spans: ParseSpans(m[1])})
			i++

		case linePatterns.ordered.MatchString(line):
			// The source numeral is discarded; the service renumbers.
			m := linePatterns.ordered.FindStringSubmatch(line)
			res.Blocks = append(res.Blocks, Leaf{Kind: KindOrdered, Spans: ParseSpans(m[1])})
			i++

		case strings.HasPrefix(line, ">"):
			body, next := compileQuote(lines, i)
			res.Blocks = append(res.Blocks, Callout{Body: body})
			i = next

		case strings.HasPrefix(trimmed, "|") && i+1 < len(lines) &&
			linePatterns.tableRule.MatchString(strings.TrimSpace(lines[i+1])):
			table, next := compileTable(lines, i)
			res.Blocks = append(res.Blocks, table)
			i = next

		default:
			res.Blocks = append(res.Blocks, Leaf{Kind: KindText, Spans: ParseSpans(line)})
			i++
		}
	}

	return res
}

// compileFence consumes an opening fence through its closing fence, or to
// end of input when the fence never closes. An explicit tag wins; otherwise
// the body is run through the language heuristic.
func compileFence(lines []string, start int) (Leaf, int) {
	tag := strings.TrimSpace(strings.TrimPrefix(lines[start], "```"))
	if fields := strings.Fields(tag); len(fields) > 0 {
		tag = fields[0]
	}

	var body []string
	i := start + 1
	for ; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "```" {
			i++
			break
		}
		body = append(body, lines[i])
	}

	content := strings.Join(body, "\n")
	if content == "" {
		content = " "
	}
	if tag == "" {
		tag = GuessLanguage(content)
	}
	return Leaf{
		Kind:     KindCode,
		Spans:    []Span{{Text: content, Style: SpanPlain}},
		Language: tag,
	}, i
}

// compileQuote merges a run of consecutive quote lines into one multi-line
// callout body, stripping one marker and at most one following space per
// line.
func compileQuote(lines []string, start int) (string, int) {
	var parts []string
	i := start
	for ; i < len(lines); i++ {
		m := linePatterns.quote.FindStringSubmatch(lines[i])
		if m == nil {
			break
		}
		parts = append(parts, m[1])
	}
	return strings.Join(parts, "\n"), i
}

// compileTable consumes the header line, its separator, and every following
// pipe-prefixed line. The verbatim source rides along for the fallback path.
func compileTable(lines []string, start int) (Table, int) {
	t := Table{
		Header:   splitRow(lines[start]),
		RawLines: []string{lines[start], lines[start+1]},
	}

	i := start + 2
	for ; i < len(lines); i++ {
		if !strings.HasPrefix(strings.TrimSpace(lines[i]), "|") {
			break
		}
		t.Rows = append(t.Rows, splitRow(lines[i]))
		t.RawLines = append(t.RawLines, lines[i])
	}
	return t, i
}

// splitRow breaks a pipe-table line into trimmed cell texts, dropping the
// outer pipes.
func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")

	parts := strings.Split(line, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}
