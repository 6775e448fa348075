package transform

import (
	"regexp"
	"strings"
)

// SpanStyle tags the single inline style a span carries. Styles are mutually
// exclusive: the parser keeps the first match and never combines or nests
// them, and downstream rendering relies on that exclusivity.
type SpanStyle int

const (
	SpanPlain SpanStyle = iota
	SpanBold
	SpanInlineCode
	SpanStrikethrough
	SpanLink
)

// Span is one inline text run within a block.
type Span struct {
	Text  string
	Style SpanStyle
	URL   string // set for SpanLink only
}

// Inline patterns in priority order. When two patterns match at the same
// position the earlier entry wins.
var inlinePatterns = []struct {
	style SpanStyle
	re    *regexp.Regexp
}{
	{SpanBold, regexp.MustCompile(`\*\*(.+?)\*\*`)},
	{SpanInlineCode, regexp.MustCompile("`([^`\n]+)`")},
	{SpanStrikethrough, regexp.MustCompile(`~~(.+?)~~`)},
	{SpanLink, regexp.MustCompile(`\[([^\[\]]*)\]\(([^()]*)\)`)},
}

// ParseSpans tokenizes a run of text into styled spans. Unmatched text
// becomes plain spans. Link-like text whose target is not an http(s) URL is
// kept verbatim as plain text, so non-URL bracket notation survives the
// round trip untouched. Empty input yields a single one-space plain span
// because the service rejects zero-length text content.
//
// The function is pure: identical input always produces identical spans.
func ParseSpans(text string) []Span {
	if text == "" {
		return []Span{{Text: " ", Style: SpanPlain}}
	}

	var spans []Span
	rest := text
	for rest != "" {
		best := -1
		var loc []int
		for i, p := range inlinePatterns {
			m := p.re.FindStringSubmatchIndex(rest)
			if m == nil {
				continue
			}
			if best == -1 || m[0] < loc[0] {
				best, loc = i, m
			}
		}
		if best == -1 {
			spans = append(spans, Span{Text: rest, Style: SpanPlain})
			break
		}

		if loc[0] > 0 {
			spans = append(spans, Span{Text: rest[:loc[0]], Style: SpanPlain})
		}

		switch p := inlinePatterns[best]; p.style {
		case SpanLink:
			target := rest[loc[4]:loc[5]]
			if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
				spans = append(spans, Span{Text: rest[loc[2]:loc[3]], Style: SpanLink, URL: target})
			} else {
				// Not a URL: the literal bracket-paren text passes through.
				spans = append(spans, Span{Text: rest[loc[0]:loc[1]], Style: SpanPlain})
			}
		default:
			spans = append(spans, Span{Text: rest[loc[2]:loc[3]], Style: p.style})
		}
		rest = rest[loc[1]:]
	}
	return spans
}
