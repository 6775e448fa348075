package transform

import (
	"regexp"
	"strings"
)

// langCodes maps fence tags to the numeric language stored on code blocks.
// The numbers are the service's enum and must not be reordered.
var langCodes = map[string]int{
	"plaintext":    1,
	"abap":         2,
	"ada":          3,
	"apache":       4,
	"apex":         5,
	"assembly":     6,
	"bash":         7,
	"csharp":       8,
	"cpp":          9,
	"c":            10,
	"cobol":        11,
	"css":          12,
	"coffeescript": 13,
	"d":            14,
	"dart":         15,
	"delphi":       16,
	"django":       17,
	"dockerfile":   18,
	"erlang":       19,
	"fortran":      20,
	"go":           22,
	"gherkin":      23,
	"graphql":      24,
	"groovy":       25,
	"html":         26,
	"http":         28,
	"haskell":      29,
	"json":         30,
	"java":         31,
	"javascript":   32,
	"julia":        33,
	"kotlin":       34,
	"latex":        35,
	"lisp":         36,
	"lua":          38,
	"matlab":       39,
	"makefile":     40,
	"markdown":     41,
	"nginx":        42,
	"objectivec":   43,
	"php":          45,
	"perl":         46,
	"powershell":   48,
	"prolog":       49,
	"protobuf":     50,
	"python":       51,
	"r":            52,
	"ruby":         54,
	"rust":         55,
	"sas":          56,
	"scss":         57,
	"sql":          58,
	"scala":        59,
	"scheme":       60,
	"shell":        62,
	"swift":        63,
	"thrift":       64,
	"typescript":   65,
	"vbscript":     66,
	"xml":          68,
	"yaml":         69,
}

// langAliases folds common fence spellings into the canonical tag.
var langAliases = map[string]string{
	"c#":     "csharp",
	"c++":    "cpp",
	"golang": "go",
	"js":     "javascript",
	"md":     "markdown",
	"objc":   "objectivec",
	"proto":  "protobuf",
	"ps1":    "powershell",
	"py":     "python",
	"rb":     "ruby",
	"sh":     "shell",
	"text":   "plaintext",
	"ts":     "typescript",
	"yml":    "yaml",
	"zsh":    "shell",
}

// langNames is the reverse of langCodes, built once at init.
var langNames = make(map[int]string, len(langCodes))

func init() {
	for name, code := range langCodes {
		langNames[code] = name
	}
}

// LanguageCode resolves a fence tag to the service's numeric language.
// Returns 0 when the tag is unknown; callers omit the language in that case.
func LanguageCode(tag string) int {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if canonical, ok := langAliases[tag]; ok {
		tag = canonical
	}
	return langCodes[tag]
}

// LanguageName maps a numeric language back to its fence tag, "" when the
// number is unknown or zero.
func LanguageName(code int) string {
	return langNames[code]
}

// Probes for the untagged-fence heuristic, checked in order.
var (
	sqlProbe     = regexp.MustCompile(`(?i)\b(select\s+.+\s+from|insert\s+into|create\s+table|alter\s+table|update\s+\w+\s+set|delete\s+from)\b`)
	javaProbe    = regexp.MustCompile(`public\s+(class|interface|static)|System\.out\.|import\s+java\.|@Override`)
	diagramProbe = regexp.MustCompile(`(?m)^\s*(graph\s+(TD|TB|LR|RL|BT)\b|sequenceDiagram|flowchart\s|classDiagram|stateDiagram|erDiagram|gantt\b)`)
	httpProbe    = regexp.MustCompile(`(?m)^(GET|POST|PUT|PATCH|DELETE|HEAD|OPTIONS)\s+/\S*`)
)

// GuessLanguage inspects an untagged code body and picks a best-guess fence
// tag. Purely cosmetic: "" is an acceptable answer and never blocks a write.
func GuessLanguage(body string) string {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return ""
	}
	switch {
	case sqlProbe.MatchString(trimmed):
		return "sql"
	case javaProbe.MatchString(trimmed):
		return "java"
	case strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["):
		return "json"
	case diagramProbe.MatchString(trimmed):
		return "mermaid"
	case httpProbe.MatchString(trimmed):
		return "http"
	}
	return ""
}
