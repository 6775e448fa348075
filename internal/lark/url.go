// Package lark is the docx open API client: wire block model, rate-limited
// transport with throttle retries, URL parsing, and the cell-fill worker
// pool.
package lark

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// docPathSegments are the URL path segments that precede a document token.
// "docs" is the legacy editor; its tokens still work against the docx API.
var docPathSegments = map[string]bool{
	"docx": true,
	"wiki": true,
	"docs": true,
}

// tokenPattern matches an opaque document token.
var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9]{16,}$`)

// ParseDocURL extracts the document token from a share URL.
//
// Supported forms:
//   - https://{tenant}.feishu.cn/docx/{token}
//   - https://{tenant}.larksuite.com/docx/{token}
//   - https://{tenant}.feishu.cn/wiki/{token}
//   - https://{tenant}.feishu.cn/docs/{token} (legacy editor)
//   - {token} (bare)
//
// Query strings and fragments are ignored.
func ParseDocURL(raw string) (string, error) {
	input := strings.TrimSpace(raw)
	if input == "" {
		return "", fmt.Errorf("empty document URL")
	}

	if tokenPattern.MatchString(input) {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid document URL: %w", err)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i < len(segments)-1; i++ {
		if docPathSegments[segments[i]] && tokenPattern.MatchString(segments[i+1]) {
			return segments[i+1], nil
		}
	}

	return "", fmt.Errorf("no document token found in %q", raw)
}
