package lark

import (
	"fmt"
	"net/http"
)

// Service error codes that get dedicated handling. The service uses the same
// numbering across endpoints.
const (
	// CodeRateLimited marks a throttled call; the HTTP status is usually
	// 429 as well, but the envelope code alone is authoritative.
	CodeRateLimited = 99991400

	// CodeTokenInvalid and CodeTokenExpired mean the user access token can
	// no longer be used and a fresh authorization is needed.
	CodeTokenInvalid = 99991668
	CodeTokenExpired = 99991677

	// CodeForbidden means the app can see the API but not this document.
	CodeForbidden = 1770032
)

// APIError is a non-success response: either a non-zero envelope code or an
// HTTP 429 without a decodable body.
type APIError struct {
	Code       int
	Msg        string
	HTTPStatus int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Msg)
}

// Retryable reports whether the call was throttled and may be retried.
// Everything else is a hard failure.
func (e *APIError) Retryable() bool {
	return e.Code == CodeRateLimited || e.HTTPStatus == http.StatusTooManyRequests
}

// Hint returns remediation guidance for the operator, or "" when the code
// has no specific fix.
func (e *APIError) Hint() string {
	switch e.Code {
	case CodeForbidden:
		return "the document is not shared with the app: add the app as a collaborator with edit permission"
	case CodeTokenInvalid, CodeTokenExpired:
		return "stored credentials are invalid or expired: run 'larkmd auth' again"
	case CodeRateLimited:
		return "rate limited by the service: wait a moment or lower upload concurrency"
	}
	return ""
}
