package lark

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultBaseURL is the open-platform endpoint for Feishu tenants. Lark
// tenants outside China use https://open.larksuite.com instead.
const DefaultBaseURL = "https://open.feishu.cn"

// listPageSize is the page_size sent on block list calls, the maximum the
// service accepts.
const listPageSize = 500

// MaxAppendChildren is the most blocks one append-children call accepts.
const MaxAppendChildren = 50

// maxAttempts bounds throttle retries per call.
const maxAttempts = 3

// retryBaseDelay is the first throttle wait; attempt N waits N times this.
// Variable so tests can shrink it.
var retryBaseDelay = 2 * time.Second

// TokenSource supplies the bearer credential for each call. The client never
// inspects or refreshes the token; that is the source's business.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken adapts a fixed token string to TokenSource.
type StaticToken string

// Token returns the wrapped string.
func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// Client calls the docx open API with rate limiting, bearer injection, and
// linear backoff on throttled calls.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewClient creates a client against baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, tokens TokenSource, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		limiter: DefaultRateLimiter(),
		logger:  logger,
	}
}

// envelope is the fixed response wrapper; code 0 is success, anything else
// an application-level failure.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// linearBackOff waits retryBaseDelay, then twice that, stopping after
// maxAttempts total tries. The service asks for linearly spaced retries, not
// exponential ones.
type linearBackOff struct {
	attempt int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	if l.attempt >= maxAttempts {
		return backoff.Stop
	}
	return time.Duration(l.attempt) * retryBaseDelay
}

func (l *linearBackOff) Reset() {
	l.attempt = 0
}

// call performs one rate-limited request, retrying throttled attempts, and
// decodes the envelope's data into out when out is non-nil.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	attempt := 0
	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		err := c.do(ctx, method, path, query, payload, out)
		if err == nil {
			return nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Retryable() {
			c.logger.Warn("throttled, backing off", "path", path, "attempt", attempt)
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(op, backoff.WithContext(&linearBackOff{}, ctx))
}

// do executes a single HTTP round trip and decodes the envelope.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquiring token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	c.logger.Debug("api call",
		"method", method, "path", path,
		"status", resp.StatusCode, "duration", time.Since(start))

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Throttle responses can come from the gateway without a JSON body.
		if resp.StatusCode == http.StatusTooManyRequests {
			return &APIError{
				Code:       CodeRateLimited,
				Msg:        http.StatusText(resp.StatusCode),
				HTTPStatus: resp.StatusCode,
			}
		}
		return fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	if env.Code != 0 {
		return &APIError{Code: env.Code, Msg: env.Msg, HTTPStatus: resp.StatusCode}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding response data: %w", err)
		}
	}
	return nil
}

// RawContent returns the document flattened to a plain string by the
// service.
func (c *Client) RawContent(ctx context.Context, docToken string) (string, error) {
	var data struct {
		Content string `json:"content"`
	}
	path := fmt.Sprintf("/open-apis/docx/v1/documents/%s/raw_content", docToken)
	if err := c.call(ctx, http.MethodGet, path, nil, nil, &data); err != nil {
		return "", err
	}
	return data.Content, nil
}

// listResponse is the shared pagination shape of the list endpoints.
type listResponse struct {
	Items     []Block `json:"items"`
	HasMore   bool    `json:"has_more"`
	PageToken string  `json:"page_token"`
}

// ListBlocks fetches every block of the document, in document order,
// accumulating across pages.
func (c *Client) ListBlocks(ctx context.Context, docToken string) ([]Block, error) {
	path := fmt.Sprintf("/open-apis/docx/v1/documents/%s/blocks", docToken)
	return c.listAll(ctx, path)
}

// BlockChildren fetches the direct children of one block.
func (c *Client) BlockChildren(ctx context.Context, docToken, blockID string) ([]Block, error) {
	path := fmt.Sprintf("/open-apis/docx/v1/documents/%s/blocks/%s/children", docToken, blockID)
	return c.listAll(ctx, path)
}

func (c *Client) listAll(ctx context.Context, path string) ([]Block, error) {
	var all []Block
	pageToken := ""
	for {
		query := url.Values{"page_size": {strconv.Itoa(listPageSize)}}
		if pageToken != "" {
			query.Set("page_token", pageToken)
		}

		var page listResponse
		if err := c.call(ctx, http.MethodGet, path, query, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Items...)

		if !page.HasMore || page.PageToken == "" {
			break
		}
		pageToken = page.PageToken
	}
	return all, nil
}

// AppendChildren persists blocks as children of parentID, in order. The
// returned blocks carry their server-assigned IDs; a created grid block
// additionally lists its cell IDs row-major in Children.
func (c *Client) AppendChildren(ctx context.Context, docToken, parentID string, children []Block) ([]Block, error) {
	path := fmt.Sprintf("/open-apis/docx/v1/documents/%s/blocks/%s/children", docToken, parentID)
	req := struct {
		Children []Block `json:"children"`
	}{Children: children}

	var data struct {
		Children []Block `json:"children"`
	}
	if err := c.call(ctx, http.MethodPost, path, nil, req, &data); err != nil {
		return nil, err
	}
	return data.Children, nil
}

// UpdateTitle rewrites the root block's text, which the service displays as
// the document title. The root block's ID equals the document token.
func (c *Client) UpdateTitle(ctx context.Context, docToken, title string) error {
	path := fmt.Sprintf("/open-apis/docx/v1/documents/%s/blocks/%s", docToken, docToken)

	var req struct {
		UpdateTextElements struct {
			Elements []TextElement `json:"elements"`
		} `json:"update_text_elements"`
	}
	req.UpdateTextElements.Elements = []TextElement{
		{TextRun: &TextRun{Content: title}},
	}
	return c.call(ctx, http.MethodPatch, path, nil, req, nil)
}

// DeleteChildRange removes the children of parentID with indices in
// [startIndex, endIndex).
func (c *Client) DeleteChildRange(ctx context.Context, docToken, parentID string, startIndex, endIndex int) error {
	path := fmt.Sprintf("/open-apis/docx/v1/documents/%s/blocks/%s/children/batch_delete", docToken, parentID)
	req := struct {
		StartIndex int `json:"start_index"`
		EndIndex   int `json:"end_index"`
	}{StartIndex: startIndex, EndIndex: endIndex}
	return c.call(ctx, http.MethodDelete, path, nil, req, nil)
}
