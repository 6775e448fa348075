// Package auth acquires and refreshes user access tokens for the docx API,
// caching them on disk between runs.
package auth

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
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/larkmd/larkmd/internal/lark"
)

// expiryMargin is how close to expiry a token is still handed out. Refresh
// happens before that so a token does not die mid-upload.
const expiryMargin = 60 * time.Second

// Cache is the persisted credential record. The app credentials ride along
// so refreshes work without environment variables.
type Cache struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // unix seconds
	AppID        string `json:"app_id"`
	AppSecret    string `json:"app_secret"`

	// path is where the cache is persisted (not serialized).
	path string
}

// LoadCache loads the cache file, or returns an empty cache if the file
// doesn't exist yet.
func LoadCache(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Cache{path: path}, nil
		}
		return nil, fmt.Errorf("reading token cache: %w", err)
	}

	var cache Cache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("parsing token cache: %w", err)
	}
	cache.path = path
	return &cache, nil
}

// Save persists the cache to disk. The file holds credentials, so it is not
// group or world readable.
func (c *Cache) Save() error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling token cache: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("writing token cache: %w", err)
	}
	return nil
}

// Fresh reports whether the access token is still usable at now, with the
// expiry margin left.
func (c *Cache) Fresh(now time.Time) bool {
	return c.AccessToken != "" && now.Unix() < c.ExpiresAt-int64(expiryMargin.Seconds())
}

// Manager hands out valid access tokens, refreshing through the service
// when the cached one nears expiry. It implements lark.TokenSource.
type Manager struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	mu    sync.Mutex
	cache *Cache
}

// NewManager loads the cache at cachePath and returns a manager against
// baseURL (lark.DefaultBaseURL when empty).
func NewManager(cachePath, baseURL string, logger *slog.Logger) (*Manager, error) {
	cache, err := LoadCache(cachePath)
	if err != nil {
		return nil, err
	}
	if baseURL == "" {
		baseURL = lark.DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
		cache:   cache,
	}, nil
}

// SetAppCredentials overrides the cached app credentials, typically from the
// environment. Later Save calls persist them.
func (m *Manager) SetAppCredentials(appID, appSecret string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if appID != "" {
		m.cache.AppID = appID
	}
	if appSecret != "" {
		m.cache.AppSecret = appSecret
	}
}

// Token returns a valid access token, refreshing first when the cached one
// is missing or close to expiry.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cache.Fresh(time.Now()) {
		return m.cache.AccessToken, nil
	}
	if m.cache.RefreshToken == "" {
		return "", fmt.Errorf("no cached credentials: run 'larkmd auth' first")
	}

	m.logger.Debug("access token stale, refreshing")
	if err := m.refresh(ctx); err != nil {
		return "", fmt.Errorf("refreshing access token: %w", err)
	}
	return m.cache.AccessToken, nil
}

// Exchange runs the authorization-code flow and persists the resulting
// tokens. code is the value the authorize redirect handed to the user.
func (m *Manager) Exchange(ctx context.Context, appID, appSecret, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.AppID = appID
	m.cache.AppSecret = appSecret

	appToken, err := m.appAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("acquiring app access token: %w", err)
	}

	var data tokenData
	if err := m.postEnveloped(ctx, "/open-apis/authen/v1/access_token", appToken, map[string]string{
		"grant_type": "authorization_code",
		"code":       code,
	}, &data); err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	m.storeTokens(data)
	return m.cache.Save()
}

// tokenData is the authen v1 response payload for both the code exchange
// and the refresh call.
type tokenData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// refresh trades the refresh token for a new access token and rewrites the
// cache. Caller holds the mutex.
func (m *Manager) refresh(ctx context.Context) error {
	appToken, err := m.appAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("acquiring app access token: %w", err)
	}

	var data tokenData
	if err := m.postEnveloped(ctx, "/open-apis/authen/v1/refresh_access_token", appToken, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": m.cache.RefreshToken,
	}, &data); err != nil {
		return err
	}

	m.storeTokens(data)
	return m.cache.Save()
}

func (m *Manager) storeTokens(data tokenData) {
	m.cache.AccessToken = data.AccessToken
	if data.RefreshToken != "" {
		m.cache.RefreshToken = data.RefreshToken
	}
	m.cache.ExpiresAt = time.Now().Unix() + data.ExpiresIn
}

// appAccessToken fetches the tenant-independent app token required as the
// bearer on authen calls. The v3 endpoint replies flat, not enveloped.
func (m *Manager) appAccessToken(ctx context.Context) (string, error) {
	if m.cache.AppID == "" || m.cache.AppSecret == "" {
		return "", fmt.Errorf("app credentials missing: set LARK_APP_ID and LARK_APP_SECRET")
	}

	raw, status, err := m.post(ctx, "/open-apis/auth/v3/app_access_token/internal", "", map[string]string{
		"app_id":     m.cache.AppID,
		"app_secret": m.cache.AppSecret,
	})
	if err != nil {
		return "", err
	}

	var out struct {
		Code           int    `json:"code"`
		Msg            string `json:"msg"`
		AppAccessToken string `json:"app_access_token"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decoding app token response: %w", err)
	}
	if out.Code != 0 {
		return "", &lark.APIError{Code: out.Code, Msg: out.Msg, HTTPStatus: status}
	}
	return out.AppAccessToken, nil
}

// postEnveloped posts body and decodes the standard {code, msg, data}
// envelope into out.
func (m *Manager) postEnveloped(ctx context.Context, path, bearer string, body, out any) error {
	raw, status, err := m.post(ctx, path, bearer, body)
	if err != nil {
		return err
	}

	var env struct {
		Code int             `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if env.Code != 0 {
		return &lark.APIError{Code: env.Code, Msg: env.Msg, HTTPStatus: status}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding response data: %w", err)
		}
	}
	return nil
}

// post sends one JSON POST and returns the raw response body and status.
func (m *Manager) post(ctx context.Context, path, bearer string, body any) ([]byte, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	return raw, resp.StatusCode, nil
}

// BuildAuthorizeURL is the page a user opens in a browser to grant the app
// access; the redirect delivers the authorization code.
func BuildAuthorizeURL(baseURL, appID, redirectURI string) string {
	if baseURL == "" {
		baseURL = lark.DefaultBaseURL
	}
	q := url.Values{
		"app_id":       {appID},
		"redirect_uri": {redirectURI},
	}
	return strings.TrimSuffix(baseURL, "/") + "/open-apis/authen/v1/index?" + q.Encode()
}
