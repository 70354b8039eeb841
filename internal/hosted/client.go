package hosted

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"vcard-wallet-go/internal/models"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Client is a minimal client for the hosted auth (GoTrue) and REST
// (PostgREST) endpoints of one project.
type Client struct {
	baseURL    string
	restURL    string
	authURL    string
	apiKey     string
	admin      bool
	httpClient *http.Client
}

// NewClient builds a client authenticated with the project's anon key.
// Row access is granted by the user token passed on each request.
func NewClient(cfg models.HostedConfig, httpClient *http.Client) (*Client, error) {
	return newClient(cfg.URL, cfg.AnonKey, false, httpClient)
}

// NewAdminClient builds a client authenticated with the service role key,
// which bypasses row-level security. Only out-of-band tools use it.
func NewAdminClient(cfg models.HostedConfig, httpClient *http.Client) (*Client, error) {
	if cfg.ServiceRoleKey == "" {
		return nil, fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required for admin access")
	}
	return newClient(cfg.URL, cfg.ServiceRoleKey, true, httpClient)
}

func newClient(baseURL, key string, admin bool, httpClient *http.Client) (*Client, error) {
	if baseURL == "" || key == "" {
		return nil, fmt.Errorf("hosted service url and key are required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid hosted service url %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		baseURL:    baseURL,
		restURL:    baseURL + "/rest/v1",
		authURL:    baseURL + "/auth/v1",
		apiKey:     key,
		admin:      admin,
		httpClient: httpClient,
	}, nil
}

// Admin reports whether the client uses the service role key.
func (c *Client) Admin() bool {
	return c.admin
}

// request performs one call. token, when empty, falls back to the client key.
func (c *Client) request(ctx context.Context, method, endpoint string, body []byte, headers map[string]string, token string) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, redactQuery(endpoint), err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			zap.L().Debug("Failed to close hosted response body", zap.Error(cerr))
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

func redactQuery(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}

// Error is a failure reported by the hosted service. Code is the Postgres
// SQLSTATE or auth error code when one is available.
type Error struct {
	Code       string
	Message    string
	Details    string
	Hint       string
	StatusCode int
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("hosted error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("hosted error %d: %s", e.StatusCode, e.Message)
}

// Transient reports server-side and throttling failures.
func (e *Error) Transient() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

func parseError(body []byte, statusCode int) *Error {
	e := &Error{StatusCode: statusCode}
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		e.Code = firstNonEmpty(parsed, "code", "error_code", "error")
		e.Message = firstNonEmpty(parsed, "message", "msg", "error_description", "error")
		e.Details = parsed.Get("details").String()
		e.Hint = parsed.Get("hint").String()
	} else if len(body) > 0 {
		e.Message = string(body)
	}
	if e.Message == "" {
		e.Message = http.StatusText(statusCode)
	}
	return e
}

func firstNonEmpty(v gjson.Result, paths ...string) string {
	for _, p := range paths {
		if r := v.Get(p); r.Exists() && r.String() != "" {
			return r.String()
		}
	}
	return ""
}
