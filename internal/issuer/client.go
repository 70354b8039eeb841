/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package issuer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"vcard-wallet-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// ErrUserNotFound is returned by GetUser when the issuer has no such cardholder.
var ErrUserNotFound = errors.New("issuer user not found")

// Client talks to the card issuer's REST API using HTTP basic auth.
type Client struct {
	baseURL    string
	apiKey     string
	secret     string
	httpClient *http.Client
}

func NewClient(cfg models.IssuerConfig) (*Client, error) {
	if cfg.BaseURL == "" || cfg.ApiKey == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("issuer base url, api key and secret are required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid issuer base url %q: %w", cfg.BaseURL, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient, err := NewHttpClient(timeout)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.ApiKey,
		secret:     cfg.Secret,
		httpClient: httpClient,
	}, nil
}

// NewHttpClient builds the tuned HTTP/2-capable client shared by outbound callers.
func NewHttpClient(timeout time.Duration) (*http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: timeout,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, fmt.Errorf("unable to configure http2 transport: %w", err)
	}

	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

// Ping checks connectivity and credentials, returning the issuer's raw reply.
func (c *Client) Ping(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/ping", nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUser fetches a cardholder by token. A missing user yields ErrUserNotFound.
func (c *Client) GetUser(ctx context.Context, token string) (*models.IssuerUser, error) {
	var user models.IssuerUser
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(token), nil, "", &user)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (c *Client) CreateUser(ctx context.Context, user models.IssuerUser) (*models.IssuerUser, error) {
	var created models.IssuerUser
	if err := c.do(ctx, http.MethodPost, "/users", user, "", &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateCard issues a card. The idempotency key, when set, is forwarded so a
// retried request does not issue a second card.
func (c *Client) CreateCard(ctx context.Context, req models.IssuerCardRequest, idempotencyKey string) (*models.IssuerCard, error) {
	var card models.IssuerCard
	if err := c.do(ctx, http.MethodPost, "/cards?show_cvv_number=true", req, idempotencyKey, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, idempotencyKey string, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("unable to marshal %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("unable to build %s %s request: %w", method, path, err)
	}
	req.SetBasicAuth(c.apiKey, c.secret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("issuer request %s %s failed: %w", method, path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			zap.L().Debug("Failed to close issuer response body", zap.Error(cerr))
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("unable to read issuer response: %w", err)
	}

	zap.L().Debug("Issuer call completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode >= http.StatusBadRequest {
		return newError(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = rawOrString(respBody)
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unable to decode issuer response for %s %s: %w", method, path, err)
	}
	return nil
}
