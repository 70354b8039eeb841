package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"vcard-wallet-go/internal/models"
	"vcard-wallet-go/internal/retry"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Error is a non-2xx reply from the relay.
type Error struct {
	StatusCode int
	Payload    json.RawMessage
}

func (e *Error) Error() string {
	return fmt.Sprintf("relay error %d: %s", e.StatusCode, e.Message())
}

// Message extracts a readable message from the failure payload.
func (e *Error) Message() string {
	p := gjson.ParseBytes(e.Payload)
	switch {
	case p.Type == gjson.String:
		return p.String()
	case p.Get("error_message").Exists():
		return p.Get("error_message").String()
	case p.Get("message").Exists():
		return p.Get("message").String()
	case len(e.Payload) > 0:
		return string(e.Payload)
	}
	return http.StatusText(e.StatusCode)
}

// Transient reports gateway and throttling failures, which are safe to retry
// because the same idempotency key is resent.
func (e *Error) Transient() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Client calls the relay on behalf of the signed-in user.
type Client struct {
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
}

func NewClient(baseURL string, httpClient *http.Client, policy retry.Policy) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient, policy: policy}
}

// CreateCard asks the relay to issue a card for userId. One idempotency key
// covers every retry of this call.
func (c *Client) CreateCard(ctx context.Context, userId, accessToken string) (*models.IssuedCard, error) {
	key := uuid.NewString()

	var card *models.IssuedCard
	err := retry.Do(ctx, c.policy, "relay_create_card", func(ctx context.Context) error {
		var err error
		card, err = c.createCard(ctx, userId, accessToken, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (c *Client) createCard(ctx context.Context, userId, accessToken, key string) (*models.IssuedCard, error) {
	payload, err := json.Marshal(models.CreateCardRequest{UserId: userId})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/create-card", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("unable to build create card request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdempotencyHeader, key)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			zap.L().Debug("Failed to close relay response body", zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("unable to read relay response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		relayErr := &Error{StatusCode: resp.StatusCode}
		if gjson.ValidBytes(body) && gjson.GetBytes(body, "error").Exists() {
			relayErr.Payload = json.RawMessage(gjson.GetBytes(body, "error").Raw)
		} else if len(body) > 0 {
			relayErr.Payload, _ = json.Marshal(string(body))
		}
		return nil, relayErr
	}

	var card models.IssuedCard
	if err := json.Unmarshal(body, &card); err != nil {
		return nil, fmt.Errorf("unable to decode relay response: %w", err)
	}
	if !card.Success || card.Token == "" {
		return nil, fmt.Errorf("relay returned an unsuccessful card response")
	}
	return &card, nil
}
