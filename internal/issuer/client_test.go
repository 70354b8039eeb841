package issuer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vcard-wallet-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(models.IssuerConfig{BaseURL: srv.URL, ApiKey: "key", Secret: "secret", Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(models.IssuerConfig{BaseURL: "http://x", ApiKey: "k"})
	assert.Error(t, err)
}

func TestPing_UsesBasicAuth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "/ping", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"id":"ping"}`))
	})

	msg, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"id":"ping"}`, string(msg))
}

func TestGetUser_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error_code":"404","error_message":"User not found"}`))
	})

	_, err := c.GetUser(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetUser_OtherFailureKeepsPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error_code":"401","error_message":"Invalid credentials"}`))
	})

	_, err := c.GetUser(context.Background(), "u1")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "401", apiErr.Code)
	assert.Equal(t, "Invalid credentials", apiErr.Message)
	assert.JSONEq(t, `{"error_code":"401","error_message":"Invalid credentials"}`, string(apiErr.Body))
	assert.False(t, apiErr.Transient())
}

func TestCreateCard_ForwardsIdempotencyKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/cards", r.URL.Path)
		assert.Equal(t, "idem-1", r.Header.Get("X-Idempotency-Key"))

		var req models.IssuerCardRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "u1", req.UserToken)
		assert.Equal(t, "NEW", req.Fulfillment.CardFulfillmentReason)

		_, _ = w.Write([]byte(`{"token":"T","last_four":"1234","expiration_month":"09","expiration_year":"2030","cvv_number":"123"}`))
	})

	card, err := c.CreateCard(context.Background(), models.IssuerCardRequest{
		UserToken:   "u1",
		Fulfillment: models.Fulfillment{CardFulfillmentReason: "NEW"},
	}, "idem-1")
	require.NoError(t, err)
	assert.Equal(t, "T", card.Token)
	assert.Equal(t, "09/2030", card.ExpiryDate())
	assert.Equal(t, "123", card.CvvNumber)
}

func TestNewError_NonJsonBody(t *testing.T) {
	e := newError(http.StatusBadGateway, []byte("upstream exploded"))
	assert.JSONEq(t, `"upstream exploded"`, string(e.Body))
	assert.Equal(t, "Bad Gateway", e.Message)
	assert.True(t, e.Transient())
}
