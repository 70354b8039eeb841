package hosted

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vcard-wallet-go/internal/models"
	"vcard-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string][]string
	Auth   string
	Body   string
}

type fakeHosted struct {
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeHosted) handle(method, path string, fn func(w http.ResponseWriter, r *http.Request)) {
	f.routes[method+" "+path] = fn
}

func (f *fakeHosted) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeHosted) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newFakeHosted(t *testing.T) (*fakeHosted, *Client) {
	t.Helper()
	f := &fakeHosted{routes: map[string]func(w http.ResponseWriter, r *http.Request){}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Auth:   r.Header.Get("Authorization"),
			Body:   string(body),
		})
		fn := f.routes[r.Method+" "+r.URL.Path]
		f.mu.Unlock()

		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		if fn == nil {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"no route"}`))
			return
		}
		fn(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(models.HostedConfig{URL: srv.URL, AnonKey: "anon-key"}, srv.Client())
	require.NoError(t, err)
	return f, client
}

func reply(status int, body string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func signedInStore(t *testing.T, client *Client) *Store {
	t.Helper()
	sessions := NewMemorySessionStorage()
	require.NoError(t, sessions.Save(&models.Session{
		AccessToken:  "user-token",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		User:         &models.User{Id: "u1", Email: "a@x.com"},
	}))
	return NewStore(client, sessions)
}

func TestSignIn_StoresSession(t *testing.T) {
	f, client := newFakeHosted(t)
	f.handle(http.MethodPost, "/auth/v1/token", reply(200,
		`{"access_token":"at","refresh_token":"rt","expires_in":3600,"user":{"id":"u1","email":"a@x.com"}}`))

	s := NewStore(client, nil)
	session, err := s.SignIn(context.Background(), "a@x.com", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, "at", session.AccessToken)
	assert.Equal(t, "password", f.last().Query["grant_type"][0])
	assert.JSONEq(t, `{"email":"a@x.com","password":"pw123456"}`, f.last().Body)

	current, err := s.Session(context.Background())
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "a@x.com", current.User.Email)
	assert.NotZero(t, current.ExpiresAt)
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	f, client := newFakeHosted(t)
	f.handle(http.MethodPost, "/auth/v1/token", reply(400,
		`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))

	_, err := NewStore(client, nil).SignIn(context.Background(), "a@x.com", "nope")
	assert.ErrorIs(t, err, store.ErrInvalidCredentials)
}

func TestSignUp_PendingConfirmation(t *testing.T) {
	f, client := newFakeHosted(t)
	f.handle(http.MethodPost, "/auth/v1/signup", reply(200, `{"id":"u1","email":"a@x.com"}`))

	s := NewStore(client, nil)
	session, err := s.SignUp(context.Background(), "a@x.com", "pw123456")
	require.NoError(t, err)
	assert.Nil(t, session)

	current, err := s.Session(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestSession_RefreshesExpiredToken(t *testing.T) {
	f, client := newFakeHosted(t)
	f.handle(http.MethodPost, "/auth/v1/token", reply(200,
		`{"access_token":"new","refresh_token":"rt2","expires_in":3600,"user":{"id":"u1"}}`))

	sessions := NewMemorySessionStorage()
	require.NoError(t, sessions.Save(&models.Session{AccessToken: "old", RefreshToken: "rt1", ExpiresAt: time.Now().Add(-time.Minute).Unix()}))

	session, err := NewStore(client, sessions).Session(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", session.AccessToken)
	assert.Equal(t, "refresh_token", f.last().Query["grant_type"][0])
	assert.JSONEq(t, `{"refresh_token":"rt1"}`, f.last().Body)
}

func TestSession_RejectedRefreshSignsOut(t *testing.T) {
	f, client := newFakeHosted(t)
	f.handle(http.MethodPost, "/auth/v1/token", reply(400, `{"error":"invalid_grant"}`))

	sessions := NewMemorySessionStorage()
	require.NoError(t, sessions.Save(&models.Session{AccessToken: "old", RefreshToken: "bad", ExpiresAt: 1}))

	session, err := NewStore(client, sessions).Session(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session)
	stored, _ := sessions.Load()
	assert.Nil(t, stored)
}

func TestUserCalls_RequireSession(t *testing.T) {
	_, client := newFakeHosted(t)
	_, err := NewStore(client, nil).ListCards(context.Background())
	assert.ErrorIs(t, err, store.ErrNotLoggedIn)
}

func TestListCards_OrdersNewestFirstWithUserToken(t *testing.T) {
	f, client := newFakeHosted(t)
	f.handle(http.MethodGet, "/rest/v1/virtual_cards", reply(200,
		`[{"id":"c2","status":"active","balance":0},{"id":"c1","status":"frozen","balance":"12.50"}]`))

	cards, err := signedInStore(t, client).ListCards(context.Background())
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "c2", cards[0].Id)
	assert.True(t, cards[1].Balance.Equal(decimal.RequireFromString("12.5")))

	req := f.last()
	assert.Equal(t, "Bearer user-token", req.Auth)
	assert.Equal(t, "created_at.desc", req.Query["order"][0])
}

func TestUpdateCardStatus_FiltersOnAllowedSources(t *testing.T) {
	f, client := newFakeHosted(t)
	f.handle(http.MethodPatch, "/rest/v1/virtual_cards", reply(200, `[{"id":"c1","status":"cancelled"}]`))

	card, err := signedInStore(t, client).UpdateCardStatus(context.Background(), "c1", models.CardCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.CardCancelled, card.Status)

	req := f.last()
	assert.Equal(t, "eq.c1", req.Query["id"][0])
	assert.Equal(t, "in.(active,frozen)", req.Query["status"][0])
	assert.Contains(t, req.Body, `"status":"cancelled"`)
}

func TestUpdateCardStatus_CancelledCardRejected(t *testing.T) {
	f, client := newFakeHosted(t)
	f.handle(http.MethodPatch, "/rest/v1/virtual_cards", reply(200, `[]`))
	f.handle(http.MethodGet, "/rest/v1/virtual_cards", reply(200, `[{"id":"c1","status":"cancelled"}]`))

	s := signedInStore(t, client)
	_, err := s.UpdateCardStatus(context.Background(), "c1", models.CardFrozen)
	assert.ErrorIs(t, err, store.ErrCardCancelled)

	_, err = s.UpdateCardStatus(context.Background(), "c1", models.CardActive)
	assert.ErrorIs(t, err, store.ErrCardCancelled)
}

func TestUpdateCardStatus_TriggerHint(t *testing.T) {
	f, client := newFakeHosted(t)
	f.handle(http.MethodPatch, "/rest/v1/virtual_cards", reply(400,
		`{"code":"P0001","message":"card c1 is cancelled","hint":"card_cancelled"}`))

	_, err := signedInStore(t, client).UpdateCardStatus(context.Background(), "c1", models.CardActive)
	assert.ErrorIs(t, err, store.ErrCardCancelled)
}

func TestUpdateCardStatus_NotFound(t *testing.T) {
	f, client := newFakeHosted(t)
	f.handle(http.MethodPatch, "/rest/v1/virtual_cards", reply(200, `[]`))
	f.handle(http.MethodGet, "/rest/v1/virtual_cards", reply(200, `[]`))

	_, err := signedInStore(t, client).UpdateCardStatus(context.Background(), "missing", models.CardFrozen)
	assert.ErrorIs(t, err, store.ErrCardNotFound)
}

func TestRequestWithdrawal_MapsHints(t *testing.T) {
	tests := []struct {
		hint string
		want error
	}{
		{hintInsufficientBalance, store.ErrInsufficientBalance},
		{hintWalletNotFound, store.ErrWalletNotFound},
		{hintInvalidAmount, store.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			f, client := newFakeHosted(t)
			f.handle(http.MethodPost, "/rest/v1/rpc/request_withdrawal", reply(400,
				`{"code":"P0001","message":"rejected","hint":"`+tt.hint+`"}`))

			_, err := signedInStore(t, client).RequestWithdrawal(context.Background(), store.WithdrawalParams{
				WalletId: "w1", Amount: decimal.NewFromInt(5), ToAddress: "TAddr",
			})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRequestWithdrawal_Success(t *testing.T) {
	f, client := newFakeHosted(t)
	f.handle(http.MethodPost, "/rest/v1/rpc/request_withdrawal", reply(200,
		`{"id":"t1","wallet_id":"w1","type":"withdrawal","amount":5,"status":"pending","tx_hash":null,"to_address":"TAddr"}`))

	tx, err := signedInStore(t, client).RequestWithdrawal(context.Background(), store.WithdrawalParams{
		WalletId: "w1", Amount: decimal.NewFromInt(5), ToAddress: "TAddr",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionPending, tx.Status)
	assert.Nil(t, tx.TxHash)

	var params map[string]any
	require.NoError(t, json.Unmarshal([]byte(f.last().Body), &params))
	assert.Equal(t, "w1", params["p_wallet_id"])
	assert.Equal(t, "5", params["p_amount"])
	assert.Equal(t, "TAddr", params["p_to_address"])
}

func TestRequestWithdrawal_NonPositiveAmountNeverSent(t *testing.T) {
	f, client := newFakeHosted(t)
	_, err := signedInStore(t, client).RequestWithdrawal(context.Background(), store.WithdrawalParams{WalletId: "w1", Amount: decimal.Zero})
	assert.ErrorIs(t, err, store.ErrInvalidAmount)
	assert.Zero(t, f.count())
}

func TestGetWallet_AbsentIsNil(t *testing.T) {
	f, client := newFakeHosted(t)
	f.handle(http.MethodGet, "/rest/v1/crypto_wallets", reply(200, `[]`))

	wallet, err := signedInStore(t, client).GetWallet(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, wallet)
	assert.Equal(t, "eq.u1", f.last().Query["user_id"][0])
}

func TestTransientClassification(t *testing.T) {
	assert.True(t, parseError(nil, 503).Transient())
	assert.True(t, parseError(nil, 429).Transient())
	assert.False(t, parseError([]byte(`{"message":"bad"}`), 400).Transient())
}

func TestFileSessionStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s := NewFileSessionStorage(path)

	session, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, session)

	require.NoError(t, s.Save(&models.Session{AccessToken: "at", User: &models.User{Id: "u1"}}))
	session, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, "u1", session.User.Id)

	require.NoError(t, s.Clear())
	session, err = s.Load()
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestCreateWallet_UniqueViolations(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{
			name: "user already has a wallet",
			body: `{"code":"23505","message":"duplicate key value violates unique constraint \"crypto_wallets_user_id_key\"","details":"Key (user_id)=(u2) already exists."}`,
			want: store.ErrWalletExists,
		},
		{
			name: "address owned by another user",
			body: `{"code":"23505","message":"duplicate key value violates unique constraint \"crypto_wallets_tron_address_key\"","details":"Key (tron_address)=(TXYZ) already exists."}`,
			want: store.ErrAddressInUse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, client := newFakeHosted(t)
			client.admin = true
			f.handle(http.MethodPost, "/rest/v1/crypto_wallets", reply(http.StatusConflict, tt.body))

			wallet, err := NewStore(client, nil).CreateWallet(context.Background(), "u2", "TXYZ")
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, wallet)
		})
	}
}

func TestQueryBuilder_URL(t *testing.T) {
	_, client := newFakeHosted(t)

	q := client.From("virtual_cards").Select("id,status").Eq("user_id", "u 1").Neq("status", "cancelled").Order("created_at", false).Limit(5)
	u := q.buildURL()

	assert.Contains(t, u, "/rest/v1/virtual_cards?select=id%2Cstatus")
	assert.Contains(t, u, "user_id=eq.u+1")
	assert.Contains(t, u, "status=neq.cancelled")
	assert.Contains(t, u, "order=created_at.desc")
	assert.Contains(t, u, "limit=5")
}

func TestQueryBuilder_SingleRequiresRow(t *testing.T) {
	f, client := newFakeHosted(t)
	f.handle(http.MethodGet, "/rest/v1/profiles", reply(200, `[]`))

	var profile models.Profile
	err := client.From("profiles").Select("*").Eq("id", "u1").Single(context.Background(), &profile)
	var herr *Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusNotAcceptable, herr.StatusCode)
}

func TestQueryBuilder_MaybeSingleRejectsMany(t *testing.T) {
	f, client := newFakeHosted(t)
	f.handle(http.MethodGet, "/rest/v1/profiles", reply(200, `[{"id":"a"},{"id":"b"}]`))

	var profile models.Profile
	_, err := client.From("profiles").Select("*").MaybeSingle(context.Background(), &profile)
	assert.Error(t, err)
	assert.Equal(t, "2", f.last().Query["limit"][0])
}
