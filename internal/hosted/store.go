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

package hosted

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vcard-wallet-go/internal/models"
	"vcard-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time checks: *Store must satisfy the store contracts.
var (
	_ store.Backend     = (*Store)(nil)
	_ store.WalletAdmin = (*Store)(nil)
)

const (
	tableProfiles     = "profiles"
	tableCards        = "virtual_cards"
	tableWallets      = "crypto_wallets"
	tableTransactions = "crypto_transactions"
	fnWithdrawal      = "request_withdrawal"
)

// Hints raised by the schema's functions and triggers.
const (
	hintInsufficientBalance = "insufficient_balance"
	hintWalletNotFound      = "wallet_not_found"
	hintInvalidAmount       = "invalid_amount"
	hintCardCancelled       = "card_cancelled"
	sqlStateUniqueViolation = "23505"
)

// Store is the hosted implementation of the client storage contracts.
// Every user-scoped call runs with the current session's access token.
type Store struct {
	client   *Client
	auth     *AuthClient
	sessions SessionStorage
	now      func() time.Time
}

func NewStore(client *Client, sessions SessionStorage) *Store {
	if sessions == nil {
		sessions = NewMemorySessionStorage()
	}
	return &Store{
		client:   client,
		auth:     client.Auth(),
		sessions: sessions,
		now:      time.Now,
	}
}

func (s *Store) Close() {}

// --- Auth ---

func (s *Store) SignUp(ctx context.Context, email, password string) (*models.Session, error) {
	session, user, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	if session == nil {
		zap.L().Info("Sign up pending email confirmation", zap.String("user_id", user.Id))
		return nil, nil
	}
	if err := s.sessions.Save(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Store) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	session, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		var herr *Error
		if errors.As(err, &herr) && herr.StatusCode == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %s", store.ErrInvalidCredentials, herr.Message)
		}
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if err := s.sessions.Save(session); err != nil {
		return nil, err
	}
	return session, nil
}

// SignOut revokes the session remotely when possible and always forgets it locally.
func (s *Store) SignOut(ctx context.Context) error {
	session, err := s.sessions.Load()
	if err != nil {
		return err
	}
	if session != nil {
		if err := s.auth.SignOut(ctx, session.AccessToken); err != nil {
			zap.L().Warn("Remote sign out failed", zap.Error(err))
		}
	}
	return s.sessions.Clear()
}

// Session returns the stored session, refreshing it when the access token has
// expired. A rejected refresh token signs the user out.
func (s *Store) Session(ctx context.Context) (*models.Session, error) {
	session, err := s.sessions.Load()
	if err != nil || session == nil {
		return nil, err
	}
	if !session.Expired(s.now()) {
		return session, nil
	}

	refreshed, err := s.auth.RefreshToken(ctx, session.RefreshToken)
	if err != nil {
		var herr *Error
		if errors.As(err, &herr) && !herr.Transient() {
			zap.L().Info("Session refresh rejected, signing out", zap.Error(err))
			return nil, s.sessions.Clear()
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	if err := s.sessions.Save(refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

func (s *Store) token(ctx context.Context) (string, error) {
	if s.client.Admin() {
		return "", nil
	}
	session, err := s.Session(ctx)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", store.ErrNotLoggedIn
	}
	return session.AccessToken, nil
}

// --- Profiles ---

func (s *Store) GetProfile(ctx context.Context, userId string) (*models.Profile, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	var profile models.Profile
	found, err := s.client.From(tableProfiles).Select("*").Eq("id", userId).WithToken(token).MaybeSingle(ctx, &profile)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &profile, nil
}

func (s *Store) UpdateProfile(ctx context.Context, userId string, patch models.ProfilePatch) (*models.Profile, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	update := map[string]any{"updated_at": s.now().UTC()}
	if patch.FullName != nil {
		update["full_name"] = *patch.FullName
	}
	if patch.PhoneNumber != nil {
		update["phone_number"] = *patch.PhoneNumber
	}

	var rows []models.Profile
	if err := s.client.From(tableProfiles).Update(update).Eq("id", userId).WithToken(token).ExecuteInto(ctx, &rows); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, store.ErrProfileNotFound
	}
	return &rows[0], nil
}

// --- Cards ---

func (s *Store) ListCards(ctx context.Context) ([]models.VirtualCard, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	var cards []models.VirtualCard
	if err := s.client.From(tableCards).Select("*").Order("created_at", false).WithToken(token).ExecuteInto(ctx, &cards); err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return cards, nil
}

func (s *Store) GetCard(ctx context.Context, cardId string) (*models.VirtualCard, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	var card models.VirtualCard
	found, err := s.client.From(tableCards).Select("*").Eq("id", cardId).WithToken(token).MaybeSingle(ctx, &card)
	if err != nil {
		return nil, fmt.Errorf("get card: %w", err)
	}
	if !found {
		return nil, store.ErrCardNotFound
	}
	return &card, nil
}

func (s *Store) InsertCard(ctx context.Context, params store.InsertCardParams) (*models.VirtualCard, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	row := map[string]any{
		"user_id":     params.UserId,
		"card_token":  params.CardToken,
		"card_number": params.CardNumber,
		"expiry_date": params.ExpiryDate,
		"status":      models.CardActive,
	}
	var card models.VirtualCard
	if err := s.client.From(tableCards).Insert(row).WithToken(token).Single(ctx, &card); err != nil {
		return nil, fmt.Errorf("insert card: %w", err)
	}
	return &card, nil
}

// UpdateCardStatus patches only rows whose current status may move to the
// target, so a concurrent cancel can never be overwritten.
func (s *Store) UpdateCardStatus(ctx context.Context, cardId string, to models.CardStatus) (*models.VirtualCard, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}

	sources := models.TransitionSources(to)
	if len(sources) == 0 {
		return nil, store.ErrInvalidCardTransition
	}
	allowed := make([]string, len(sources))
	for i, st := range sources {
		allowed[i] = string(st)
	}

	var rows []models.VirtualCard
	err = s.client.From(tableCards).
		Update(map[string]any{"status": to, "updated_at": s.now().UTC()}).
		Eq("id", cardId).
		In("status", allowed...).
		WithToken(token).
		ExecuteInto(ctx, &rows)
	if err != nil {
		var herr *Error
		if errors.As(err, &herr) && herr.Hint == hintCardCancelled {
			return nil, store.ErrCardCancelled
		}
		return nil, fmt.Errorf("update card status: %w", err)
	}
	if len(rows) > 0 {
		return &rows[0], nil
	}

	current, err := s.GetCard(ctx, cardId)
	if err != nil {
		return nil, err
	}
	if current.Status == models.CardCancelled {
		return nil, store.ErrCardCancelled
	}
	return nil, store.ErrInvalidCardTransition
}

// --- Wallets ---

func (s *Store) GetWallet(ctx context.Context, userId string) (*models.CryptoWallet, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	var wallet models.CryptoWallet
	found, err := s.client.From(tableWallets).Select("*").Eq("user_id", userId).WithToken(token).MaybeSingle(ctx, &wallet)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &wallet, nil
}

func (s *Store) ListTransactions(ctx context.Context, walletId string) ([]models.CryptoTransaction, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	var txs []models.CryptoTransaction
	err = s.client.From(tableTransactions).Select("*").
		Eq("wallet_id", walletId).
		Order("created_at", false).
		WithToken(token).
		ExecuteInto(ctx, &txs)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *Store) CreateDeposit(ctx context.Context, walletId string, amount decimal.Decimal) (*models.CryptoTransaction, error) {
	if !amount.IsPositive() {
		return nil, store.ErrInvalidAmount
	}
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	row := map[string]any{
		"wallet_id": walletId,
		"type":      models.TransactionDeposit,
		"amount":    amount,
		"status":    models.TransactionPending,
	}
	var deposit models.CryptoTransaction
	if err := s.client.From(tableTransactions).Insert(row).WithToken(token).Single(ctx, &deposit); err != nil {
		return nil, fmt.Errorf("create deposit: %w", err)
	}
	return &deposit, nil
}

// RequestWithdrawal delegates to a database function that locks the wallet,
// checks the available balance and inserts the pending withdrawal.
func (s *Store) RequestWithdrawal(ctx context.Context, params store.WithdrawalParams) (*models.CryptoTransaction, error) {
	if !params.Amount.IsPositive() {
		return nil, store.ErrInvalidAmount
	}
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := s.client.RPC(ctx, fnWithdrawal, map[string]any{
		"p_wallet_id":  params.WalletId,
		"p_amount":     params.Amount,
		"p_to_address": params.ToAddress,
	}, token)
	if err != nil {
		var herr *Error
		if errors.As(err, &herr) {
			switch herr.Hint {
			case hintInsufficientBalance:
				return nil, store.ErrInsufficientBalance
			case hintWalletNotFound:
				return nil, store.ErrWalletNotFound
			case hintInvalidAmount:
				return nil, store.ErrInvalidAmount
			}
		}
		return nil, fmt.Errorf("request withdrawal: %w", err)
	}

	var tx models.CryptoTransaction
	if err := json.Unmarshal(body, &tx); err != nil {
		return nil, fmt.Errorf("decode withdrawal: %w", err)
	}
	return &tx, nil
}

// --- Admin ---

func (s *Store) CreateWallet(ctx context.Context, userId, tronAddress string) (*models.CryptoWallet, error) {
	if !s.client.Admin() {
		return nil, fmt.Errorf("creating wallets requires the service role key")
	}
	row := map[string]any{
		"user_id":      userId,
		"tron_address": tronAddress,
		"usdt_balance": decimal.Zero,
	}
	var rows []models.CryptoWallet
	if err := s.client.From(tableWallets).Insert(row).ExecuteInto(ctx, &rows); err != nil {
		var herr *Error
		if errors.As(err, &herr) && herr.Code == sqlStateUniqueViolation {
			// Both user_id and tron_address are unique; the key in the
			// message tells which one collided.
			if strings.Contains(herr.Message+" "+herr.Details, "tron_address") {
				return nil, store.ErrAddressInUse
			}
			return nil, store.ErrWalletExists
		}
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create wallet: no row returned")
	}
	return &rows[0], nil
}

type walletWithTransactions struct {
	models.CryptoWallet
	Transactions []models.CryptoTransaction `json:"crypto_transactions"`
}

func (s *Store) ListWallets(ctx context.Context) ([]models.WalletSummary, error) {
	if !s.client.Admin() {
		return nil, fmt.Errorf("listing wallets requires the service role key")
	}

	var wallets []walletWithTransactions
	err := s.client.From(tableWallets).
		Select("*,crypto_transactions(id,type,amount,status)").
		Order("created_at", true).
		ExecuteInto(ctx, &wallets)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	if len(wallets) == 0 {
		return nil, nil
	}

	ids := make([]string, len(wallets))
	for i, w := range wallets {
		ids[i] = w.UserId
	}
	var profiles []models.Profile
	if err := s.client.From(tableProfiles).Select("id,email").In("id", ids...).ExecuteInto(ctx, &profiles); err != nil {
		return nil, fmt.Errorf("list wallet owners: %w", err)
	}
	emails := make(map[string]string, len(profiles))
	for _, p := range profiles {
		emails[p.Id] = p.Email
	}

	out := make([]models.WalletSummary, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, summarize(w.CryptoWallet, emails[w.UserId], w.Transactions))
	}
	return out, nil
}

func summarize(wallet models.CryptoWallet, email string, txs []models.CryptoTransaction) models.WalletSummary {
	summary := models.WalletSummary{
		Wallet:             wallet,
		Email:              email,
		PendingDeposits:    decimal.Zero,
		PendingWithdrawals: decimal.Zero,
		TransactionCount:   len(txs),
	}
	for _, tx := range txs {
		if tx.Status != models.TransactionPending {
			continue
		}
		switch tx.Type {
		case models.TransactionDeposit:
			summary.PendingDeposits = summary.PendingDeposits.Add(tx.Amount)
		case models.TransactionWithdrawal:
			summary.PendingWithdrawals = summary.PendingWithdrawals.Add(tx.Amount)
		}
	}
	return summary
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	var profile models.Profile
	found, err := s.client.From(tableProfiles).Select("id,email,created_at").
		Eq("email", strings.ToLower(email)).
		WithToken(token).
		MaybeSingle(ctx, &profile)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("no user with email %s", email)
	}
	return &models.User{Id: profile.Id, Email: profile.Email, CreatedAt: profile.CreatedAt}, nil
}
