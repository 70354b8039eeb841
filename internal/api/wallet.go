package api

import (
	"context"
	"errors"
	"strings"
	"sync"

	"vcard-wallet-go/internal/models"
	"vcard-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WalletState struct {
	Wallet       *models.CryptoWallet
	Transactions []models.CryptoTransaction
	Loading      bool
	Error        string
}

// WalletService caches the signed-in user's wallet and its transactions.
// Pending transactions are settled elsewhere; nothing here completes them.
type WalletService struct {
	wallets store.WalletStore
	auth    store.Authenticator

	mu    sync.RWMutex
	state WalletState
}

func NewWalletService(wallets store.WalletStore, auth store.Authenticator) *WalletService {
	return &WalletService{wallets: wallets, auth: auth}
}

func (s *WalletService) State() WalletState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	out.Transactions = append([]models.CryptoTransaction(nil), s.state.Transactions...)
	return out
}

func (s *WalletService) begin() {
	s.mu.Lock()
	s.state.Loading = true
	s.state.Error = ""
	s.mu.Unlock()
}

func (s *WalletService) end(err error, fallback string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = false
	if err != nil {
		s.state.Error = describe(err, fallback)
	}
	return err
}

func (s *WalletService) wallet() *models.CryptoWallet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Wallet
}

// FetchWallet loads the signed-in user's wallet, if one was provisioned.
func (s *WalletService) FetchWallet(ctx context.Context) error {
	s.begin()
	err := s.fetchWallet(ctx)
	if errors.Is(err, store.ErrNotLoggedIn) {
		s.mu.Lock()
		s.state.Loading = false
		s.state.Error = MsgWalletSignIn
		s.mu.Unlock()
		return err
	}
	return s.end(err, "Failed to fetch wallet")
}

func (s *WalletService) fetchWallet(ctx context.Context) error {
	session, err := s.auth.Session(ctx)
	if err != nil {
		return err
	}
	if session == nil || session.User == nil {
		return store.ErrNotLoggedIn
	}

	wallet, err := s.wallets.GetWallet(ctx, session.User.Id)
	if err != nil {
		zap.L().Error("Wallet fetch error", zap.String("user_id", session.User.Id), zap.Error(err))
		return err
	}
	s.mu.Lock()
	s.state.Wallet = wallet
	s.mu.Unlock()
	return nil
}

// FetchTransactions loads the cached wallet's transactions, newest first.
func (s *WalletService) FetchTransactions(ctx context.Context) error {
	s.begin()
	return s.end(s.fetchTransactions(ctx), "Failed to fetch transactions")
}

func (s *WalletService) fetchTransactions(ctx context.Context) error {
	wallet := s.wallet()
	if wallet == nil {
		s.mu.Lock()
		s.state.Transactions = nil
		s.mu.Unlock()
		return nil
	}

	txs, err := s.wallets.ListTransactions(ctx, wallet.Id)
	if err != nil {
		zap.L().Error("Transactions fetch error", zap.String("wallet_id", wallet.Id), zap.Error(err))
		return err
	}
	s.mu.Lock()
	s.state.Transactions = txs
	s.mu.Unlock()
	return nil
}

// refresh reloads transactions and then the wallet after a write.
func (s *WalletService) refresh(ctx context.Context) error {
	if err := s.fetchTransactions(ctx); err != nil {
		return err
	}
	return s.fetchWallet(ctx)
}

// InitiateDeposit records a pending deposit request.
func (s *WalletService) InitiateDeposit(ctx context.Context, amount decimal.Decimal) (*models.CryptoTransaction, error) {
	s.begin()
	tx, err := s.initiateDeposit(ctx, amount)
	return tx, s.end(err, "Failed to initiate deposit")
}

func (s *WalletService) initiateDeposit(ctx context.Context, amount decimal.Decimal) (*models.CryptoTransaction, error) {
	wallet := s.wallet()
	if wallet == nil {
		return nil, store.ErrWalletNotFound
	}
	if !amount.IsPositive() {
		return nil, store.ErrInvalidAmount
	}

	tx, err := s.wallets.CreateDeposit(ctx, wallet.Id, amount)
	if err != nil {
		zap.L().Error("Deposit error", zap.String("wallet_id", wallet.Id), zap.Error(err))
		return nil, err
	}
	zap.L().Info("Deposit initiated",
		zap.String("wallet_id", wallet.Id),
		zap.String("transaction_id", tx.Id),
		zap.String("amount", amount.String()))

	return tx, s.refresh(ctx)
}

// InitiateWithdrawal records a pending withdrawal to toAddress. The cached
// balance gives an early answer; the store makes the authoritative check
// against the balance net of pending withdrawals.
func (s *WalletService) InitiateWithdrawal(ctx context.Context, amount decimal.Decimal, toAddress string) (*models.CryptoTransaction, error) {
	s.begin()
	tx, err := s.initiateWithdrawal(ctx, amount, strings.TrimSpace(toAddress))
	return tx, s.end(err, "Failed to initiate withdrawal")
}

func (s *WalletService) initiateWithdrawal(ctx context.Context, amount decimal.Decimal, toAddress string) (*models.CryptoTransaction, error) {
	wallet := s.wallet()
	if wallet == nil {
		return nil, store.ErrWalletNotFound
	}
	if !amount.IsPositive() {
		return nil, store.ErrInvalidAmount
	}
	if amount.GreaterThan(wallet.UsdtBalance) {
		return nil, store.ErrInsufficientBalance
	}
	if err := validateInput(withdrawalInput{ToAddress: toAddress}); err != nil {
		return nil, err
	}

	tx, err := s.wallets.RequestWithdrawal(ctx, store.WithdrawalParams{
		WalletId:  wallet.Id,
		Amount:    amount,
		ToAddress: toAddress,
	})
	if err != nil {
		zap.L().Warn("Withdrawal error",
			zap.String("wallet_id", wallet.Id),
			zap.String("amount", amount.String()),
			zap.Error(err))
		return nil, err
	}
	zap.L().Info("Withdrawal initiated",
		zap.String("wallet_id", wallet.Id),
		zap.String("transaction_id", tx.Id),
		zap.String("amount", amount.String()),
		zap.String("to_address", toAddress))

	return tx, s.refresh(ctx)
}
