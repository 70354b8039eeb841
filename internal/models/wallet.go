package models

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// CryptoWallet is a user's USDT wallet on the TRON network
type CryptoWallet struct {
	Id          string          `json:"id" db:"id"`
	UserId      string          `json:"user_id" db:"user_id"`
	TronAddress string          `json:"tron_address" db:"tron_address"`
	UsdtBalance decimal.Decimal `json:"usdt_balance" db:"usdt_balance"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

var tronAddressPattern = regexp.MustCompile(`^T[1-9A-HJ-NP-Za-km-z]{33}$`)

// ValidTronAddress reports whether addr has the shape of a base58 TRON address
func ValidTronAddress(addr string) bool {
	return tronAddressPattern.MatchString(addr)
}

type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// CryptoTransaction is a deposit or withdrawal request against a wallet.
// TxHash stays nil until settlement records the on-chain hash.
type CryptoTransaction struct {
	Id        string            `json:"id" db:"id"`
	WalletId  string            `json:"wallet_id" db:"wallet_id"`
	Type      TransactionType   `json:"type" db:"type"`
	Amount    decimal.Decimal   `json:"amount" db:"amount"`
	Status    TransactionStatus `json:"status" db:"status"`
	TxHash    *string           `json:"tx_hash" db:"tx_hash"`
	ToAddress *string           `json:"to_address,omitempty" db:"to_address"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}

// WalletSummary is an admin view of a wallet with its pending withdrawal total
type WalletSummary struct {
	Wallet             CryptoWallet
	Email              string
	PendingDeposits    decimal.Decimal
	PendingWithdrawals decimal.Decimal
	TransactionCount   int
}

// Available is the balance left after pending withdrawals are reserved
func (w WalletSummary) Available() decimal.Decimal {
	return w.Wallet.UsdtBalance.Sub(w.PendingWithdrawals)
}
