package store

import (
	"context"
	"errors"

	"vcard-wallet-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotLoggedIn            = errors.New("no user logged in")
	ErrInvalidCredentials     = errors.New("invalid login credentials")
	ErrProfileNotFound        = errors.New("profile not found")
	ErrCardNotFound           = errors.New("card not found")
	ErrCardCancelled          = errors.New("card is cancelled")
	ErrInvalidCardTransition  = errors.New("invalid card status transition")
	ErrWalletNotFound         = errors.New("wallet not found")
	ErrWalletExists           = errors.New("wallet already exists")
	ErrAddressInUse           = errors.New("address already assigned to another wallet")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInvalidAmount          = errors.New("amount must be greater than zero")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// InsertCardParams contains the fields stored for a newly issued card.
type InsertCardParams struct {
	UserId     string
	CardToken  string
	CardNumber string
	ExpiryDate string
}

// WithdrawalParams contains the parameters of a withdrawal request.
type WithdrawalParams struct {
	WalletId  string
	Amount    decimal.Decimal
	ToAddress string
}

// Authenticator is the hosted identity provider as seen by the client.
type Authenticator interface {
	// SignUp returns a nil session when the account still awaits email confirmation.
	SignUp(ctx context.Context, email, password string) (*models.Session, error)
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignOut(ctx context.Context) error
	// Session returns the current session, or nil when signed out.
	Session(ctx context.Context) (*models.Session, error)
}

type ProfileStore interface {
	// GetProfile returns nil without error when no profile row exists.
	GetProfile(ctx context.Context, userId string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userId string, patch models.ProfilePatch) (*models.Profile, error)
}

// CardStore persists virtual card records visible to the current session.
type CardStore interface {
	ListCards(ctx context.Context) ([]models.VirtualCard, error)
	GetCard(ctx context.Context, cardId string) (*models.VirtualCard, error)
	InsertCard(ctx context.Context, params InsertCardParams) (*models.VirtualCard, error)
	// UpdateCardStatus applies the change only when the stored status may
	// transition to the target, returning ErrCardCancelled or
	// ErrInvalidCardTransition otherwise.
	UpdateCardStatus(ctx context.Context, cardId string, to models.CardStatus) (*models.VirtualCard, error)
}

// WalletStore persists the wallet and its transaction requests.
type WalletStore interface {
	// GetWallet returns nil without error when the user has no wallet.
	GetWallet(ctx context.Context, userId string) (*models.CryptoWallet, error)
	ListTransactions(ctx context.Context, walletId string) ([]models.CryptoTransaction, error)
	CreateDeposit(ctx context.Context, walletId string, amount decimal.Decimal) (*models.CryptoTransaction, error)
	// RequestWithdrawal checks the available balance and records the pending
	// withdrawal atomically.
	RequestWithdrawal(ctx context.Context, params WithdrawalParams) (*models.CryptoTransaction, error)
}

// WalletAdmin is the out-of-band provisioning and reporting surface.
type WalletAdmin interface {
	CreateWallet(ctx context.Context, userId, tronAddress string) (*models.CryptoWallet, error)
	ListWallets(ctx context.Context) ([]models.WalletSummary, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Backend is everything the client state containers need from one backend.
type Backend interface {
	Authenticator
	ProfileStore
	CardStore
	WalletStore

	Close()
}
