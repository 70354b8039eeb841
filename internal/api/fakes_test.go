package api

import (
	"context"
	"sort"
	"sync"
	"time"

	"vcard-wallet-go/internal/models"
	"vcard-wallet-go/internal/retry"
	"vcard-wallet-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fastPolicy keeps retry tests quick while preserving the attempt count.
var fastPolicy = retry.Policy{MaxAttempts: 3, Backoff: retry.BackoffConstant, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

type fakeAuth struct {
	mu           sync.Mutex
	users        map[string]string
	session      *models.Session
	sessionErr   error
	sessionCalls int
	signOutErr   error
	confirmEmail bool
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{users: map[string]string{}}
}

func (f *fakeAuth) SignUp(_ context.Context, email, password string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[email] = password
	if f.confirmEmail {
		return nil, nil
	}
	f.session = &models.Session{AccessToken: "token-" + email, User: &models.User{Id: "id-" + email, Email: email}}
	return f.session, nil
}

func (f *fakeAuth) SignIn(_ context.Context, email, password string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pw, ok := f.users[email]; !ok || pw != password {
		return nil, store.ErrInvalidCredentials
	}
	f.session = &models.Session{AccessToken: "token-" + email, User: &models.User{Id: "id-" + email, Email: email}}
	return f.session, nil
}

func (f *fakeAuth) SignOut(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signOutErr != nil {
		return f.signOutErr
	}
	f.session = nil
	return nil
}

func (f *fakeAuth) Session(context.Context) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionCalls++
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return f.session, nil
}

func (f *fakeAuth) signInAs(userId string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = &models.Session{AccessToken: "token-" + userId, User: &models.User{Id: userId, Email: userId + "@x.com"}}
}

type fakeProfiles struct {
	profiles map[string]*models.Profile
	err      error
	calls    int
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: map[string]*models.Profile{}}
}

func (f *fakeProfiles) GetProfile(_ context.Context, userId string) (*models.Profile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[userId]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) UpdateProfile(_ context.Context, userId string, patch models.ProfilePatch) (*models.Profile, error) {
	p, ok := f.profiles[userId]
	if !ok {
		return nil, store.ErrProfileNotFound
	}
	if patch.FullName != nil {
		p.FullName = patch.FullName
	}
	if patch.PhoneNumber != nil {
		p.PhoneNumber = patch.PhoneNumber
	}
	cp := *p
	return &cp, nil
}

type fakeCards struct {
	mu        sync.Mutex
	cards     map[string]*models.VirtualCard
	clock     time.Time
	listErr   error
	insertErr error
	updates   int
}

func newFakeCards() *fakeCards {
	return &fakeCards{cards: map[string]*models.VirtualCard{}, clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeCards) add(userId string, status models.CardStatus) *models.VirtualCard {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(time.Minute)
	c := &models.VirtualCard{Id: uuid.NewString(), UserId: userId, CardToken: uuid.NewString(), Status: status, CreatedAt: f.clock}
	f.cards[c.Id] = c
	return c
}

func (f *fakeCards) ListCards(context.Context) ([]models.VirtualCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.VirtualCard, 0, len(f.cards))
	for _, c := range f.cards {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeCards) GetCard(_ context.Context, cardId string) (*models.VirtualCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cards[cardId]
	if !ok {
		return nil, store.ErrCardNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCards) InsertCard(_ context.Context, params store.InsertCardParams) (*models.VirtualCard, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	c := f.add(params.UserId, models.CardActive)
	f.mu.Lock()
	defer f.mu.Unlock()
	c.CardToken = params.CardToken
	c.CardNumber = params.CardNumber
	c.ExpiryDate = params.ExpiryDate
	cp := *c
	return &cp, nil
}

func (f *fakeCards) UpdateCardStatus(_ context.Context, cardId string, to models.CardStatus) (*models.VirtualCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	c, ok := f.cards[cardId]
	if !ok {
		return nil, store.ErrCardNotFound
	}
	if c.Status == models.CardCancelled {
		return nil, store.ErrCardCancelled
	}
	if !c.Status.CanTransitionTo(to) {
		return nil, store.ErrInvalidCardTransition
	}
	c.Status = to
	cp := *c
	return &cp, nil
}

type fakeIssuer struct {
	card  *models.IssuedCard
	err   error
	calls int
}

func (f *fakeIssuer) CreateCard(_ context.Context, _, _ string) (*models.IssuedCard, error) {
	f.calls++
	return f.card, f.err
}

type fakeWallets struct {
	wallet      *models.CryptoWallet
	txs         []models.CryptoTransaction
	withdrawErr error
	writes      int
}

func (f *fakeWallets) GetWallet(_ context.Context, userId string) (*models.CryptoWallet, error) {
	if f.wallet == nil || f.wallet.UserId != userId {
		return nil, nil
	}
	cp := *f.wallet
	return &cp, nil
}

func (f *fakeWallets) ListTransactions(_ context.Context, walletId string) ([]models.CryptoTransaction, error) {
	if f.wallet == nil || f.wallet.Id != walletId {
		return nil, nil
	}
	out := make([]models.CryptoTransaction, len(f.txs))
	for i := range f.txs {
		out[len(f.txs)-1-i] = f.txs[i]
	}
	return out, nil
}

func (f *fakeWallets) CreateDeposit(_ context.Context, walletId string, amount decimal.Decimal) (*models.CryptoTransaction, error) {
	f.writes++
	tx := models.CryptoTransaction{Id: uuid.NewString(), WalletId: walletId, Type: models.TransactionDeposit, Amount: amount, Status: models.TransactionPending}
	f.txs = append(f.txs, tx)
	return &tx, nil
}

func (f *fakeWallets) RequestWithdrawal(_ context.Context, params store.WithdrawalParams) (*models.CryptoTransaction, error) {
	f.writes++
	if f.withdrawErr != nil {
		return nil, f.withdrawErr
	}
	to := params.ToAddress
	tx := models.CryptoTransaction{Id: uuid.NewString(), WalletId: params.WalletId, Type: models.TransactionWithdrawal, Amount: params.Amount, Status: models.TransactionPending, ToAddress: &to}
	f.txs = append(f.txs, tx)
	return &tx, nil
}
