package common

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"vcard-wallet-go/internal/models"
	"vcard-wallet-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tronAddress = "TXYZopYRdj2D9XRtbG411XZZ3kM5VkAeBf"

type stubAdmin struct {
	summaries []models.WalletSummary
	users     map[string]string
	wallets   map[string]string
	err       error
}

func newStubAdmin() *stubAdmin {
	return &stubAdmin{users: map[string]string{}, wallets: map[string]string{}}
}

func (s *stubAdmin) CreateWallet(_ context.Context, userId, tronAddress string) (*models.CryptoWallet, error) {
	if _, ok := s.wallets[userId]; ok {
		return nil, store.ErrWalletExists
	}
	for _, addr := range s.wallets {
		if addr == tronAddress {
			return nil, store.ErrAddressInUse
		}
	}
	s.wallets[userId] = tronAddress
	return &models.CryptoWallet{Id: "w-" + userId, UserId: userId, TronAddress: tronAddress}, nil
}

func (s *stubAdmin) ListWallets(context.Context) ([]models.WalletSummary, error) {
	return s.summaries, s.err
}

func (s *stubAdmin) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	id, ok := s.users[email]
	if !ok {
		return nil, errors.New("no user with email " + email)
	}
	return &models.User{Id: id, Email: email}, nil
}

func TestSelectWallets(t *testing.T) {
	admin := newStubAdmin()
	admin.summaries = []models.WalletSummary{
		{Wallet: models.CryptoWallet{Id: "w1"}, Email: "a@x.com"},
		{Wallet: models.CryptoWallet{Id: "w2"}, Email: "b@x.com"},
	}
	ctx := context.Background()

	all, err := SelectWallets(ctx, admin, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := SelectWallets(ctx, admin, "B@X.com")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "w2", one[0].Wallet.Id)

	_, err = SelectWallets(ctx, admin, "c@x.com")
	assert.ErrorIs(t, err, store.ErrWalletNotFound)

	admin.err = errors.New("down")
	_, err = SelectWallets(ctx, admin, "")
	assert.Error(t, err)
}

func TestProvisionWallet(t *testing.T) {
	admin := newStubAdmin()
	admin.users["a@x.com"] = "u1"
	ctx := context.Background()

	wallet, existed, err := ProvisionWallet(ctx, admin, WalletAssignment{Email: "a@x.com", TronAddress: tronAddress})
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, "u1", wallet.UserId)

	wallet, existed, err = ProvisionWallet(ctx, admin, WalletAssignment{Email: "a@x.com", TronAddress: tronAddress})
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Nil(t, wallet)

	_, _, err = ProvisionWallet(ctx, admin, WalletAssignment{Email: "nobody@x.com", TronAddress: tronAddress})
	assert.ErrorContains(t, err, "not found")

	_, _, err = ProvisionWallet(ctx, admin, WalletAssignment{Email: "a@x.com", TronAddress: "0xabc"})
	assert.ErrorContains(t, err, "invalid TRON address")
}

func TestProvisionWallet_AddressInUse(t *testing.T) {
	admin := newStubAdmin()
	admin.users["a@x.com"] = "u1"
	admin.users["b@x.com"] = "u2"
	ctx := context.Background()

	_, _, err := ProvisionWallet(ctx, admin, WalletAssignment{Email: "a@x.com", TronAddress: tronAddress})
	require.NoError(t, err)

	wallet, existed, err := ProvisionWallet(ctx, admin, WalletAssignment{Email: "b@x.com", TronAddress: tronAddress})
	assert.ErrorIs(t, err, store.ErrAddressInUse)
	assert.ErrorContains(t, err, "b@x.com")
	assert.False(t, existed)
	assert.Nil(t, wallet)
	assert.NotContains(t, admin.wallets, "u2")
}

func TestLoadWalletAssignments(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "wallets.yaml")
	require.NoError(t, os.WriteFile(good, []byte("wallets:\n  - email: a@x.com\n    tron_address: "+tronAddress+"\n"), 0o600))
	assignments, err := LoadWalletAssignments(good)
	require.NoError(t, err)
	assert.Equal(t, []WalletAssignment{{Email: "a@x.com", TronAddress: tronAddress}}, assignments)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("wallets:\n  - email: a@x.com\n    tron_address: nope\n"), 0o600))
	_, err = LoadWalletAssignments(bad)
	assert.ErrorContains(t, err, "index 0")

	_, err = LoadWalletAssignments(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)
}
