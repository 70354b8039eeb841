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

package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"vcard-wallet-go/internal/models"
	"vcard-wallet-go/internal/store"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// SelectWallets returns the wallet summaries for command-line reports.
// If emailFilter is provided, only the wallet owned by that email is returned.
func SelectWallets(ctx context.Context, admin store.WalletAdmin, emailFilter string) ([]models.WalletSummary, error) {
	all, err := admin.ListWallets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	if emailFilter == "" {
		zap.L().Info("Retrieved wallets", zap.Int("count", len(all)))
		return all, nil
	}

	zap.L().Info("Looking up wallet by email", zap.String("email", emailFilter))
	for _, w := range all {
		if strings.EqualFold(w.Email, emailFilter) {
			return []models.WalletSummary{w}, nil
		}
	}
	return nil, fmt.Errorf("no wallet for %s: %w", emailFilter, store.ErrWalletNotFound)
}

// WalletAssignment binds a TRON deposit address to a user's account.
type WalletAssignment struct {
	Email       string `yaml:"email"`
	TronAddress string `yaml:"tron_address"`
}

// LoadWalletAssignments reads a YAML list of assignments, validating each entry.
func LoadWalletAssignments(path string) ([]WalletAssignment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}

	var doc struct {
		Wallets []WalletAssignment `yaml:"wallets"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", path, err)
	}

	for i, w := range doc.Wallets {
		if w.Email == "" {
			return nil, fmt.Errorf("wallet at index %d missing email", i)
		}
		if !models.ValidTronAddress(w.TronAddress) {
			return nil, fmt.Errorf("wallet at index %d has invalid TRON address %q", i, w.TronAddress)
		}
	}
	return doc.Wallets, nil
}

// ProvisionWallet creates the wallet for the assignment's user. existed is
// true when the user already had a wallet, which is left untouched.
func ProvisionWallet(ctx context.Context, admin store.WalletAdmin, a WalletAssignment) (wallet *models.CryptoWallet, existed bool, err error) {
	if !models.ValidTronAddress(a.TronAddress) {
		return nil, false, fmt.Errorf("invalid TRON address %q", a.TronAddress)
	}

	user, err := admin.FindUserByEmail(ctx, a.Email)
	if err != nil {
		return nil, false, fmt.Errorf("user %s not found: %w", a.Email, err)
	}

	wallet, err = admin.CreateWallet(ctx, user.Id, a.TronAddress)
	if errors.Is(err, store.ErrWalletExists) {
		zap.L().Info("User already has a wallet", zap.String("user_id", user.Id), zap.String("email", a.Email))
		return nil, true, nil
	}
	if errors.Is(err, store.ErrAddressInUse) {
		return nil, false, fmt.Errorf("address %s cannot be assigned to %s: %w", a.TronAddress, a.Email, err)
	}
	if err != nil {
		return nil, false, err
	}

	zap.L().Info("Wallet provisioned",
		zap.String("user_id", user.Id),
		zap.String("wallet_id", wallet.Id),
		zap.String("tron_address", wallet.TronAddress))
	return wallet, false, nil
}
