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

package database

const (
	// User queries
	queryInsertUser = `
		INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`

	queryGetUserCredentials = `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE email = ?`

	queryGetUserByEmail = `
		SELECT id, email, created_at
		FROM users
		WHERE email = ?`

	// Profile queries
	queryInsertProfile = `
		INSERT INTO profiles (id, email, kyc_status, created_at, updated_at)
		VALUES (?, ?, 'pending', ?, ?)`

	queryGetProfile = `
		SELECT id, email, full_name, phone_number, kyc_status, created_at, updated_at
		FROM profiles
		WHERE id = ?`

	queryUpdateProfile = `
		UPDATE profiles
		SET full_name = COALESCE(?, full_name),
		    phone_number = COALESCE(?, phone_number),
		    updated_at = ?
		WHERE id = ?`

	// Card queries
	queryListCards = `
		SELECT id, user_id, card_token, card_number, expiry_date, status, balance, created_at, updated_at
		FROM virtual_cards
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`

	queryGetCard = `
		SELECT id, user_id, card_token, card_number, expiry_date, status, balance, created_at, updated_at
		FROM virtual_cards
		WHERE id = ? AND user_id = ?`

	queryInsertCard = `
		INSERT INTO virtual_cards (id, user_id, card_token, card_number, expiry_date, status, balance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'active', '0', ?, ?)
		RETURNING id, user_id, card_token, card_number, expiry_date, status, balance, created_at, updated_at`

	// queryUpdateCardStatus is completed with one placeholder per allowed source status.
	queryUpdateCardStatus = `
		UPDATE virtual_cards
		SET status = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND status IN (%s)
		RETURNING id, user_id, card_token, card_number, expiry_date, status, balance, created_at, updated_at`

	// Wallet queries
	queryGetWalletByUser = `
		SELECT id, user_id, tron_address, usdt_balance, created_at, updated_at
		FROM crypto_wallets
		WHERE user_id = ?`

	queryGetWalletForUpdate = `
		SELECT usdt_balance, version
		FROM crypto_wallets
		WHERE id = ? AND user_id = ?`

	queryBumpWalletVersion = `
		UPDATE crypto_wallets
		SET version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	queryInsertWallet = `
		INSERT INTO crypto_wallets (id, user_id, tron_address, usdt_balance, created_at, updated_at)
		VALUES (?, ?, ?, '0', ?, ?)
		RETURNING id, user_id, tron_address, usdt_balance, created_at, updated_at`

	queryListWallets = `
		SELECT w.id, w.user_id, w.tron_address, w.usdt_balance, w.created_at, w.updated_at, COALESCE(p.email, '')
		FROM crypto_wallets w
		LEFT JOIN profiles p ON p.id = w.user_id
		ORDER BY w.created_at`

	queryWalletTransactionTotals = `
		SELECT type, status, amount
		FROM crypto_transactions
		WHERE wallet_id = ?`

	// Transaction queries
	queryListTransactions = `
		SELECT t.id, t.wallet_id, t.type, t.amount, t.status, t.tx_hash, t.to_address, t.created_at, t.updated_at
		FROM crypto_transactions t
		JOIN crypto_wallets w ON w.id = t.wallet_id
		WHERE t.wallet_id = ? AND w.user_id = ?
		ORDER BY t.created_at DESC, t.rowid DESC`

	queryWalletOwned = `
		SELECT 1 FROM crypto_wallets WHERE id = ? AND user_id = ?`

	queryPendingWithdrawals = `
		SELECT amount
		FROM crypto_transactions
		WHERE wallet_id = ? AND type = 'withdrawal' AND status = 'pending'`

	queryInsertTransaction = `
		INSERT INTO crypto_transactions (id, wallet_id, type, amount, status, to_address, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'pending', ?, ?, ?)
		RETURNING id, wallet_id, type, amount, status, tx_hash, to_address, created_at, updated_at`
)
