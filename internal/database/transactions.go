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

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vcard-wallet-go/internal/models"
	"vcard-wallet-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func scanTransaction(row rowScanner) (*models.CryptoTransaction, error) {
	var t models.CryptoTransaction
	var txHash, toAddress sql.NullString
	if err := row.Scan(&t.Id, &t.WalletId, &t.Type, &t.Amount, &t.Status,
		&txHash, &toAddress, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.TxHash = stringPtr(txHash)
	t.ToAddress = stringPtr(toAddress)
	return &t, nil
}

// ListTransactions returns the wallet's transactions, newest first. Wallets
// owned by another user read as empty.
func (s *Service) ListTransactions(ctx context.Context, walletId string) ([]models.CryptoTransaction, error) {
	userId, err := s.currentUserId()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, queryListTransactions, walletId, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer closeRows(rows)

	var transactions []models.CryptoTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return transactions, nil
}

func (s *Service) CreateDeposit(ctx context.Context, walletId string, amount decimal.Decimal) (*models.CryptoTransaction, error) {
	if !amount.IsPositive() {
		return nil, store.ErrInvalidAmount
	}
	userId, err := s.currentUserId()
	if err != nil {
		return nil, err
	}

	var owned int
	err = s.db.QueryRowContext(ctx, queryWalletOwned, walletId, userId).Scan(&owned)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check wallet: %w", err)
	}

	now := s.timestamp()
	deposit, err := scanTransaction(s.db.QueryRowContext(ctx, queryInsertTransaction,
		uuid.New().String(), walletId, models.TransactionDeposit, amount, nil, now, now))
	if err != nil {
		return nil, fmt.Errorf("failed to insert deposit: %w", err)
	}

	zap.L().Info("Deposit requested",
		zap.String("wallet_id", walletId),
		zap.String("transaction_id", deposit.Id),
		zap.String("amount", amount.String()))
	return deposit, nil
}

// RequestWithdrawal checks the available balance and records the pending
// withdrawal in one transaction. The wallet version is bumped with an
// optimistic check so two concurrent requests cannot both pass the balance
// check against the same state.
func (s *Service) RequestWithdrawal(ctx context.Context, params store.WithdrawalParams) (*models.CryptoTransaction, error) {
	if !params.Amount.IsPositive() {
		return nil, store.ErrInvalidAmount
	}
	if params.ToAddress == "" {
		return nil, fmt.Errorf("destination address is required")
	}
	userId, err := s.currentUserId()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	var balance decimal.Decimal
	var version int64
	err = tx.QueryRowContext(ctx, queryGetWalletForUpdate, params.WalletId, userId).Scan(&balance, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet balance: %w", err)
	}

	pending, err := pendingWithdrawals(ctx, tx, params.WalletId)
	if err != nil {
		return nil, err
	}
	available := balance.Sub(pending)
	if params.Amount.GreaterThan(available) {
		zap.L().Info("Withdrawal rejected",
			zap.String("wallet_id", params.WalletId),
			zap.String("amount", params.Amount.String()),
			zap.String("available", available.String()))
		return nil, store.ErrInsufficientBalance
	}

	now := s.timestamp()
	withdrawal, err := scanTransaction(tx.QueryRowContext(ctx, queryInsertTransaction,
		uuid.New().String(), params.WalletId, models.TransactionWithdrawal, params.Amount, params.ToAddress, now, now))
	if err != nil {
		return nil, fmt.Errorf("failed to insert withdrawal: %w", err)
	}

	result, err := tx.ExecContext(ctx, queryBumpWalletVersion, now, params.WalletId, version)
	if err != nil {
		return nil, fmt.Errorf("failed to update wallet: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("withdrawal failed - %w", store.ErrConcurrentModification)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit withdrawal: %w", err)
	}

	zap.L().Info("Withdrawal requested",
		zap.String("wallet_id", params.WalletId),
		zap.String("transaction_id", withdrawal.Id),
		zap.String("amount", params.Amount.String()),
		zap.String("available_before", available.String()))
	return withdrawal, nil
}

func pendingWithdrawals(ctx context.Context, tx *sql.Tx, walletId string) (decimal.Decimal, error) {
	rows, err := tx.QueryContext(ctx, queryPendingWithdrawals, walletId)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query pending withdrawals: %w", err)
	}
	defer closeRows(rows)

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan pending withdrawal: %w", err)
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}
