package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"vcard-wallet-go/internal/models"
	"vcard-wallet-go/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func scanWallet(row rowScanner) (*models.CryptoWallet, error) {
	var w models.CryptoWallet
	if err := row.Scan(&w.Id, &w.UserId, &w.TronAddress, &w.UsdtBalance, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *Service) GetWallet(ctx context.Context, userId string) (*models.CryptoWallet, error) {
	current, err := s.currentUserId()
	if err != nil {
		return nil, err
	}
	if current != userId {
		return nil, nil
	}

	wallet, err := scanWallet(s.db.QueryRowContext(ctx, queryGetWalletByUser, userId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to query wallet: %w", err)
	}
	return wallet, nil
}

// CreateWallet provisions a zero-balance wallet. It is an admin operation and
// does not require a session.
func (s *Service) CreateWallet(ctx context.Context, userId, tronAddress string) (*models.CryptoWallet, error) {
	zap.L().Info("Creating wallet", zap.String("user_id", userId), zap.String("tron_address", tronAddress))

	now := s.timestamp()
	wallet, err := scanWallet(s.db.QueryRowContext(ctx, queryInsertWallet, uuid.New().String(), userId, tronAddress, now, now))
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintUnique) {
			if strings.Contains(err.Error(), "crypto_wallets.tron_address") {
				return nil, store.ErrAddressInUse
			}
			return nil, store.ErrWalletExists
		}
		if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return nil, fmt.Errorf("no profile for user %s", userId)
		}
		return nil, fmt.Errorf("unable to insert wallet: %w", err)
	}
	return wallet, nil
}

// ListWallets reports every wallet with its owner and pending totals.
func (s *Service) ListWallets(ctx context.Context) ([]models.WalletSummary, error) {
	summaries, err := s.listWalletOwners(ctx)
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		if err := s.fillTotals(ctx, &summaries[i]); err != nil {
			return nil, err
		}
	}
	return summaries, nil
}

func (s *Service) listWalletOwners(ctx context.Context) ([]models.WalletSummary, error) {
	rows, err := s.db.QueryContext(ctx, queryListWallets)
	if err != nil {
		return nil, fmt.Errorf("unable to query wallets: %w", err)
	}
	defer closeRows(rows)

	var summaries []models.WalletSummary
	for rows.Next() {
		var sum models.WalletSummary
		w := &sum.Wallet
		if err := rows.Scan(&w.Id, &w.UserId, &w.TronAddress, &w.UsdtBalance, &w.CreatedAt, &w.UpdatedAt, &sum.Email); err != nil {
			return nil, fmt.Errorf("unable to scan wallet row: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet rows: %w", err)
	}
	return summaries, nil
}

func (s *Service) fillTotals(ctx context.Context, sum *models.WalletSummary) error {
	rows, err := s.db.QueryContext(ctx, queryWalletTransactionTotals, sum.Wallet.Id)
	if err != nil {
		return fmt.Errorf("unable to query wallet transactions: %w", err)
	}
	defer closeRows(rows)

	sum.PendingDeposits = decimal.Zero
	sum.PendingWithdrawals = decimal.Zero
	for rows.Next() {
		var txType models.TransactionType
		var status models.TransactionStatus
		var amount decimal.Decimal
		if err := rows.Scan(&txType, &status, &amount); err != nil {
			return fmt.Errorf("unable to scan transaction amount: %w", err)
		}
		sum.TransactionCount++
		if status != models.TransactionPending {
			continue
		}
		switch txType {
		case models.TransactionDeposit:
			sum.PendingDeposits = sum.PendingDeposits.Add(amount)
		case models.TransactionWithdrawal:
			sum.PendingWithdrawals = sum.PendingWithdrawals.Add(amount)
		}
	}
	return rows.Err()
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.ExtendedCode == code
}
