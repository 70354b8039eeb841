package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"vcard-wallet-go/internal/models"
	"vcard-wallet-go/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

// setupMockDb returns a service over sqlmock, signed in as user u1.
func setupMockDb(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	service := newService(db)
	service.session = &models.Session{AccessToken: "t", User: &models.User{Id: "u1"}}
	return service, mock
}

func withdrawalRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "wallet_id", "type", "amount", "status", "tx_hash", "to_address", "created_at", "updated_at"}).
		AddRow("tx1", "w1", "withdrawal", "5", "pending", nil, "TAddr", now, now)
}

func TestRequestWithdrawal_ConcurrentModification(t *testing.T) {
	service, mock := setupMockDb(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT usdt_balance, version").
		WithArgs("w1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"usdt_balance", "version"}).AddRow("100", int64(3)))
	mock.ExpectQuery("SELECT amount").
		WithArgs("w1").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}))
	mock.ExpectQuery("INSERT INTO crypto_transactions").WillReturnRows(withdrawalRows(now))
	mock.ExpectExec("UPDATE crypto_wallets").
		WithArgs(sqlmock.AnyArg(), "w1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := service.RequestWithdrawal(context.Background(), store.WithdrawalParams{
		WalletId: "w1", Amount: decimal.NewFromInt(5), ToAddress: "TAddr",
	})
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Fatalf("Expected ErrConcurrentModification, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRequestWithdrawal_CommitFailure(t *testing.T) {
	service, mock := setupMockDb(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT usdt_balance, version").
		WillReturnRows(sqlmock.NewRows([]string{"usdt_balance", "version"}).AddRow("100", int64(1)))
	mock.ExpectQuery("SELECT amount").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow("90"))
	mock.ExpectQuery("INSERT INTO crypto_transactions").WillReturnRows(withdrawalRows(now))
	mock.ExpectExec("UPDATE crypto_wallets").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("disk I/O error"))

	_, err := service.RequestWithdrawal(context.Background(), store.WithdrawalParams{
		WalletId: "w1", Amount: decimal.NewFromInt(5), ToAddress: "TAddr",
	})
	if err == nil {
		t.Fatal("Expected commit failure to surface")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRequestWithdrawal_PendingReservesBalance(t *testing.T) {
	service, mock := setupMockDb(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT usdt_balance, version").
		WillReturnRows(sqlmock.NewRows([]string{"usdt_balance", "version"}).AddRow("100", int64(1)))
	mock.ExpectQuery("SELECT amount").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow("60").AddRow("35"))
	mock.ExpectRollback()

	_, err := service.RequestWithdrawal(context.Background(), store.WithdrawalParams{
		WalletId: "w1", Amount: decimal.RequireFromString("5.000001"), ToAddress: "TAddr",
	})
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestListCards_QueryFailure(t *testing.T) {
	service, mock := setupMockDb(t)

	mock.ExpectQuery("FROM virtual_cards").
		WithArgs("u1").
		WillReturnError(errors.New("database is locked"))

	if _, err := service.ListCards(context.Background()); err == nil {
		t.Fatal("Expected query failure to surface")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
