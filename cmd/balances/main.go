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

package main

import (
	"context"
	"flag"
	"fmt"

	"vcard-wallet-go/internal/common"
	"vcard-wallet-go/internal/config"
	"vcard-wallet-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type balanceStats struct {
	wallets      int
	total        decimal.Decimal
	reserved     decimal.Decimal
	transactions int
}

func printWallet(w models.WalletSummary) {
	fmt.Printf("\n┌─ Wallet: %s\n", w.Email)
	fmt.Printf("│  ID: %s\n", w.Wallet.Id)
	fmt.Printf("│  Address: %s\n", w.Wallet.TronAddress)
	common.PrintBoxSeparator(78)
	fmt.Printf("%s %-20s: %20s\n", common.BoxPrefix(false), "Balance", common.FormatUsdt(w.Wallet.UsdtBalance))
	fmt.Printf("%s %-20s: %20s\n", common.BoxPrefix(false), "Pending deposits", common.FormatUsdt(w.PendingDeposits))
	fmt.Printf("%s %-20s: %20s\n", common.BoxPrefix(false), "Pending withdrawals", common.FormatUsdt(w.PendingWithdrawals))
	fmt.Printf("%s %-20s: %20s\n", common.BoxPrefix(true), "Available", common.FormatUsdt(w.Available()))
	fmt.Printf("%s %d transactions, updated: %s\n", common.BoxDetailPrefix(true),
		w.TransactionCount,
		w.Wallet.UpdatedAt.Format("2006-01-02 15:04:05"))
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.LoadClient()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	admin, err := common.InitializeAdmin(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize admin store", zap.Error(err))
	}
	defer admin.Close()

	wallets, err := common.SelectWallets(ctx, admin, *emailFlag)
	if err != nil {
		logger.Fatal("Failed to load wallets", zap.Error(err))
	}

	common.PrintHeader("WALLET BALANCE REPORT", common.DefaultWidth)

	stats := balanceStats{total: decimal.Zero, reserved: decimal.Zero}
	for _, w := range wallets {
		printWallet(w)
		stats.wallets++
		stats.total = stats.total.Add(w.Wallet.UsdtBalance)
		stats.reserved = stats.reserved.Add(w.PendingWithdrawals)
		stats.transactions += w.TransactionCount
	}

	summary := fmt.Sprintf("SUMMARY: %d wallets holding %s (%s reserved by pending withdrawals)",
		stats.wallets, common.FormatUsdt(stats.total), common.FormatUsdt(stats.reserved))
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("wallets", stats.wallets),
		zap.String("total", stats.total.String()),
		zap.Int("transactions", stats.transactions))
}
